package marketdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/util/timeutil"
)

// CandleWriter 以 CandleHeader 格式追加 K 线，输出可被 CSVSource 读取
type CandleWriter struct {
	f *os.File
	w *csv.Writer
}

// OpenCandleWriter 以追加模式打开文件，新文件或空文件会先写表头
func OpenCandleWriter(path string) (*CandleWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开 K 线文件失败: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}

	cw := &CandleWriter{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := cw.w.Write(CandleHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("写入表头失败: %w", err)
		}
	}
	return cw, nil
}

// Write 写入一根 K 线并立即 flush
func (cw *CandleWriter) Write(c model.Candle) error {
	rec := []string{
		timeutil.FormatCandle(c.OpenTime),
		timeutil.FormatCandle(c.CloseTime),
		strconv.FormatFloat(c.Open, 'f', -1, 64),
		strconv.FormatFloat(c.High, 'f', -1, 64),
		strconv.FormatFloat(c.Low, 'f', -1, 64),
		strconv.FormatFloat(c.Close, 'f', -1, 64),
		strconv.FormatFloat(c.Volume, 'f', -1, 64),
	}
	if err := cw.w.Write(rec); err != nil {
		return fmt.Errorf("写入 K 线失败: %w", err)
	}
	cw.w.Flush()
	return cw.w.Error()
}

// Close flush 并关闭文件
func (cw *CandleWriter) Close() error {
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		_ = cw.f.Close()
		return err
	}
	return cw.f.Close()
}
