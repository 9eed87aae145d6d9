// Package csvlog 输出每根 K 线的审计日志 CSV。
// 每个策略一个文件，所有组合的行按组合顺序依次追加。
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/util/timeutil"
)

// Header 审计日志列，顺序固定
var Header = []string{
	"open_time", "close_time", "open", "high", "low", "close", "volume",
	"ma_short", "ma_long", "signal_buy_price", "signal_sell_price", "trade_pnl_pct",
	"combo", "estrategia", "reason",
}

// FileName 审计日志文件名: <estrategia>_<SYMBOL>_<interval>.csv
func FileName(strategy model.StrategyName, symbol, interval string) string {
	return fmt.Sprintf("%s_%s_%s.csv", strategy, strings.ToUpper(symbol), interval)
}

// Writer 审计日志写入器
type Writer struct {
	// path 输出文件路径
	path string
	// f 文件句柄
	f *os.File
	// w CSV 编码器
	w *csv.Writer
	// rows 已写入数据行数
	rows int
}

// Create 创建（截断）日志文件并写入表头
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("创建日志文件失败: %w", err)
	}
	w := &Writer{path: path, f: f, w: csv.NewWriter(f)}
	if err := w.w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("写入表头失败: %w", err)
	}
	return w, nil
}

// Path 输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Rows 已写入数据行数
func (w *Writer) Rows() int {
	return w.rows
}

// WriteRows 追加一组审计行
func (w *Writer) WriteRows(rows []model.LogRow) error {
	for _, r := range rows {
		if err := w.w.Write(Record(r)); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", w.path, err)
		}
		w.rows++
	}
	return nil
}

// Close flush 并关闭文件
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("flush %s 失败: %w", w.path, err)
	}
	return w.f.Close()
}

// Record 将审计行编码为 CSV 字段，缺省值为空串
func Record(r model.LogRow) []string {
	return []string{
		timeutil.FormatCandle(r.OpenTime),
		timeutil.FormatCandle(r.CloseTime),
		num(r.Open),
		num(r.High),
		num(r.Low),
		num(r.Close),
		num(r.Volume),
		opt(r.MAShort),
		opt(r.MALong),
		opt(r.SignalBuyPrice),
		opt(r.SignalSellPrice),
		opt(r.TradePnLPct),
		r.Combo,
		string(r.Strategy),
		string(r.Reason),
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func opt(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}
