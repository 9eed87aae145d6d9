package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/util/timeutil"
)

// CandleHeader K 线 CSV 表头，同时是运行日志 CSV 的前 7 列
var CandleHeader = []string{"open_time", "close_time", "open", "high", "low", "close", "volume"}

// CSVSource 从本地 CSV 文件读取 K 线
// 文件首行为表头，至少包含 CandleHeader 中的列（顺序不限，多余列忽略）
type CSVSource struct {
	// path 文件路径
	path string
}

// NewCSVSource 创建 CSV 来源
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Fetch 读取文件并返回最后 limit 根 K 线
// symbol/interval 仅用于错误信息
func (s *CSVSource) Fetch(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("打开 K 线文件失败: %w", err)
	}
	defer f.Close()

	candles, err := ReadCandles(f)
	if err != nil {
		return nil, fmt.Errorf("读取 %s %s K 线失败: %w", symbol, interval, err)
	}
	return Tail(candles, limit), nil
}

// ReadCandles 解析 CSV 内容
// 缺列或字段无法解析时返回 ErrDataIntegrity
func ReadCandles(r io.Reader) ([]model.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.ToLower(h))] = i
	}
	idx := make([]int, len(CandleHeader))
	for i, name := range CandleHeader {
		j, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: 缺少列 %s", ErrDataIntegrity, name)
		}
		idx[i] = j
	}

	var candles []model.Candle
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 行失败: %w", row+1, err)
		}

		field := func(k int) (string, error) {
			j := idx[k]
			if j >= len(rec) || strings.TrimSpace(rec[j]) == "" {
				return "", &IntegrityError{Index: row, Reason: "缺少字段 " + CandleHeader[k]}
			}
			return strings.TrimSpace(rec[j]), nil
		}

		var c model.Candle
		times := []*time.Time{&c.OpenTime, &c.CloseTime}
		for k, dst := range times {
			v, err := field(k)
			if err != nil {
				return nil, err
			}
			ts, err := parseTime(v)
			if err != nil {
				return nil, &IntegrityError{Index: row, Reason: fmt.Sprintf("%s 无法解析: %v", CandleHeader[k], err)}
			}
			*dst = ts
		}
		nums := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for k, dst := range nums {
			v, err := field(k + 2)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, &IntegrityError{Index: row, Reason: fmt.Sprintf("%s 无法解析: %v", CandleHeader[k+2], err)}
			}
			*dst = n
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseTime 支持 timeutil.CandleLayout、RFC3339 和毫秒时间戳
func parseTime(v string) (time.Time, error) {
	if ts, err := time.ParseInLocation(timeutil.CandleLayout, v, time.UTC); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts.UTC(), nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("未知时间格式 %q", v)
	}
	return timeutil.MsToTime(ms), nil
}
