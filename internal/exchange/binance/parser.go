package binance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/util/timeutil"
)

// ParseKlines 解析 /api/v3/klines 响应（数组的数组，价格为字符串）
// 参数 data: 原始响应体
// 返回: 与响应顺序一致的 K 线
func ParseKlines(data []byte) ([]model.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("解析 Binance K 线失败: %w", err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < klineMinFields {
			return nil, fmt.Errorf("第 %d 根 K 线字段不足: %d", i, len(row))
		}
		openMs, err := rawInt(row[klineOpenTime])
		if err != nil {
			return nil, fmt.Errorf("第 %d 根 K 线 open_time: %w", i, err)
		}
		closeMs, err := rawInt(row[klineCloseTime])
		if err != nil {
			return nil, fmt.Errorf("第 %d 根 K 线 close_time: %w", i, err)
		}

		c := model.Candle{
			OpenTime:  timeutil.MsToTime(openMs),
			CloseTime: timeutil.MsToTime(closeMs),
		}
		fields := []struct {
			dst *float64
			idx int
		}{
			{&c.Open, klineOpen}, {&c.High, klineHigh}, {&c.Low, klineLow},
			{&c.Close, klineClose}, {&c.Volume, klineVolume},
		}
		for _, f := range fields {
			v, err := rawFloat(row[f.idx])
			if err != nil {
				return nil, fmt.Errorf("第 %d 根 K 线第 %d 列: %w", i, f.idx, err)
			}
			*f.dst = v
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// ParseKlineEvent 解析 K 线推送消息
// 返回: K 线、是否已收盘；非 kline 消息（如订阅响应）返回 nil
func ParseKlineEvent(data []byte) (*model.Candle, bool, error) {
	var msg KlineEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, fmt.Errorf("解析 Binance 消息失败: %w", err)
	}
	if msg.EventType != "kline" {
		return nil, false, nil
	}

	k := msg.Kline
	c := &model.Candle{
		OpenTime:  timeutil.MsToTime(k.OpenTimeMs),
		CloseTime: timeutil.MsToTime(k.CloseTimeMs),
	}
	fields := []struct {
		dst *float64
		s   string
	}{
		{&c.Open, k.Open}, {&c.High, k.High}, {&c.Low, k.Low}, {&c.Close, k.Close}, {&c.Volume, k.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.s, 64)
		if err != nil {
			return nil, false, fmt.Errorf("解析 K 线价格 %q 失败: %w", f.s, err)
		}
		*f.dst = v
	}
	return c, k.Closed, nil
}

// rawInt 解析 JSON 数字
func rawInt(raw json.RawMessage) (int64, error) {
	return strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
}

// rawFloat 解析 JSON 字符串或数字形式的浮点数
func rawFloat(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, 64)
	}
	return strconv.ParseFloat(string(raw), 64)
}
