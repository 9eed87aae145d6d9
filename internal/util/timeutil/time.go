// Package timeutil 提供 K 线时间相关的工具函数。
// 交易所使用毫秒时间戳，日志与 CSV 使用 UTC 文本格式。
package timeutil

import (
	"fmt"
	"time"
)

// CandleLayout K 线时间文本格式（UTC），用于 CSV 输入输出
const CandleLayout = "2006-01-02 15:04:05"

// RunStampLayout 运行日志目录时间戳格式（MM-DD-YYYY-HH-MM）
const RunStampLayout = "01-02-2006-15-04"

// intervals 交易所支持的 K 线周期
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// IntervalDuration 将 K 线周期字符串转换为时长
// 参数 interval: 如 "1m"、"1h"、"1d"
// 返回: 周期时长；未知周期返回错误
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervals[interval]
	if !ok {
		return 0, fmt.Errorf("不支持的 K 线周期: %q", interval)
	}
	return d, nil
}

// MsToTime 将毫秒时间戳转换为 UTC time.Time
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToMs 将 time.Time 转换为毫秒时间戳
func TimeToMs(t time.Time) int64 {
	return t.UnixMilli()
}

// FormatCandle 按 CandleLayout 格式化（零值返回空串）
func FormatCandle(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(CandleLayout)
}

// RunStamp 运行日志目录使用的本地时间戳
func RunStamp(t time.Time) string {
	return t.Format(RunStampLayout)
}
