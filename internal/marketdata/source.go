// Package marketdata 定义 K 线供应方接口，并提供数据完整性校验、CSV 与模拟数据来源。
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ma-crossover-backtester/internal/core/model"
)

// Source K 线供应方接口
// 返回按 OpenTime 升序、无重复的 K 线序列
type Source interface {
	// Fetch 获取最近 limit 根 K 线
	Fetch(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
}

// ErrDataIntegrity K 线数据完整性错误
var ErrDataIntegrity = errors.New("K 线数据完整性错误")

// IntegrityError 具体的完整性错误，附带出错 K 线下标
type IntegrityError struct {
	// Index 出错 K 线下标
	Index int
	// Reason 错误描述
	Reason string
}

// Error 实现 error 接口
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: 第 %d 根 K 线 %s", ErrDataIntegrity, e.Index, e.Reason)
}

// Unwrap 使 errors.Is(err, ErrDataIntegrity) 成立
func (e *IntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// Validate 校验整段 K 线
// 任何一根不合法都拒绝整段数据，绝不跳过单根（跳过会破坏交叉检测的相邻性）
func Validate(candles []model.Candle) error {
	for i, c := range candles {
		if c.OpenTime.IsZero() || c.CloseTime.IsZero() {
			return &IntegrityError{Index: i, Reason: "缺少时间戳"}
		}
		if c.CloseTime.Before(c.OpenTime) {
			return &IntegrityError{Index: i, Reason: "收盘时间早于开盘时间"}
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
				return &IntegrityError{Index: i, Reason: fmt.Sprintf("%s 价格无效: %v", f.name, f.v)}
			}
		}
		if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("成交量无效: %v", c.Volume)}
		}
		if i > 0 && !c.OpenTime.After(candles[i-1].OpenTime) {
			return &IntegrityError{Index: i, Reason: "开盘时间未严格递增（重复或乱序）"}
		}
	}
	return nil
}

// Tail 返回最后 limit 根 K 线（limit<=0 时返回全部）
func Tail(candles []model.Candle, limit int) []model.Candle {
	if limit <= 0 || len(candles) <= limit {
		return candles
	}
	return candles[len(candles)-limit:]
}
