package marketdata

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/util/timeutil"
)

// DemoSource 生成可复现的模拟 K 线
// 价格为带周期性趋势的随机游走：change = 0.0001*sin(i/100) + N(0, 0.02)
type DemoSource struct {
	// seed 随机种子，相同种子生成相同序列
	seed int64
	// startPrice 起始价格
	startPrice float64
	// end 最后一根 K 线的收盘时间；零值时使用当前时间按周期取整
	end time.Time
}

// NewDemoSource 创建模拟数据来源
func NewDemoSource(seed int64, startPrice float64) *DemoSource {
	return &DemoSource{seed: seed, startPrice: startPrice}
}

// WithEnd 固定最后一根 K 线的收盘时间，便于测试复现时间戳
func (s *DemoSource) WithEnd(end time.Time) *DemoSource {
	s.end = end.UTC()
	return s
}

// Fetch 生成 limit 根 K 线
func (s *DemoSource) Fetch(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, err := timeutil.IntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("模拟 K 线数量必须为正: %d", limit)
	}
	if s.startPrice <= 0 {
		return nil, fmt.Errorf("模拟起始价格必须为正: %v", s.startPrice)
	}

	end := s.end
	if end.IsZero() {
		end = time.Now().UTC().Truncate(step)
	}
	start := end.Add(-time.Duration(limit) * step)

	rng := rand.New(rand.NewSource(s.seed))
	candles := make([]model.Candle, limit)
	price := s.startPrice
	for i := range candles {
		trend := 0.0001 * math.Sin(float64(i)/100)
		noise := rng.NormFloat64() * 0.02
		price *= 1 + trend + noise

		high := price * (1 + math.Abs(rng.NormFloat64()*0.01))
		low := price * (1 - math.Abs(rng.NormFloat64()*0.01))
		open := price * (1 + rng.NormFloat64()*0.005)

		openTime := start.Add(time.Duration(i) * step)
		candles[i] = model.Candle{
			OpenTime:  openTime,
			CloseTime: openTime.Add(step - time.Millisecond),
			Open:      open,
			High:      math.Max(math.Max(open, high), price),
			Low:       math.Min(math.Min(open, low), price),
			Close:     price,
			Volume:    100 + rng.Float64()*900,
		}
	}
	return candles, nil
}
