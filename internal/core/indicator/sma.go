// Package indicator 实现回测使用的技术指标：简单移动平均（SMA）、
// 指数移动平均（EMA）、MACD 与布林带。
// SMA 使用滑动窗口累加和，单次遍历 O(n)。
package indicator

import "ma-crossover-backtester/internal/core/model"

// Series 均线序列
// Values[i] 仅在 Defined(i) 为 true 时有意义
type Series struct {
	// Values 与输入等长的均线值
	Values []float64
	// Start 第一个有定义的下标（= period-1）；无定义时等于 len(Values)
	Start int
}

// Defined 判断下标 i 上的均线是否有定义
func (s Series) Defined(i int) bool {
	return i >= s.Start && i < len(s.Values)
}

// SMA 计算 period 周期简单移动平均
// 参数 values: 收盘价序列
// 参数 period: 周期，<=0 时整个序列无定义
func SMA(values []float64, period int) Series {
	n := len(values)
	out := Series{Values: make([]float64, n), Start: n}
	if period <= 0 || n < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out.Values[i] = sum / float64(period)
		}
	}
	out.Start = period - 1
	return out
}

// Pair 计算组合的短/长均线
// 两条均线都有定义的 K 线才标记为 Defined
func Pair(closes []float64, combo model.Combo) []model.MAPoint {
	return Points(SMA(closes, combo.Short), SMA(closes, combo.Long))
}

// Points 合并两条等长均线序列
func Points(short, long Series) []model.MAPoint {
	n := len(short.Values)
	if len(long.Values) < n {
		n = len(long.Values)
	}

	points := make([]model.MAPoint, n)
	for i := 0; i < n; i++ {
		p := model.MAPoint{Index: i}
		if short.Defined(i) && long.Defined(i) {
			p.Short = short.Values[i]
			p.Long = long.Values[i]
			p.Defined = true
		}
		points[i] = p
	}
	return points
}
