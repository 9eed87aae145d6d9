package indicator

import "math"

// EMA 计算 span 周期指数移动平均
// 使用带偏差修正的加权形式：权重为 (1-α)^k，α = 2/(span+1)，
// 从第一个值起即有定义，与常见数据分析库 adjust=true 的结果一致。
// 参数 values: 输入序列
// 参数 span: 周期，<=0 时整个序列无定义
func EMA(values []float64, span int) Series {
	n := len(values)
	out := Series{Values: make([]float64, n), Start: n}
	if span <= 0 || n == 0 {
		return out
	}

	decay := 1 - 2/float64(span+1)
	var num, den float64
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out.Values[i] = num / den
	}
	out.Start = 0
	return out
}

// MACDSeries MACD 指标
type MACDSeries struct {
	// Line 快慢 EMA 之差
	Line Series
	// Signal Line 的 EMA
	Signal Series
	// Histogram Line - Signal
	Histogram Series
}

// Defined 判断下标 i 上三条序列是否都有定义
func (m MACDSeries) Defined(i int) bool {
	return m.Line.Defined(i) && m.Signal.Defined(i) && m.Histogram.Defined(i)
}

// MACD 计算 MACD 指标
// 参数 fast, slow, signal: 快线、慢线、信号线周期（常用 12, 26, 9）
func MACD(closes []float64, fast, slow, signal int) MACDSeries {
	n := len(closes)
	f := EMA(closes, fast)
	s := EMA(closes, slow)

	line := Series{Values: make([]float64, n), Start: max(f.Start, s.Start)}
	for i := line.Start; i < n; i++ {
		line.Values[i] = f.Values[i] - s.Values[i]
	}

	sig := Series{Values: make([]float64, n), Start: n}
	if line.Start < n {
		tail := EMA(line.Values[line.Start:], signal)
		copy(sig.Values[line.Start:], tail.Values)
		sig.Start = line.Start + tail.Start
	}

	hist := Series{Values: make([]float64, n), Start: max(line.Start, sig.Start)}
	for i := hist.Start; i < n; i++ {
		hist.Values[i] = line.Values[i] - sig.Values[i]
	}
	return MACDSeries{Line: line, Signal: sig, Histogram: hist}
}

// BandSeries 布林带
type BandSeries struct {
	// Middle 中轨（SMA）
	Middle Series
	// Upper 上轨
	Upper Series
	// Lower 下轨
	Lower Series
	// Position 收盘价在带内的相对位置 (close-lower)/(upper-lower)
	// 带宽为 0 的 K 线无定义
	Position Series
}

// Bollinger 计算布林带
// 标准差使用样本标准差（n-1 为分母），period < 2 时整个序列无定义
// 参数 period: 窗口周期（常用 20）
// 参数 width: 标准差倍数（常用 2）
func Bollinger(closes []float64, period int, width float64) BandSeries {
	n := len(closes)
	undefined := func() Series { return Series{Values: make([]float64, n), Start: n} }
	out := BandSeries{Middle: undefined(), Upper: undefined(), Lower: undefined(), Position: undefined()}
	if period < 2 || n < period {
		return out
	}

	out.Middle = SMA(closes, period)
	out.Upper.Start = out.Middle.Start
	out.Lower.Start = out.Middle.Start

	// 带宽为 0 的点记为 NaN，由 PositionAt 过滤
	pos := out.Position
	pos.Start = out.Middle.Start
	for i := out.Middle.Start; i < n; i++ {
		mean := out.Middle.Values[i]
		var ss float64
		for _, v := range closes[i-period+1 : i+1] {
			d := v - mean
			ss += d * d
		}
		std := math.Sqrt(ss / float64(period-1))
		out.Upper.Values[i] = mean + width*std
		out.Lower.Values[i] = mean - width*std

		bw := out.Upper.Values[i] - out.Lower.Values[i]
		if bw > 0 {
			pos.Values[i] = (closes[i] - out.Lower.Values[i]) / bw
		} else {
			pos.Values[i] = math.NaN()
		}
	}
	out.Position = pos
	return out
}

// PositionAt 返回下标 i 上的带内位置；无定义时 ok 为 false
func (b BandSeries) PositionAt(i int) (float64, bool) {
	if !b.Position.Defined(i) || math.IsNaN(b.Position.Values[i]) {
		return 0, false
	}
	return b.Position.Values[i], true
}
