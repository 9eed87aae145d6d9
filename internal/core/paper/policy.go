// Package paper 实现均线交叉策略的模拟成交状态机。
// 重要：仅用于回测，不进行任何真实下单。
package paper

import (
	"fmt"

	"ma-crossover-backtester/internal/core/indicator"
	"ma-crossover-backtester/internal/core/model"
)

// ExitKind 离场条件类型
type ExitKind int

const (
	// ExitTakeProfit 止盈：close >= entry × (1 + tp%)
	ExitTakeProfit ExitKind = iota
	// ExitStopLoss 止损：close <= entry × (1 - sl%)
	ExitStopLoss
	// ExitDeathCross 死叉
	ExitDeathCross
	// ExitMACDBearishCross MACD 线由上向下穿过信号线
	ExitMACDBearishCross
	// ExitUpperBand 布林带位置高于 Bands.ExitAbove
	ExitUpperBand
)

// String 返回离场条件名称
func (k ExitKind) String() string {
	switch k {
	case ExitTakeProfit:
		return "take_profit"
	case ExitStopLoss:
		return "stop_loss"
	case ExitDeathCross:
		return "death_cross"
	case ExitMACDBearishCross:
		return "macd_bearish_cross"
	case ExitUpperBand:
		return "upper_band"
	default:
		return fmt.Sprintf("exit_kind(%d)", int(k))
	}
}

// EntryKind 入场确认条件类型
// 金叉是必要条件，确认条件全部满足才开仓
type EntryKind int

const (
	// EntryMACDConfirm MACD 线高于信号线且柱状图较上一根增长
	EntryMACDConfirm EntryKind = iota
	// EntryBandContext 布林带位置处于 (Bands.EntryLow, Bands.EntryHigh)
	EntryBandContext
)

// String 返回入场条件名称
func (k EntryKind) String() string {
	switch k {
	case EntryMACDConfirm:
		return "macd_confirm"
	case EntryBandContext:
		return "band_context"
	default:
		return fmt.Sprintf("entry_kind(%d)", int(k))
	}
}

// MACDParams MACD 周期
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

// BandParams 布林带参数及入场/离场阈值
type BandParams struct {
	// Period 窗口周期
	Period int
	// Width 标准差倍数
	Width float64
	// EntryLow 入场带内位置下限（不含）
	EntryLow float64
	// EntryHigh 入场带内位置上限（不含）
	EntryHigh float64
	// ExitAbove 离场带内位置阈值（不含）
	ExitAbove float64
}

// DefaultMACD 默认 MACD 周期 12/26/9
var DefaultMACD = MACDParams{Fast: 12, Slow: 26, Signal: 9}

// DefaultBands 默认布林带：20 周期 2 倍标准差，位置 0.1-0.5 入场，高于 0.9 离场
var DefaultBands = BandParams{Period: 20, Width: 2, EntryLow: 0.1, EntryHigh: 0.5, ExitAbove: 0.9}

// ExitRule 离场规则及其记录原因
type ExitRule struct {
	// Kind 离场条件
	Kind ExitKind
	// Reason 触发时记录的原因
	Reason model.Reason
}

// Policy 策略参数
// Exits 按顺序逐条检查，同一根 K 线上第一条命中的规则生效
type Policy struct {
	// Name 策略名称
	Name model.StrategyName
	// TakeProfitPct 止盈百分比（1 表示 +1%）
	TakeProfitPct float64
	// StopLossPct 止损百分比（1 表示 -1%）
	StopLossPct float64
	// Exits 有序离场规则
	Exits []ExitRule
	// Entries 金叉之外的入场确认条件，为空时金叉即入场
	Entries []EntryKind
	// EntryReason 入场原因，为空时记为 golden_cross
	EntryReason model.Reason
	// MACD 使用 EntryMACDConfirm 或 ExitMACDBearishCross 时的周期
	MACD MACDParams
	// Bands 使用 EntryBandContext 或 ExitUpperBand 时的参数
	Bands BandParams
}

// needsMACD 是否需要计算 MACD
func (p Policy) needsMACD() bool {
	for _, k := range p.Entries {
		if k == EntryMACDConfirm {
			return true
		}
	}
	for _, r := range p.Exits {
		if r.Kind == ExitMACDBearishCross {
			return true
		}
	}
	return false
}

// needsBands 是否需要计算布林带
func (p Policy) needsBands() bool {
	for _, k := range p.Entries {
		if k == EntryBandContext {
			return true
		}
	}
	for _, r := range p.Exits {
		if r.Kind == ExitUpperBand {
			return true
		}
	}
	return false
}

// entryReason 返回入场原因
func (p Policy) entryReason() model.Reason {
	if p.EntryReason == "" {
		return model.ReasonGoldenCross
	}
	return p.EntryReason
}

const (
	// DefaultTakeProfitPct 默认止盈 1%
	DefaultTakeProfitPct = 1.0
	// DefaultStopLossPct 默认止损 1%
	DefaultStopLossPct = 1.0
)

// Conservative 保守策略：止盈优先，死叉兜底
func Conservative(takeProfitPct float64) Policy {
	return Policy{
		Name:          model.StrategyConservative,
		TakeProfitPct: takeProfitPct,
		Exits: []ExitRule{
			{Kind: ExitTakeProfit, Reason: model.ReasonTakeProfit},
			{Kind: ExitDeathCross, Reason: model.ReasonDeathCrossStop},
		},
	}
}

// Aggressive 激进策略：死叉为主信号，止损仅作保护
func Aggressive(stopLossPct float64) Policy {
	return Policy{
		Name:        model.StrategyAggressive,
		StopLossPct: stopLossPct,
		Exits: []ExitRule{
			{Kind: ExitDeathCross, Reason: model.ReasonDeathCross},
			{Kind: ExitStopLoss, Reason: model.ReasonStopLoss},
		},
	}
}

// MACDConfirm MACD 确认策略
// 入场：金叉且 MACD 多头、柱状图增长；离场：止盈、死叉、MACD 死叉依次检查
func MACDConfirm(takeProfitPct float64) Policy {
	return Policy{
		Name:          model.StrategyMACDConfirm,
		TakeProfitPct: takeProfitPct,
		Entries:       []EntryKind{EntryMACDConfirm},
		EntryReason:   model.ReasonGoldenCrossMACD,
		MACD:          DefaultMACD,
		Exits: []ExitRule{
			{Kind: ExitTakeProfit, Reason: model.ReasonTakeProfit},
			{Kind: ExitDeathCross, Reason: model.ReasonDeathCross},
			{Kind: ExitMACDBearishCross, Reason: model.ReasonMACDBearishCross},
		},
	}
}

// Bollinger 布林带策略
// 入场：金叉且位于带内中下部；离场：止盈、死叉、接近上轨依次检查
func Bollinger(takeProfitPct float64) Policy {
	return Policy{
		Name:          model.StrategyBollinger,
		TakeProfitPct: takeProfitPct,
		Entries:       []EntryKind{EntryBandContext},
		EntryReason:   model.ReasonGoldenCrossBands,
		Bands:         DefaultBands,
		Exits: []ExitRule{
			{Kind: ExitTakeProfit, Reason: model.ReasonTakeProfit},
			{Kind: ExitDeathCross, Reason: model.ReasonDeathCross},
			{Kind: ExitUpperBand, Reason: model.ReasonBandOverbought},
		},
	}
}

// PolicyFor 按名称构造策略
func PolicyFor(name model.StrategyName, takeProfitPct, stopLossPct float64) (Policy, error) {
	switch name {
	case model.StrategyConservative:
		return Conservative(takeProfitPct), nil
	case model.StrategyAggressive:
		return Aggressive(stopLossPct), nil
	case model.StrategyMACDConfirm:
		return MACDConfirm(takeProfitPct), nil
	case model.StrategyBollinger:
		return Bollinger(takeProfitPct), nil
	default:
		return Policy{}, fmt.Errorf("未知策略: %s", name)
	}
}

// hit 判断规则是否在下标 index 的 K 线上命中
// f 为 nil 时依赖附加指标的规则不命中
func (r ExitRule) hit(p Policy, pos *model.Position, index int, close float64, cross model.CrossKind, f *Features) bool {
	switch r.Kind {
	case ExitTakeProfit:
		return close >= pos.EntryPrice*(1+p.TakeProfitPct/100)
	case ExitStopLoss:
		return close <= pos.EntryPrice*(1-p.StopLossPct/100)
	case ExitDeathCross:
		return cross == model.CrossDeath
	case ExitMACDBearishCross:
		return f.bearishMACD(index)
	case ExitUpperBand:
		bp, ok := f.bandPosition(index)
		return ok && bp > p.Bands.ExitAbove
	default:
		return false
	}
}

// allows 判断入场确认条件是否在下标 index 上满足
func (k EntryKind) allows(p Policy, index int, f *Features) bool {
	switch k {
	case EntryMACDConfirm:
		return f.bullishMACD(index)
	case EntryBandContext:
		bp, ok := f.bandPosition(index)
		return ok && bp > p.Bands.EntryLow && bp < p.Bands.EntryHigh
	default:
		return false
	}
}

// Features 策略所需的附加指标（MACD、布林带），与 K 线等长
// 只计算策略实际用到的指标
type Features struct {
	macd     indicator.MACDSeries
	hasMACD  bool
	bands    indicator.BandSeries
	hasBands bool
}

// NewFeatures 按策略需要计算附加指标
// 策略不需要任何附加指标时返回 nil
func NewFeatures(closes []float64, p Policy) *Features {
	f := &Features{}
	if p.needsMACD() {
		f.macd = indicator.MACD(closes, p.MACD.Fast, p.MACD.Slow, p.MACD.Signal)
		f.hasMACD = true
	}
	if p.needsBands() {
		f.bands = indicator.Bollinger(closes, p.Bands.Period, p.Bands.Width)
		f.hasBands = true
	}
	if !f.hasMACD && !f.hasBands {
		return nil
	}
	return f
}

// Ready 下标 index 上所需指标是否都有定义
// 未就绪的 K 线既不入场也不评估离场
func (f *Features) Ready(index int) bool {
	if f == nil {
		return true
	}
	if f.hasMACD && !f.macd.Defined(index) {
		return false
	}
	if f.hasBands {
		if _, ok := f.bands.PositionAt(index); !ok {
			return false
		}
	}
	return true
}

// bullishMACD MACD 线高于信号线且柱状图较上一根增长
func (f *Features) bullishMACD(index int) bool {
	if f == nil || !f.hasMACD || index < 1 || !f.macd.Defined(index) || !f.macd.Defined(index-1) {
		return false
	}
	line, sig, hist := f.macd.Line.Values, f.macd.Signal.Values, f.macd.Histogram.Values
	return line[index] > sig[index] && hist[index] > hist[index-1]
}

// bearishMACD MACD 线在 index 上由上（或持平）向下穿过信号线
func (f *Features) bearishMACD(index int) bool {
	if f == nil || !f.hasMACD || index < 1 || !f.macd.Defined(index) || !f.macd.Defined(index-1) {
		return false
	}
	line, sig := f.macd.Line.Values, f.macd.Signal.Values
	return line[index-1] >= sig[index-1] && line[index] < sig[index]
}

// bandPosition 下标 index 上的布林带位置
func (f *Features) bandPosition(index int) (float64, bool) {
	if f == nil || !f.hasBands {
		return 0, false
	}
	return f.bands.PositionAt(index)
}
