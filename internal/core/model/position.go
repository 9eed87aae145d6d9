// Package model 定义回测器中使用的核心数据结构。
package model

import (
	"time"
)

// StrategyName 策略名称
type StrategyName string

const (
	// StrategyConservative 保守策略：止盈优先，死叉兜底
	StrategyConservative StrategyName = "conservadora"
	// StrategyAggressive 激进策略：死叉优先，止损兜底
	StrategyAggressive StrategyName = "arriscada"
	// StrategyMACDConfirm 金叉需 MACD 多头确认，MACD 死叉作为第三离场条件
	StrategyMACDConfirm StrategyName = "macd_confirmacao"
	// StrategyBollinger 金叉需位于布林带中下部，触及上轨附近离场
	StrategyBollinger StrategyName = "bollinger_bands"
)

// Reason 开平仓原因
type Reason string

const (
	// ReasonGoldenCross 金叉入场
	ReasonGoldenCross Reason = "golden_cross"
	// ReasonTakeProfit 止盈离场（保守、MACD、布林带策略）
	ReasonTakeProfit Reason = "take_profit"
	// ReasonDeathCrossStop 死叉离场（保守策略）
	ReasonDeathCrossStop Reason = "death_cross_stop"
	// ReasonDeathCross 死叉离场（激进、MACD、布林带策略）
	ReasonDeathCross Reason = "death_cross"
	// ReasonStopLoss 止损离场（激进策略）
	ReasonStopLoss Reason = "stop_loss"
	// ReasonGoldenCrossMACD 金叉且 MACD 确认入场
	ReasonGoldenCrossMACD Reason = "golden_cross_macd_confirm"
	// ReasonGoldenCrossBands 金叉且位于布林带中下部入场
	ReasonGoldenCrossBands Reason = "golden_cross_bb_context"
	// ReasonMACDBearishCross MACD 线下穿信号线离场
	ReasonMACDBearishCross Reason = "macd_bearish_cross"
	// ReasonBandOverbought 收盘价接近布林带上轨离场
	ReasonBandOverbought Reason = "bb_overbought"
)

// Position 持仓
// 仅在多头状态下存在，由单次策略运行独占
type Position struct {
	// EntryPrice 入场价（入场 K 线收盘价）
	EntryPrice float64 `json:"entry_price"`
	// EntryIndex 入场 K 线下标
	EntryIndex int `json:"entry_index"`
	// EntryTime 入场 K 线开盘时间
	EntryTime time.Time `json:"entry_time"`
	// EntryReason 入场原因
	EntryReason Reason `json:"entry_reason"`
}

// Trade 已完成的一笔交易（不可变）
type Trade struct {
	// EntryIndex 入场 K 线下标
	EntryIndex int `json:"entry_index"`
	// ExitIndex 出场 K 线下标
	ExitIndex int `json:"exit_index"`
	// EntryTime 入场 K 线开盘时间
	EntryTime time.Time `json:"entry_time"`
	// ExitTime 出场 K 线开盘时间
	ExitTime time.Time `json:"exit_time"`
	// EntryPrice 入场价
	EntryPrice float64 `json:"entry_price"`
	// ExitPrice 出场价
	ExitPrice float64 `json:"exit_price"`
	// EntryReason 入场原因
	EntryReason Reason `json:"entry_reason"`
	// ExitReason 出场原因
	ExitReason Reason `json:"exit_reason"`
	// PnLPct 收益率（百分比）
	// 计算公式: (exit_price - entry_price) / entry_price × 100
	PnLPct float64 `json:"pnl_pct"`
}

// NewTrade 由持仓和出场信息构造交易
func NewTrade(pos Position, exitIndex int, exitTime time.Time, exitPrice float64, reason Reason) Trade {
	return Trade{
		EntryIndex:  pos.EntryIndex,
		ExitIndex:   exitIndex,
		EntryTime:   pos.EntryTime,
		ExitTime:    exitTime,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		EntryReason: pos.EntryReason,
		ExitReason:  reason,
		PnLPct:      PnLPct(pos.EntryPrice, exitPrice),
	}
}

// PnLPct 计算百分比收益
func PnLPct(entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	return (exit - entry) / entry * 100
}

// IsWin 判断是否盈利
func (t Trade) IsWin() bool {
	return t.PnLPct > 0
}
