// Package model 定义回测器中使用的核心数据结构。
package model

import (
	"time"
)

// ComboResult 单次（策略, 组合）运行结果
type ComboResult struct {
	// Strategy 策略名称
	Strategy StrategyName `json:"strategy"`
	// Combo 均线组合
	Combo Combo `json:"combo"`
	// Trades 按时间顺序的已完成交易
	Trades []Trade `json:"trades"`
	// ReturnPct 累加收益率（百分比，已乘仓位比例），用于排名
	ReturnPct float64 `json:"return_pct"`
	// CompoundedPct 复利收益率（百分比，已乘仓位比例），仅展示
	CompoundedPct float64 `json:"compounded_pct"`
	// TradeCount 交易笔数
	TradeCount int `json:"trades_count"`
	// WinCount 盈利笔数
	WinCount int `json:"win_count"`
	// WinRatePct 胜率（百分比），无交易时为 0
	WinRatePct float64 `json:"win_rate_pct"`
	// NoTrades 是否没有任何交易
	NoTrades bool `json:"no_trades"`
	// OpenPosition 数据结束时仍未平仓的持仓（不计入统计）
	OpenPosition *Position `json:"open_position,omitempty"`
}

// LogRow 单根 K 线的审计日志行
// 可选字段用指针表示，nil 即缺省
type LogRow struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	// MAShort 短均线，历史不足时为 nil
	MAShort *float64
	// MALong 长均线，历史不足时为 nil
	MALong *float64
	// SignalBuyPrice 仅在入场 K 线上有值
	SignalBuyPrice *float64
	// SignalSellPrice 仅在出场 K 线上有值
	SignalSellPrice *float64
	// TradePnLPct 仅在出场 K 线上有值
	TradePnLPct *float64
	Combo       string
	Strategy    StrategyName
	// Reason 开平仓原因，无信号时为空
	Reason Reason
}

// NewLogRow 由 K 线构造审计行
func NewLogRow(c Candle, combo Combo, strategy StrategyName) LogRow {
	return LogRow{
		OpenTime:  c.OpenTime,
		CloseTime: c.CloseTime,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Combo:     combo.String(),
		Strategy:  strategy,
	}
}

// Float 返回 v 的指针，便于填充可选字段
func Float(v float64) *float64 {
	return &v
}

// TradeRecord JSONL 成交输出结构
type TradeRecord struct {
	// RunID 运行标识
	RunID string `json:"run_id"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Interval 周期
	Interval string `json:"interval"`
	// Strategy 策略
	Strategy StrategyName `json:"estrategia"`
	// Combo 组合标识
	Combo string `json:"combo"`
	Trade
}

// FinalValue 以 initial 为初始资金计算最终资金
func FinalValue(initial, returnPct float64) float64 {
	return initial * (1 + returnPct/100)
}
