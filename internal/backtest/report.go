package backtest

import (
	"time"

	"ma-crossover-backtester/internal/core/model"
)

// Report 一次回测的完整结果
type Report struct {
	// RunID 运行标识（UUID）
	RunID string `json:"run_id"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Interval 周期
	Interval string `json:"interval"`
	// Candles K 线数量
	Candles int `json:"candles"`
	// From 第一根 K 线开盘时间
	From time.Time `json:"from"`
	// To 最后一根 K 线收盘时间
	To time.Time `json:"to"`
	// Allocation 资金比例
	Allocation float64 `json:"allocation"`
	// Strategies 按配置顺序的策略结果
	Strategies []StrategyReport `json:"strategies"`
}

// StrategyReport 单个策略的结果
type StrategyReport struct {
	// Name 策略名称
	Name model.StrategyName `json:"estrategia"`
	// Ranked 排序后的组合结果
	Ranked []*model.ComboResult `json:"ranked"`
	// Winner 最优组合
	Winner *model.ComboResult `json:"winner"`
	// Rows 按组合配置顺序的逐 K 线审计行
	Rows [][]model.LogRow `json:"-"`
}

// Strategy 按名称查找策略结果
func (r *Report) Strategy(name model.StrategyName) (*StrategyReport, bool) {
	for i := range r.Strategies {
		if r.Strategies[i].Name == name {
			return &r.Strategies[i], true
		}
	}
	return nil, false
}

// TradeRecords 展开全部已完成交易，顺序为策略、排名、交易时间
func (r *Report) TradeRecords() []model.TradeRecord {
	var out []model.TradeRecord
	for _, s := range r.Strategies {
		for _, res := range s.Ranked {
			for _, t := range res.Trades {
				out = append(out, model.TradeRecord{
					RunID:    r.RunID,
					Symbol:   r.Symbol,
					Interval: r.Interval,
					Strategy: s.Name,
					Combo:    res.Combo.String(),
					Trade:    t,
				})
			}
		}
	}
	return out
}

// Summary 运行汇总（不含逐笔交易）
type Summary struct {
	RunID      string            `json:"run_id"`
	Symbol     string            `json:"symbol"`
	Interval   string            `json:"interval"`
	Candles    int               `json:"candles"`
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Allocation float64           `json:"allocation"`
	Strategies []StrategySummary `json:"strategies"`
}

// StrategySummary 单个策略汇总
type StrategySummary struct {
	Name   model.StrategyName `json:"estrategia"`
	Winner string             `json:"winner"`
	Combos []ComboSummary     `json:"combos"`
}

// ComboSummary 单个组合汇总
type ComboSummary struct {
	Combo         string          `json:"combo"`
	ReturnPct     float64         `json:"retorno_pct"`
	CompoundedPct float64         `json:"compounded_pct"`
	Trades        int             `json:"trades"`
	WinRatePct    float64         `json:"win_rate_pct"`
	NoTrades      bool            `json:"no_trades"`
	OpenPosition  *model.Position `json:"open_position,omitempty"`
}

// Summary 构建运行汇总
func (r *Report) Summary() Summary {
	sum := Summary{
		RunID:      r.RunID,
		Symbol:     r.Symbol,
		Interval:   r.Interval,
		Candles:    r.Candles,
		From:       r.From,
		To:         r.To,
		Allocation: r.Allocation,
	}
	for _, s := range r.Strategies {
		ss := StrategySummary{Name: s.Name}
		if s.Winner != nil {
			ss.Winner = s.Winner.Combo.String()
		}
		for _, res := range s.Ranked {
			ss.Combos = append(ss.Combos, ComboSummary{
				Combo:         res.Combo.String(),
				ReturnPct:     res.ReturnPct,
				CompoundedPct: res.CompoundedPct,
				Trades:        res.TradeCount,
				WinRatePct:    res.WinRatePct,
				NoTrades:      res.NoTrades,
				OpenPosition:  res.OpenPosition,
			})
		}
		sum.Strategies = append(sum.Strategies, ss)
	}
	return sum
}
