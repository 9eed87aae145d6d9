// Package paper 实现均线交叉策略的模拟成交状态机。
// 重要：仅用于回测，不进行任何真实下单。
package paper

import (
	"fmt"

	"ma-crossover-backtester/internal/core/indicator"
	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/core/signal"
	"ma-crossover-backtester/internal/stats/ledger"
)

// Executor 模拟成交执行器（单次策略运行）
// 状态：空仓（pos == nil）或多头（pos != nil），同一时间至多一个持仓。
type Executor struct {
	// policy 策略参数
	policy Policy
	// pos 当前持仓，空仓时为 nil
	pos *model.Position
	// ledger 已完成交易台账
	ledger *ledger.Ledger
	// features 附加指标，策略不需要时为 nil
	features *Features
}

// NewExecutor 创建执行器，初始为空仓
func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy: policy,
		ledger: ledger.New(),
	}
}

// WithFeatures 设置入场确认与离场规则使用的附加指标
func (e *Executor) WithFeatures(f *Features) *Executor {
	e.features = f
	return e
}

// TryOpen 空仓且出现金叉时以收盘价开多
// 策略配置了 Entries 时，所有确认条件都满足才开仓
// 已有持仓、无金叉或确认失败时返回 (nil, false)
func (e *Executor) TryOpen(index int, c model.Candle, cross model.CrossKind) (*model.Position, bool) {
	if e.pos != nil || cross != model.CrossGolden {
		return nil, false
	}
	for _, k := range e.policy.Entries {
		if !k.allows(e.policy, index, e.features) {
			return nil, false
		}
	}
	e.pos = &model.Position{
		EntryPrice:  c.Close,
		EntryIndex:  index,
		EntryTime:   c.OpenTime,
		EntryReason: e.policy.entryReason(),
	}
	return e.pos, true
}

// Evaluate 按策略规则顺序评估持仓是否离场
// 返回：若平仓则返回已完成的 Trade；否则返回 nil。
func (e *Executor) Evaluate(index int, c model.Candle, cross model.CrossKind) (*model.Trade, error) {
	if e.pos == nil || index <= e.pos.EntryIndex {
		return nil, nil
	}

	for _, rule := range e.policy.Exits {
		if !rule.hit(e.policy, e.pos, index, c.Close, cross, e.features) {
			continue
		}
		t := model.NewTrade(*e.pos, index, c.OpenTime, c.Close, rule.Reason)
		if err := e.ledger.Add(t); err != nil {
			return nil, fmt.Errorf("记录交易失败: %w", err)
		}
		e.pos = nil
		return &t, nil
	}
	return nil, nil
}

// Position 当前持仓（空仓返回 nil）
func (e *Executor) Position() *model.Position {
	return e.pos
}

// Ledger 交易台账
func (e *Executor) Ledger() *ledger.Ledger {
	return e.ledger
}

// Run 在一段 K 线上运行一次（策略, 组合）回测
// 纯函数：同样输入必然得到同样的交易序列。
// 数据结束时仍持有的仓位保留在 OpenPosition 中，不计入统计。
// 参数 allocation: 每次入场的资金比例（0-1]
// 返回: 组合结果与逐 K 线审计行
func Run(candles []model.Candle, combo model.Combo, policy Policy, allocation float64) (*model.ComboResult, []model.LogRow, error) {
	closes := model.Closes(candles)
	short := indicator.SMA(closes, combo.Short)
	long := indicator.SMA(closes, combo.Long)
	points := indicator.Points(short, long)
	features := NewFeatures(closes, policy)

	exec := NewExecutor(policy).WithFeatures(features)
	rows := make([]model.LogRow, len(candles))

	for i, c := range candles {
		row := model.NewLogRow(c, combo, policy.Name)
		if short.Defined(i) {
			row.MAShort = model.Float(short.Values[i])
		}
		if long.Defined(i) {
			row.MALong = model.Float(long.Values[i])
		}

		// 任一所需指标无定义的 K 线整根跳过
		if points[i].Defined && features.Ready(i) {
			cross := signal.Classify(points, i)

			// 每根 K 线至多一次状态转换：空仓只看入场，持仓只看离场
			if exec.Position() == nil {
				if pos, opened := exec.TryOpen(i, c, cross); opened {
					row.SignalBuyPrice = model.Float(pos.EntryPrice)
					row.Reason = pos.EntryReason
				}
			} else {
				t, err := exec.Evaluate(i, c, cross)
				if err != nil {
					return nil, nil, fmt.Errorf("组合 %s 第 %d 根 K 线: %w", combo, i, err)
				}
				if t != nil {
					row.SignalSellPrice = model.Float(t.ExitPrice)
					row.TradePnLPct = model.Float(t.PnLPct)
					row.Reason = t.ExitReason
				}
			}
		}
		rows[i] = row
	}

	res := exec.Ledger().Result(policy.Name, combo, allocation)
	if pos := exec.Position(); pos != nil {
		open := *pos
		res.OpenPosition = &open
	}
	return res, rows, nil
}
