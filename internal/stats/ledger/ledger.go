// Package ledger 实现单次（策略, 组合）运行的交易台账。
// 收益口径：ReturnPct = Σ pnl_pct × allocation（累加，用于排名）；
// CompoundedPct = (Π(1 + allocation × pnl_pct/100) - 1) × 100（复利，仅展示）。
package ledger

import (
	"errors"
	"fmt"

	"ma-crossover-backtester/internal/core/model"
)

// ErrOverlap 交易在时间上重叠
var ErrOverlap = errors.New("交易时间重叠")

// Ledger 交易台账（单写者）
type Ledger struct {
	// trades 按时间顺序的交易
	trades []model.Trade

	// 维护累计统计（O(1) 更新）
	winCount  int
	sumPnLPct float64
}

// New 创建空台账
func New() *Ledger {
	return &Ledger{}
}

// Add 追加一笔已完成交易
// 出场早于入场，或入场早于上一笔出场时返回 ErrOverlap
func (l *Ledger) Add(t model.Trade) error {
	if t.ExitIndex < t.EntryIndex {
		return fmt.Errorf("%w: 出场下标 %d 早于入场下标 %d", ErrOverlap, t.ExitIndex, t.EntryIndex)
	}
	if n := len(l.trades); n > 0 {
		if last := l.trades[n-1]; t.EntryIndex < last.ExitIndex {
			return fmt.Errorf("%w: 入场下标 %d 早于上一笔出场下标 %d", ErrOverlap, t.EntryIndex, last.ExitIndex)
		}
	}

	l.trades = append(l.trades, t)
	if t.IsWin() {
		l.winCount++
	}
	l.sumPnLPct += t.PnLPct
	return nil
}

// Count 交易笔数
func (l *Ledger) Count() int {
	return len(l.trades)
}

// WinCount 盈利笔数（pnl_pct > 0）
func (l *Ledger) WinCount() int {
	return l.winCount
}

// WinRatePct 胜率（百分比），无交易时为 0
func (l *Ledger) WinRatePct() float64 {
	if len(l.trades) == 0 {
		return 0
	}
	return float64(l.winCount) / float64(len(l.trades)) * 100
}

// ReturnPct 累加收益率（百分比）
// 参数 allocation: 每次入场使用的资金比例（0-1]
func (l *Ledger) ReturnPct(allocation float64) float64 {
	return l.sumPnLPct * allocation
}

// CompoundedPct 复利收益率（百分比）
// 参数 allocation: 每次入场使用的资金比例（0-1]
func (l *Ledger) CompoundedPct(allocation float64) float64 {
	growth := 1.0
	for _, t := range l.trades {
		growth *= 1 + allocation*t.PnLPct/100
	}
	return (growth - 1) * 100
}

// Trades 返回交易列表副本
func (l *Ledger) Trades() []model.Trade {
	out := make([]model.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Result 汇总为组合结果
func (l *Ledger) Result(strategy model.StrategyName, combo model.Combo, allocation float64) *model.ComboResult {
	return &model.ComboResult{
		Strategy:      strategy,
		Combo:         combo,
		Trades:        l.Trades(),
		ReturnPct:     l.ReturnPct(allocation),
		CompoundedPct: l.CompoundedPct(allocation),
		TradeCount:    l.Count(),
		WinCount:      l.WinCount(),
		WinRatePct:    l.WinRatePct(),
		NoTrades:      l.Count() == 0,
	}
}
