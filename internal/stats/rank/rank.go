// Package rank 实现组合结果排名与胜者选择。
// 排序键（全序）：收益率降序 → 交易笔数降序 → 胜率降序 → 短周期升序 → 长周期升序。
package rank

import (
	"sort"

	"ma-crossover-backtester/internal/core/model"
)

// Rank 返回排序后的新切片，不修改输入
// nil 元素被丢弃
func Rank(results []*model.ComboResult) []*model.ComboResult {
	out := make([]*model.ComboResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Less 判断 a 是否应排在 b 之前
func Less(a, b *model.ComboResult) bool {
	if a.ReturnPct != b.ReturnPct {
		return a.ReturnPct > b.ReturnPct
	}
	if a.TradeCount != b.TradeCount {
		return a.TradeCount > b.TradeCount
	}
	if a.WinRatePct != b.WinRatePct {
		return a.WinRatePct > b.WinRatePct
	}
	if a.Combo.Short != b.Combo.Short {
		return a.Combo.Short < b.Combo.Short
	}
	return a.Combo.Long < b.Combo.Long
}

// Winner 返回排名第一的结果，空输入返回 nil
func Winner(ranked []*model.ComboResult) *model.ComboResult {
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0]
}
