// Package report 打印每个策略的控制台结果表。
package report

import (
	"fmt"
	"io"
	"strings"

	"ma-crossover-backtester/internal/core/model"
)

// Table 单个策略的结果表
type Table struct {
	// Strategy 策略名称
	Strategy model.StrategyName
	// Symbol 交易对
	Symbol string
	// Interval 周期
	Interval string
	// Ranked 已排序的组合结果
	Ranked []*model.ComboResult
	// Winner 最优组合（可为 nil）
	Winner *model.ComboResult
	// InitialValue 名义初始资金
	InitialValue float64
}

const rowFormat = "%-8s %-10s %-8s %-10s %-15s %-12s %-10s\n"

// Print 输出结果表与最优组合行
func Print(w io.Writer, t Table) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n=== Estratégia: %s (%s / %s) ===\n", t.Strategy, t.Symbol, t.Interval)
	fmt.Fprintf(&b, rowFormat, "combo", "retorno%", "trades", "win_rate%", "valor_inicial", "valor_final", "lucro")
	b.WriteString(strings.Repeat("-", 82) + "\n")

	for _, r := range t.Ranked {
		final := model.FinalValue(t.InitialValue, r.ReturnPct)
		fmt.Fprintf(&b, rowFormat,
			r.Combo.String(),
			fmt.Sprintf("%+.2f%%", r.ReturnPct),
			fmt.Sprintf("%d", r.TradeCount),
			fmt.Sprintf("%.2f", r.WinRatePct),
			fmt.Sprintf("%.2f", t.InitialValue),
			fmt.Sprintf("%.2f", final),
			fmt.Sprintf("%.2f", final-t.InitialValue),
		)
	}

	if t.Winner == nil {
		b.WriteString("\nSem resultados\n")
	} else {
		final := model.FinalValue(t.InitialValue, t.Winner.ReturnPct)
		fmt.Fprintf(&b, "\nVencedora (%s): %s  |  %+.2f%%  |  Valor final: %.2f  |  Lucro: %.2f",
			title(string(t.Strategy)), t.Winner.Combo, t.Winner.ReturnPct, final, final-t.InitialValue)
		if t.Winner.NoTrades {
			b.WriteString("  |  sem trades")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// title 首字母大写
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
