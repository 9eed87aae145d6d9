// Package ledger 交易台账测试
package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"ma-crossover-backtester/internal/core/model"
)

func trade(entryIdx, exitIdx int, entry, exit float64) model.Trade {
	return model.NewTrade(model.Position{EntryPrice: entry, EntryIndex: entryIdx, EntryReason: model.ReasonGoldenCross}, exitIdx, time.Time{}, exit, model.ReasonTakeProfit)
}

func TestLedger_Empty(t *testing.T) {
	l := New()
	if l.Count() != 0 || l.WinCount() != 0 {
		t.Fatalf("Count=%d WinCount=%d, want 0/0", l.Count(), l.WinCount())
	}
	if l.WinRatePct() != 0 {
		t.Fatalf("WinRatePct=%f, want 0", l.WinRatePct())
	}
	if l.ReturnPct(1) != 0 || l.CompoundedPct(1) != 0 {
		t.Fatalf("空台账收益应为 0")
	}

	res := l.Result(model.StrategyConservative, model.Combo{Short: 7, Long: 21}, 1)
	if !res.NoTrades || res.TradeCount != 0 || res.WinRatePct != 0 {
		t.Fatalf("res=%+v, want NoTrades", res)
	}
}

func TestLedger_Stats(t *testing.T) {
	l := New()

	// +2%, -1%, +1%
	for _, tr := range []model.Trade{
		trade(1, 3, 100, 102),
		trade(3, 5, 100, 99),
		trade(6, 9, 100, 101),
	} {
		if err := l.Add(tr); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if l.Count() != 3 || l.WinCount() != 2 {
		t.Fatalf("Count=%d WinCount=%d, want 3/2", l.Count(), l.WinCount())
	}
	if math.Abs(l.WinRatePct()-200.0/3.0) > 1e-9 {
		t.Fatalf("WinRatePct=%f, want 66.67", l.WinRatePct())
	}
	if math.Abs(l.ReturnPct(1)-2) > 1e-9 {
		t.Fatalf("ReturnPct=%f, want 2", l.ReturnPct(1))
	}
	if math.Abs(l.ReturnPct(0.5)-1) > 1e-9 {
		t.Fatalf("ReturnPct(0.5)=%f, want 1", l.ReturnPct(0.5))
	}

	// 1.02 × 0.99 × 1.01 = 1.019898
	if math.Abs(l.CompoundedPct(1)-1.9898) > 1e-9 {
		t.Fatalf("CompoundedPct=%f, want 1.9898", l.CompoundedPct(1))
	}
}

func TestLedger_RejectsOverlap(t *testing.T) {
	l := New()
	if err := l.Add(trade(2, 6, 100, 101)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(trade(5, 8, 100, 101)); !errors.Is(err, ErrOverlap) {
		t.Fatalf("err=%v, want ErrOverlap", err)
	}
	if err := l.Add(trade(9, 7, 100, 101)); !errors.Is(err, ErrOverlap) {
		t.Fatalf("err=%v, want ErrOverlap", err)
	}
	if l.Count() != 1 {
		t.Fatalf("Count=%d, want 1", l.Count())
	}
}

func TestLedger_TradesIsCopy(t *testing.T) {
	l := New()
	_ = l.Add(trade(1, 2, 100, 101))
	got := l.Trades()
	got[0].ExitPrice = 0
	if l.Trades()[0].ExitPrice != 101 {
		t.Fatalf("Trades 应返回副本")
	}
}
