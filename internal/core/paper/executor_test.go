// Package paper 模拟成交状态机测试
package paper

import (
	"math"
	"testing"
	"time"

	"ma-crossover-backtester/internal/core/indicator"
	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/core/signal"
)

func candleAt(i int, close float64) model.Candle {
	open := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
	return model.Candle{
		OpenTime:  open,
		CloseTime: open.Add(time.Hour - time.Millisecond),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1,
	}
}

func candlesFrom(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = candleAt(i, c)
	}
	return out
}

func openAt(t *testing.T, exec *Executor, index int, price float64) {
	t.Helper()
	if _, opened := exec.TryOpen(index, candleAt(index, price), model.CrossGolden); !opened {
		t.Fatalf("TryOpen 应开仓")
	}
}

func TestExecutor_TryOpen(t *testing.T) {
	exec := NewExecutor(Conservative(DefaultTakeProfitPct))

	if _, opened := exec.TryOpen(1, candleAt(1, 100), model.CrossNone); opened {
		t.Fatalf("无金叉不应开仓")
	}
	if _, opened := exec.TryOpen(1, candleAt(1, 100), model.CrossDeath); opened {
		t.Fatalf("死叉不应开仓")
	}

	pos, opened := exec.TryOpen(2, candleAt(2, 100), model.CrossGolden)
	if !opened || pos == nil {
		t.Fatalf("金叉应开仓")
	}
	if pos.EntryPrice != 100 || pos.EntryIndex != 2 || pos.EntryReason != model.ReasonGoldenCross {
		t.Fatalf("pos=%+v", pos)
	}

	// 不加仓
	if _, opened := exec.TryOpen(3, candleAt(3, 100), model.CrossGolden); opened {
		t.Fatalf("已有持仓不应再次开仓")
	}
}

func TestExecutor_Conservative_Exits(t *testing.T) {
	tests := []struct {
		name   string
		close  float64
		cross  model.CrossKind
		reason model.Reason
	}{
		{"止盈", 101.5, model.CrossNone, model.ReasonTakeProfit},
		{"死叉", 100.2, model.CrossDeath, model.ReasonDeathCrossStop},
		{"止盈与死叉同时成立取止盈", 102, model.CrossDeath, model.ReasonTakeProfit},
		{"下跌不止损", 95, model.CrossNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(Conservative(DefaultTakeProfitPct))
			openAt(t, exec, 5, 100)

			tr, err := exec.Evaluate(6, candleAt(6, tt.close), tt.cross)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if tt.reason == "" {
				if tr != nil {
					t.Fatalf("不应平仓, got %+v", tr)
				}
				return
			}
			if tr == nil {
				t.Fatalf("应平仓")
			}
			if tr.ExitReason != tt.reason {
				t.Fatalf("ExitReason=%s, want %s", tr.ExitReason, tt.reason)
			}
			if exec.Position() != nil {
				t.Fatalf("平仓后应为空仓")
			}
		})
	}
}

func TestExecutor_Aggressive_Exits(t *testing.T) {
	tests := []struct {
		name   string
		close  float64
		cross  model.CrossKind
		reason model.Reason
	}{
		{"死叉", 100.5, model.CrossDeath, model.ReasonDeathCross},
		{"止损", 98.5, model.CrossNone, model.ReasonStopLoss},
		{"死叉与止损同时成立取死叉", 98, model.CrossDeath, model.ReasonDeathCross},
		{"上涨不止盈", 110, model.CrossNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(Aggressive(DefaultStopLossPct))
			openAt(t, exec, 5, 100)

			tr, err := exec.Evaluate(6, candleAt(6, tt.close), tt.cross)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if tt.reason == "" {
				if tr != nil {
					t.Fatalf("不应平仓, got %+v", tr)
				}
				return
			}
			if tr == nil || tr.ExitReason != tt.reason {
				t.Fatalf("trade=%+v, want reason %s", tr, tt.reason)
			}
		})
	}
}

func TestExecutor_EntryCandleNotEvaluated(t *testing.T) {
	exec := NewExecutor(Aggressive(DefaultStopLossPct))
	openAt(t, exec, 5, 100)

	tr, err := exec.Evaluate(5, candleAt(5, 90), model.CrossDeath)
	if err != nil || tr != nil {
		t.Fatalf("入场 K 线不应评估离场: trade=%v err=%v", tr, err)
	}
}

func TestExecutor_FlatEvaluateNoop(t *testing.T) {
	exec := NewExecutor(Conservative(DefaultTakeProfitPct))
	tr, err := exec.Evaluate(3, candleAt(3, 100), model.CrossDeath)
	if err != nil || tr != nil {
		t.Fatalf("空仓不应产生交易")
	}
	if exec.Ledger().Count() != 0 {
		t.Fatalf("空仓不应记录交易")
	}
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor(model.StrategyConservative, 2, 3)
	if err != nil || p.Name != model.StrategyConservative || p.TakeProfitPct != 2 {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	if p.Exits[0].Kind != ExitTakeProfit || p.Exits[1].Kind != ExitDeathCross {
		t.Fatalf("保守策略规则顺序错误: %+v", p.Exits)
	}

	p, err = PolicyFor(model.StrategyAggressive, 2, 3)
	if err != nil || p.Name != model.StrategyAggressive || p.StopLossPct != 3 {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	if p.Exits[0].Kind != ExitDeathCross || p.Exits[1].Kind != ExitStopLoss {
		t.Fatalf("激进策略规则顺序错误: %+v", p.Exits)
	}

	p, err = PolicyFor(model.StrategyMACDConfirm, 2, 3)
	if err != nil || p.TakeProfitPct != 2 || p.EntryReason != model.ReasonGoldenCrossMACD {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	if len(p.Entries) != 1 || p.Entries[0] != EntryMACDConfirm || p.Exits[2].Kind != ExitMACDBearishCross {
		t.Fatalf("MACD 策略规则错误: %+v", p)
	}

	p, err = PolicyFor(model.StrategyBollinger, 2, 3)
	if err != nil || p.TakeProfitPct != 2 || p.EntryReason != model.ReasonGoldenCrossBands {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	if len(p.Entries) != 1 || p.Entries[0] != EntryBandContext || p.Exits[2].Kind != ExitUpperBand {
		t.Fatalf("布林带策略规则错误: %+v", p)
	}

	if _, err := PolicyFor("unknown", 1, 1); err == nil {
		t.Fatalf("未知策略应返回错误")
	}
}

// 组合 1x2 时 diff = (close[t] - close[t-1]) / 2：
// 由跌/平转涨为金叉，由涨/平转跌为死叉
var combo1x2 = model.Combo{Short: 1, Long: 2}

func TestRun_Conservative_TakeProfit(t *testing.T) {
	candles := candlesFrom(100, 99, 100, 100.5, 102, 101)

	res, rows, err := Run(candles, combo1x2, Conservative(DefaultTakeProfitPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TradeCount != 1 {
		t.Fatalf("TradeCount=%d, want 1", res.TradeCount)
	}
	tr := res.Trades[0]
	if tr.EntryIndex != 2 || tr.ExitIndex != 4 || tr.ExitReason != model.ReasonTakeProfit {
		t.Fatalf("trade=%+v", tr)
	}
	if math.Abs(res.ReturnPct-2) > 1e-9 || res.WinRatePct != 100 {
		t.Fatalf("ReturnPct=%f WinRatePct=%f, want 2/100", res.ReturnPct, res.WinRatePct)
	}
	if res.OpenPosition != nil {
		t.Fatalf("不应有未平仓持仓")
	}

	if rows[2].SignalBuyPrice == nil || *rows[2].SignalBuyPrice != 100 || rows[2].Reason != model.ReasonGoldenCross {
		t.Fatalf("rows[2]=%+v", rows[2])
	}
	if rows[4].SignalSellPrice == nil || *rows[4].SignalSellPrice != 102 || rows[4].Reason != model.ReasonTakeProfit {
		t.Fatalf("rows[4]=%+v", rows[4])
	}
	if rows[4].TradePnLPct == nil || math.Abs(*rows[4].TradePnLPct-2) > 1e-9 {
		t.Fatalf("rows[4].TradePnLPct=%v", rows[4].TradePnLPct)
	}
	// 第 5 根为死叉但空仓，不入场也不记录
	if rows[5].Reason != "" || rows[5].SignalBuyPrice != nil {
		t.Fatalf("rows[5]=%+v", rows[5])
	}
}

func TestRun_Conservative_DeathCrossStop(t *testing.T) {
	candles := candlesFrom(100, 99, 100, 100.5, 100.2)

	res, _, err := Run(candles, combo1x2, Conservative(DefaultTakeProfitPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TradeCount != 1 || res.Trades[0].ExitReason != model.ReasonDeathCrossStop {
		t.Fatalf("res=%+v", res)
	}
	if math.Abs(res.Trades[0].PnLPct-0.2) > 1e-9 {
		t.Fatalf("PnLPct=%f, want 0.2", res.Trades[0].PnLPct)
	}
}

func TestRun_Conservative_TakeProfitBeatsDeathCross(t *testing.T) {
	// short=2 long=3：idx3 金叉入场 104；idx5 同时出现死叉与止盈（106 >= 105.04）
	candles := candlesFrom(100, 100, 97, 104, 100, 106)
	combo := model.Combo{Short: 2, Long: 3}

	points := indicator.Pair(model.Closes(candles), combo)
	if signal.Classify(points, 3) != model.CrossGolden || signal.Classify(points, 5) != model.CrossDeath {
		t.Fatalf("测试数据应在 idx3 金叉、idx5 死叉")
	}

	res, rows, err := Run(candles, combo, Conservative(DefaultTakeProfitPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TradeCount != 1 {
		t.Fatalf("TradeCount=%d, want 1", res.TradeCount)
	}
	tr := res.Trades[0]
	if tr.EntryIndex != 3 || tr.EntryPrice != 104 || tr.ExitIndex != 5 || tr.ExitPrice != 106 {
		t.Fatalf("trade=%+v", tr)
	}
	if tr.ExitReason != model.ReasonTakeProfit {
		t.Fatalf("ExitReason=%s, want %s", tr.ExitReason, model.ReasonTakeProfit)
	}
	if rows[5].Reason != model.ReasonTakeProfit {
		t.Fatalf("rows[5].Reason=%s", rows[5].Reason)
	}
	if res.OpenPosition != nil {
		t.Fatalf("不应有未平仓持仓")
	}
}

func TestRun_Aggressive_DeathCross(t *testing.T) {
	candles := candlesFrom(100, 99, 100, 100.5, 102, 101)

	res, _, err := Run(candles, combo1x2, Aggressive(DefaultStopLossPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TradeCount != 1 {
		t.Fatalf("TradeCount=%d, want 1", res.TradeCount)
	}
	tr := res.Trades[0]
	if tr.ExitIndex != 5 || tr.ExitReason != model.ReasonDeathCross || math.Abs(tr.PnLPct-1) > 1e-9 {
		t.Fatalf("trade=%+v", tr)
	}
}

func TestRun_Aggressive_DeathCrossBeatsStopLoss(t *testing.T) {
	// idx3 同时满足死叉与止损（98 <= 99）
	candles := candlesFrom(100, 99, 100, 98)

	res, _, err := Run(candles, combo1x2, Aggressive(DefaultStopLossPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TradeCount != 1 || res.Trades[0].ExitReason != model.ReasonDeathCross {
		t.Fatalf("res=%+v", res)
	}
	if res.WinRatePct != 0 {
		t.Fatalf("WinRatePct=%f, want 0", res.WinRatePct)
	}
}

func TestRun_OpenPositionAtEndExcluded(t *testing.T) {
	// 收盘价 [100, 101, 99, 103, 98]，short=2 long=3：idx4 金叉入场后数据结束
	candles := candlesFrom(100, 101, 99, 103, 98)

	res, rows, err := Run(candles, model.Combo{Short: 2, Long: 3}, Conservative(DefaultTakeProfitPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.NoTrades || res.TradeCount != 0 || res.ReturnPct != 0 || res.WinRatePct != 0 {
		t.Fatalf("res=%+v, want no trades", res)
	}
	if res.OpenPosition == nil || res.OpenPosition.EntryPrice != 98 || res.OpenPosition.EntryIndex != 4 {
		t.Fatalf("OpenPosition=%+v", res.OpenPosition)
	}

	if rows[0].MAShort != nil || rows[0].MALong != nil {
		t.Fatalf("rows[0] 均线应缺省")
	}
	if rows[1].MAShort == nil || *rows[1].MAShort != 100.5 || rows[1].MALong != nil {
		t.Fatalf("rows[1]=%+v", rows[1])
	}
	if rows[4].MAShort == nil || *rows[4].MAShort != 100.5 || rows[4].MALong == nil || *rows[4].MALong != 100 {
		t.Fatalf("rows[4]=%+v", rows[4])
	}
	if rows[4].Combo != "2x3" || rows[4].Strategy != model.StrategyConservative {
		t.Fatalf("rows[4] combo/strategy=%s/%s", rows[4].Combo, rows[4].Strategy)
	}
}

func TestRun_InsufficientHistory(t *testing.T) {
	candles := candlesFrom(100, 101, 102)

	res, rows, err := Run(candles, model.Combo{Short: 7, Long: 21}, Aggressive(DefaultStopLossPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.NoTrades || res.OpenPosition != nil {
		t.Fatalf("历史不足应无交易: %+v", res)
	}
	if len(rows) != 3 || rows[2].MALong != nil {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestRun_Empty(t *testing.T) {
	res, rows, err := Run(nil, combo1x2, Conservative(DefaultTakeProfitPct), 1)
	if err != nil || !res.NoTrades || len(rows) != 0 {
		t.Fatalf("res=%+v rows=%d err=%v", res, len(rows), err)
	}
}

func macdFeatures(line, sig []float64) *Features {
	n := len(line)
	hist := make([]float64, n)
	for i := range line {
		hist[i] = line[i] - sig[i]
	}
	return &Features{
		hasMACD: true,
		macd: indicator.MACDSeries{
			Line:      indicator.Series{Values: line, Start: 0},
			Signal:    indicator.Series{Values: sig, Start: 0},
			Histogram: indicator.Series{Values: hist, Start: 0},
		},
	}
}

func bandFeatures(positions ...float64) *Features {
	return &Features{
		hasBands: true,
		bands: indicator.BandSeries{
			Position: indicator.Series{Values: positions, Start: 0},
		},
	}
}

func TestExecutor_TryOpen_MACDConfirm(t *testing.T) {
	// hist = [0, 0.5, -0.5, 0.25]
	f := macdFeatures([]float64{0, 1, 2, 2.5}, []float64{0, 0.5, 2.5, 2.25})

	tests := []struct {
		name  string
		index int
		want  bool
	}{
		{"首根无前值", 0, false},
		{"多头且柱状图增长", 1, true},
		{"MACD 线低于信号线", 2, false},
		{"多头且柱状图由负转正", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(MACDConfirm(DefaultTakeProfitPct)).WithFeatures(f)
			pos, opened := exec.TryOpen(tt.index, candleAt(tt.index, 100), model.CrossGolden)
			if opened != tt.want {
				t.Fatalf("opened=%v, want %v", opened, tt.want)
			}
			if opened && pos.EntryReason != model.ReasonGoldenCrossMACD {
				t.Fatalf("EntryReason=%s", pos.EntryReason)
			}
		})
	}

	// 没有附加指标时确认条件不满足
	exec := NewExecutor(MACDConfirm(DefaultTakeProfitPct))
	if _, opened := exec.TryOpen(1, candleAt(1, 100), model.CrossGolden); opened {
		t.Fatalf("缺少 MACD 时不应开仓")
	}
	// 确认通过但无金叉
	exec = NewExecutor(MACDConfirm(DefaultTakeProfitPct)).WithFeatures(f)
	if _, opened := exec.TryOpen(1, candleAt(1, 100), model.CrossNone); opened {
		t.Fatalf("无金叉时不应开仓")
	}
}

func TestExecutor_TryOpen_BandContext(t *testing.T) {
	f := bandFeatures(0.05, 0.1, 0.3, 0.5, 0.7)
	want := []bool{false, false, true, false, false}
	for i, w := range want {
		exec := NewExecutor(Bollinger(DefaultTakeProfitPct)).WithFeatures(f)
		pos, opened := exec.TryOpen(i, candleAt(i, 100), model.CrossGolden)
		if opened != w {
			t.Fatalf("position=%f opened=%v, want %v", f.bands.Position.Values[i], opened, w)
		}
		if opened && pos.EntryReason != model.ReasonGoldenCrossBands {
			t.Fatalf("EntryReason=%s", pos.EntryReason)
		}
	}
}

func TestExecutor_Evaluate_Bollinger(t *testing.T) {
	tests := []struct {
		name       string
		close      float64
		position   float64
		cross      model.CrossKind
		wantReason model.Reason
	}{
		{"带内持有", 100.5, 0.6, model.CrossNone, ""},
		{"阈值本身不离场", 100.5, 0.9, model.CrossNone, ""},
		{"接近上轨离场", 100.5, 0.95, model.CrossNone, model.ReasonBandOverbought},
		{"止盈优先于上轨", 101.5, 0.95, model.CrossNone, model.ReasonTakeProfit},
		{"死叉优先于上轨", 100.5, 0.95, model.CrossDeath, model.ReasonDeathCross},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := bandFeatures(0.3, tt.position)
			exec := NewExecutor(Bollinger(DefaultTakeProfitPct)).WithFeatures(f)
			if _, opened := exec.TryOpen(0, candleAt(0, 100), model.CrossGolden); !opened {
				t.Fatalf("应开仓")
			}
			tr, err := exec.Evaluate(1, candleAt(1, tt.close), tt.cross)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if tt.wantReason == "" {
				if tr != nil {
					t.Fatalf("不应离场: %+v", tr)
				}
				return
			}
			if tr == nil || tr.ExitReason != tt.wantReason {
				t.Fatalf("trade=%+v, want %s", tr, tt.wantReason)
			}
		})
	}
}

func TestExecutor_Evaluate_MACDBearishCross(t *testing.T) {
	// idx0 入场（line > signal），idx1 仍在上方，idx2 下穿，idx3 继续在下方
	f := macdFeatures([]float64{1, 1.2, 0.8, 0.5}, []float64{0.5, 1, 1, 0.9})

	exec := NewExecutor(MACDConfirm(DefaultTakeProfitPct)).WithFeatures(f)
	exec.pos = &model.Position{EntryPrice: 100, EntryIndex: 0, EntryReason: model.ReasonGoldenCrossMACD}

	tr, err := exec.Evaluate(1, candleAt(1, 100.2), model.CrossNone)
	if err != nil || tr != nil {
		t.Fatalf("idx1 不应离场: %+v %v", tr, err)
	}
	tr, err = exec.Evaluate(2, candleAt(2, 100.2), model.CrossNone)
	if err != nil || tr == nil || tr.ExitReason != model.ReasonMACDBearishCross {
		t.Fatalf("idx2 应 MACD 死叉离场: %+v %v", tr, err)
	}

	// 已在下方时不是新的下穿
	exec = NewExecutor(MACDConfirm(DefaultTakeProfitPct)).WithFeatures(f)
	exec.pos = &model.Position{EntryPrice: 100, EntryIndex: 2}
	if tr, _ := exec.Evaluate(3, candleAt(3, 100.2), model.CrossNone); tr != nil {
		t.Fatalf("idx3 不应离场: %+v", tr)
	}
}

func TestRun_Bollinger_SkipsUntilBandsReady(t *testing.T) {
	// 1x2 组合在 idx2 金叉，但布林带需 20 根 K 线，整段数据都未就绪
	candles := candlesFrom(100, 99, 100, 100.5, 102, 101)

	res, rows, err := Run(candles, combo1x2, Bollinger(DefaultTakeProfitPct), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.NoTrades || res.OpenPosition != nil {
		t.Fatalf("布林带未就绪时不应入场: %+v", res)
	}
	for i, r := range rows {
		if r.Reason != "" {
			t.Fatalf("rows[%d].Reason=%s", i, r.Reason)
		}
	}
}

func TestNewFeatures_OnlyWhatPolicyNeeds(t *testing.T) {
	closes := []float64{1, 2, 3}
	if f := NewFeatures(closes, Conservative(DefaultTakeProfitPct)); f != nil {
		t.Fatalf("保守策略不需要附加指标")
	}
	if !(*Features)(nil).Ready(0) {
		t.Fatalf("nil Features 应始终就绪")
	}
	f := NewFeatures(closes, MACDConfirm(DefaultTakeProfitPct))
	if f == nil || !f.hasMACD || f.hasBands || !f.Ready(0) {
		t.Fatalf("MACD 策略 features=%+v", f)
	}
	f = NewFeatures(closes, Bollinger(DefaultTakeProfitPct))
	if f == nil || f.hasMACD || !f.hasBands || f.Ready(2) {
		t.Fatalf("布林带策略 features=%+v", f)
	}
}
