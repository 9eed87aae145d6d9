// Package backtest 编排一次完整回测：校验数据、按（策略, 组合）并行运行纸面执行器、
// 按策略排名并汇总报告。
package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ma-crossover-backtester/internal/config"
	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/core/paper"
	"ma-crossover-backtester/internal/marketdata"
	"ma-crossover-backtester/internal/stats/rank"
)

// Settings 回测参数，创建 Runner 后不再修改
type Settings struct {
	// Symbol 交易对
	Symbol string
	// Interval K 线周期
	Interval string
	// Allocation 每次入场资金比例（0-1]
	Allocation float64
	// TakeProfitPct 止盈百分比（保守、MACD、布林带策略）
	TakeProfitPct float64
	// StopLossPct 激进策略止损百分比
	StopLossPct float64
	// Strategies 参与回测的策略，按此顺序输出
	Strategies []model.StrategyName
	// Combos 均线组合，按此顺序输出审计行
	Combos []model.Combo
	// Workers 并行 worker 数
	Workers int
}

// SettingsFrom 从配置构建回测参数
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Symbol:        cfg.Market.Symbol,
		Interval:      cfg.Market.Interval,
		Allocation:    cfg.Backtest.Allocation,
		TakeProfitPct: cfg.Backtest.TakeProfitPct,
		StopLossPct:   cfg.Backtest.StopLossPct,
		Strategies:    append([]model.StrategyName(nil), cfg.Backtest.Strategies...),
		Combos:        cfg.Backtest.AllCombos(),
		Workers:       cfg.Backtest.Workers,
	}
}

// Validate 校验参数
func (s Settings) Validate() error {
	var errs error
	if s.Allocation <= 0 || s.Allocation > 1 {
		errs = multierr.Append(errs, fmt.Errorf("allocation 必须在 (0, 1] 范围内: %v", s.Allocation))
	}
	if s.TakeProfitPct <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("take_profit_pct 必须为正数: %v", s.TakeProfitPct))
	}
	if s.StopLossPct <= 0 || s.StopLossPct >= 100 {
		errs = multierr.Append(errs, fmt.Errorf("stop_loss_pct 必须在 (0, 100) 范围内: %v", s.StopLossPct))
	}
	if len(s.Strategies) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("至少需要一个策略"))
	}
	if len(s.Combos) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("至少需要一个均线组合"))
	}
	seen := make(map[model.Combo]bool, len(s.Combos))
	for _, c := range s.Combos {
		if c.Short <= 0 || c.Long <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("均线周期必须为正: %s", c))
		}
		if seen[c] {
			errs = multierr.Append(errs, fmt.Errorf("均线组合重复: %s", c))
		}
		seen[c] = true
	}
	for _, name := range s.Strategies {
		if _, err := paper.PolicyFor(name, s.TakeProfitPct, s.StopLossPct); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Runner 回测编排器
type Runner struct {
	// settings 回测参数
	settings Settings
	// policies 与 settings.Strategies 一一对应的执行策略
	policies []paper.Policy
	// logger 日志记录器
	logger *zap.Logger
	// newID 运行标识生成器
	newID func() string
}

// NewRunner 创建回测编排器
func NewRunner(settings Settings, logger *zap.Logger) (*Runner, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("回测参数无效: %w", err)
	}
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	policies := make([]paper.Policy, len(settings.Strategies))
	for i, name := range settings.Strategies {
		p, _ := paper.PolicyFor(name, settings.TakeProfitPct, settings.StopLossPct)
		policies[i] = p
	}
	return &Runner{
		settings: settings,
		policies: policies,
		logger:   logger.Named("backtest"),
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// Settings 返回回测参数副本
func (r *Runner) Settings() Settings {
	return r.settings
}

// job 单个（策略, 组合）任务
type job struct {
	strategy int
	combo    int
}

// outcome 任务结果
type outcome struct {
	result *model.ComboResult
	rows   []model.LogRow
}

// Run 对 candles 执行全部（策略, 组合）回测
// 数据不完整时返回 marketdata.ErrDataIntegrity，整段数据被拒绝
// 组合之间互不影响，结果按下标存储，因此输出与 worker 数无关
func (r *Runner) Run(ctx context.Context, candles []model.Candle) (*Report, error) {
	if err := marketdata.Validate(candles); err != nil {
		return nil, err
	}

	start := time.Now()
	s := r.settings
	nCombos := len(s.Combos)
	outcomes := make([]outcome, len(s.Strategies)*nCombos)

	logger := r.logger.With(zap.String("symbol", s.Symbol), zap.String("interval", s.Interval))
	logger.Info("开始回测",
		zap.Int("candles", len(candles)),
		zap.Int("strategies", len(s.Strategies)),
		zap.Int("combos", nCombos),
		zap.Int("workers", s.Workers),
	)

	jobs := make(chan job)
	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  error
	)
	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				policy := r.policies[j.strategy]
				combo := s.Combos[j.combo]
				res, rows, err := paper.Run(candles, combo, policy, s.Allocation)
				if err != nil {
					errMu.Lock()
					errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", policy.Name, combo, err))
					errMu.Unlock()
					continue
				}
				outcomes[j.strategy*nCombos+j.combo] = outcome{result: res, rows: rows}
				logger.Debug("组合完成",
					zap.String("strategy", string(policy.Name)),
					zap.String("combo", combo.String()),
					zap.Int("trades", res.TradeCount),
					zap.Float64("return_pct", res.ReturnPct),
				)
			}
		}()
	}

	var ctxErr error
dispatch:
	for si := range s.Strategies {
		for ci := range s.Combos {
			if err := ctx.Err(); err != nil {
				ctxErr = err
				break dispatch
			}
			select {
			case <-ctx.Done():
				ctxErr = ctx.Err()
				break dispatch
			case jobs <- job{strategy: si, combo: ci}:
			}
		}
	}
	close(jobs)
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}
	if errs != nil {
		return nil, errs
	}

	report := &Report{
		RunID:      r.newID(),
		Symbol:     s.Symbol,
		Interval:   s.Interval,
		Candles:    len(candles),
		Allocation: s.Allocation,
	}
	if len(candles) > 0 {
		report.From = candles[0].OpenTime
		report.To = candles[len(candles)-1].CloseTime
	}

	for si, name := range s.Strategies {
		sr := StrategyReport{Name: name}
		results := make([]*model.ComboResult, nCombos)
		sr.Rows = make([][]model.LogRow, nCombos)
		for ci := range s.Combos {
			o := outcomes[si*nCombos+ci]
			results[ci] = o.result
			sr.Rows[ci] = o.rows
		}
		sr.Ranked = rank.Rank(results)
		sr.Winner = rank.Winner(sr.Ranked)
		report.Strategies = append(report.Strategies, sr)

		if sr.Winner != nil {
			logger.Info("策略最优组合",
				zap.String("strategy", string(name)),
				zap.String("combo", sr.Winner.Combo.String()),
				zap.Float64("return_pct", sr.Winner.ReturnPct),
				zap.Int("trades", sr.Winner.TradeCount),
				zap.Float64("win_rate_pct", sr.Winner.WinRatePct),
			)
		}
	}

	logger.Info("回测完成", zap.String("run_id", report.RunID), zap.Duration("elapsed", time.Since(start)))
	return report, nil
}
