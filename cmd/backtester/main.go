// Package main 是均线交叉回测器的入口点。
// 拉取单个交易对的历史 K 线，对保守/激进/MACD 确认/布林带策略和多组均线组合回测，
// 输出逐 K 线审计 CSV、成交 JSONL、运行汇总，并打印每个策略的最优组合。
//
// 重要：本程序只做回测，不会下单。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ma-crossover-backtester/internal/backtest"
	"ma-crossover-backtester/internal/config"
	"ma-crossover-backtester/internal/exchange/binance"
	"ma-crossover-backtester/internal/logging"
	"ma-crossover-backtester/internal/marketdata"
	"ma-crossover-backtester/internal/output/report"
	"ma-crossover-backtester/internal/util/timeutil"
)

func main() {
	var (
		configPath string
		envPath    string
		source     string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&envPath, "env", ".env", "凭证 .env 文件路径")
	flag.StringVar(&source, "source", "", "覆盖 market.source: binance, csv, demo")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if source != "" {
		cfg.Market.Source = source
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "配置验证失败: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.LoadCredentials(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "加载凭证失败: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.App.LogLevel).With(zap.String("app", cfg.App.Name))
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，中止拉取与回测
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，取消运行")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("回测失败", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	src, rest := newSource(cfg, logger)

	if rest != nil {
		info, err := rest.Symbol(ctx, cfg.Market.Symbol)
		if err != nil {
			return err
		}
		if !info.Trading() {
			logger.Warn("交易对当前不可交易，仍使用历史 K 线回测", zap.String("symbol", info.Symbol), zap.String("status", info.Status))
		}
	}

	// 只读余额查询失败不影响回测
	if rest != nil && cfg.Credentials.HasKeys() {
		balCtx, balCancel := context.WithTimeout(ctx, 10*time.Second)
		bal, err := rest.Balance(balCtx, "USDT")
		balCancel()
		if err != nil {
			logger.Warn("查询 USDT 余额失败", zap.Error(err))
		} else {
			logger.Info("USDT 余额", zap.Float64("free", bal.Free), zap.Float64("locked", bal.Locked))
		}
	}

	candles, err := src.Fetch(ctx, cfg.Market.Symbol, cfg.Market.Interval, cfg.Market.Limit)
	if err != nil {
		return fmt.Errorf("获取 K 线失败: %w", err)
	}
	logger.Info("K 线已加载",
		zap.String("source", cfg.Market.Source),
		zap.String("symbol", cfg.Market.Symbol),
		zap.String("interval", cfg.Market.Interval),
		zap.Int("count", len(candles)),
	)

	runner, err := backtest.NewRunner(backtest.SettingsFrom(cfg), logger)
	if err != nil {
		return err
	}
	rep, err := runner.Run(ctx, candles)
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.Output.Dir, "backtest_"+timeutil.RunStamp(time.Now()))
	files, err := writeOutputs(dir, &cfg.Output, rep)
	if err != nil {
		return err
	}
	for _, f := range files {
		logger.Info("输出已保存", zap.String("path", f))
	}

	for _, s := range rep.Strategies {
		if err := report.Print(os.Stdout, report.Table{
			Strategy:     s.Name,
			Symbol:       rep.Symbol,
			Interval:     rep.Interval,
			Ranked:       s.Ranked,
			Winner:       s.Winner,
			InitialValue: cfg.Backtest.InitialValue,
		}); err != nil {
			return fmt.Errorf("打印报告失败: %w", err)
		}
	}
	fmt.Fprintf(os.Stdout, "\nLogs: %s\n", dir)
	return nil
}

// newSource 按配置选择 K 线来源；binance 来源同时返回 REST 客户端用于余额查询
func newSource(cfg *config.Config, logger *zap.Logger) (marketdata.Source, *binance.RESTClient) {
	switch cfg.Market.Source {
	case config.SourceCSV:
		return marketdata.NewCSVSource(cfg.Market.CSVPath), nil
	case config.SourceDemo:
		return marketdata.NewDemoSource(cfg.Market.DemoSeed, cfg.Market.DemoStartPrice), nil
	default:
		rest := binance.NewRESTClient(&cfg.Binance, cfg.Credentials, logger)
		return rest, rest
	}
}
