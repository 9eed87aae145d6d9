// Package main 是 K 线录制器的入口点。
// 订阅 Binance <symbol>@kline_<interval> 流，把收盘 K 线追加到 CSV，
// 输出文件可直接作为回测器 market.source=csv 的输入。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ma-crossover-backtester/internal/config"
	"ma-crossover-backtester/internal/exchange/binance"
	"ma-crossover-backtester/internal/logging"
	"ma-crossover-backtester/internal/marketdata"
	"ma-crossover-backtester/internal/util/timeutil"
)

func main() {
	var (
		configPath string
		outPath    string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&outPath, "out", "", "覆盖 recorder.output_path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if outPath != "" {
		cfg.Recorder.OutputPath = outPath
	}

	logger := logging.New(cfg.App.LogLevel).Named("recorder")
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("录制器退出", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	w, err := marketdata.OpenCandleWriter(cfg.Recorder.OutputPath)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	client := binance.NewStreamClient(&cfg.Binance, cfg.Market.Symbol, cfg.Market.Interval, cfg.Recorder.BufferSize, logger)
	defer func() {
		err = multierr.Append(err, client.Close())
	}()

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.Connect(startCtx)
	startCancel()
	if err != nil {
		return err
	}
	go client.Run(ctx)

	logger.Info("开始录制",
		zap.String("stream", client.URL()),
		zap.String("path", cfg.Recorder.OutputPath),
	)

	var count int
	for c := range client.Candles() {
		if err := w.Write(c); err != nil {
			return err
		}
		count++
		logger.Debug("K 线已录制",
			zap.String("open_time", timeutil.FormatCandle(c.OpenTime)),
			zap.Float64("close", c.Close),
		)
	}

	m := client.Metrics()
	logger.Info("录制结束",
		zap.Int("candles", count),
		zap.Int64("reconnects", m.ReconnectCount),
		zap.Int64("parse_errors", m.ParseErrorCount),
	)
	return nil
}
