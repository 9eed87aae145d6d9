package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"

	"ma-crossover-backtester/internal/backtest"
	"ma-crossover-backtester/internal/config"
	"ma-crossover-backtester/internal/output/csvlog"
	"ma-crossover-backtester/internal/output/jsonl"
)

// writeOutputs 将回测结果写入 dir，返回已写入的文件
// 每个策略一个审计 CSV（全部组合依次追加），另有 trades.jsonl 与 summary.json
func writeOutputs(dir string, cfg *config.OutputConfig, rep *backtest.Report) (files []string, err error) {
	if cfg.CSVEnabled {
		for _, s := range rep.Strategies {
			path := filepath.Join(dir, csvlog.FileName(s.Name, rep.Symbol, rep.Interval))
			if werr := writeStrategyLog(path, s); werr != nil {
				return files, werr
			}
			files = append(files, path)
		}
	}

	if cfg.TradesEnabled {
		path := filepath.Join(dir, "trades.jsonl")
		w, werr := jsonl.NewWriter(path, 0)
		if werr != nil {
			return files, fmt.Errorf("创建 trades writer 失败: %w", werr)
		}
		for _, rec := range rep.TradeRecords() {
			if werr := w.Write(rec); werr != nil {
				err = multierr.Append(err, werr)
				break
			}
		}
		if err = multierr.Append(err, w.Close()); err != nil {
			return files, err
		}
		files = append(files, path)
	}

	if cfg.SummaryEnabled {
		path := filepath.Join(dir, "summary.json")
		if werr := jsonl.WriteFile(path, rep.Summary()); werr != nil {
			return files, werr
		}
		files = append(files, path)
	}
	return files, nil
}

func writeStrategyLog(path string, s backtest.StrategyReport) (err error) {
	w, err := csvlog.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()
	for _, rows := range s.Rows {
		if err := w.WriteRows(rows); err != nil {
			return err
		}
	}
	return nil
}
