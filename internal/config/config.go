// Package config 负责加载和验证 YAML 配置文件。
// 提供回测所需的所有配置项，包括行情来源、Binance 连接、策略参数、组合列表和输出设置。
// 凭证不写入 YAML，仅从环境变量（可由 .env 提供）读取。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ma-crossover-backtester/internal/core/model"
)

// 行情来源
const (
	// SourceBinance 从 Binance REST 拉取
	SourceBinance = "binance"
	// SourceCSV 从本地 CSV 读取
	SourceCSV = "csv"
	// SourceDemo 使用确定性模拟数据
	SourceDemo = "demo"
)

// 凭证环境变量名
const (
	EnvAPIKey    = "BINANCE_API_KEY"
	EnvAPISecret = "BINANCE_API_SECRET"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Market 行情配置
	Market MarketConfig `yaml:"market"`
	// Binance Binance 连接配置
	Binance BinanceConfig `yaml:"binance"`
	// Backtest 回测参数
	Backtest BacktestConfig `yaml:"backtest"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
	// Recorder K 线录制配置
	Recorder RecorderConfig `yaml:"recorder"`

	// Credentials 凭证（仅来自环境变量）
	Credentials Credentials `yaml:"-"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// MarketConfig 行情配置
type MarketConfig struct {
	// Symbol 交易对，如 BTCUSDT
	Symbol string `yaml:"symbol"`
	// Interval K 线周期，如 1h
	Interval string `yaml:"interval"`
	// Limit 拉取 K 线数量
	Limit int `yaml:"limit"`
	// Source 行情来源: binance, csv, demo
	Source string `yaml:"source"`
	// CSVPath source=csv 时的文件路径
	CSVPath string `yaml:"csv_path"`
	// DemoSeed source=demo 时的随机种子
	DemoSeed int64 `yaml:"demo_seed"`
	// DemoStartPrice source=demo 时的起始价格
	DemoStartPrice float64 `yaml:"demo_start_price"`
}

// BinanceConfig Binance 连接配置
type BinanceConfig struct {
	// RESTURL REST 基础地址
	RESTURL string `yaml:"rest_url"`
	// WSURL WebSocket 基础地址
	WSURL string `yaml:"ws_url"`
	// TimeoutMs HTTP 请求超时时间（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// MaxRetries 请求失败最大重试次数
	MaxRetries int `yaml:"max_retries"`
	// PingIntervalMs WebSocket 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// ReadTimeoutMs WebSocket 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// BacktestConfig 回测参数
type BacktestConfig struct {
	// Allocation 每次入场使用的资金比例（0-1]
	Allocation float64 `yaml:"allocation"`
	// TakeProfitPct 保守策略止盈百分比
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	// StopLossPct 激进策略止损百分比
	StopLossPct float64 `yaml:"stop_loss_pct"`
	// Strategies 参与回测的策略
	Strategies []model.StrategyName `yaml:"strategies"`
	// Combos 均线组合列表
	Combos []model.Combo `yaml:"combos"`
	// ComboGrid 均线组合网格，可选；生成的组合追加在 Combos 之后
	ComboGrid *ComboGridConfig `yaml:"combo_grid"`
	// Workers 并行运行的 worker 数
	Workers int `yaml:"workers"`
	// InitialValue 报告中使用的初始资金
	InitialValue float64 `yaml:"initial_value"`
}

// ComboGridConfig 均线组合网格
// 生成 short ∈ [ShortMin, ShortMax]、long ∈ [LongMin, LongMax] 且 short < long 的全部组合
type ComboGridConfig struct {
	// ShortMin 短周期下限
	ShortMin int `yaml:"short_min"`
	// ShortMax 短周期上限（含）
	ShortMax int `yaml:"short_max"`
	// ShortStep 短周期步长，默认 1
	ShortStep int `yaml:"short_step"`
	// LongMin 长周期下限
	LongMin int `yaml:"long_min"`
	// LongMax 长周期上限（含）
	LongMax int `yaml:"long_max"`
	// LongStep 长周期步长，默认 1
	LongStep int `yaml:"long_step"`
	// IncludeClassic 是否追加 ClassicCombos 中网格未覆盖的组合
	IncludeClassic bool `yaml:"include_classic"`
}

// Combos 按 short 升序、long 升序生成网格组合
func (g ComboGridConfig) Combos() []model.Combo {
	var out []model.Combo
	if g.ShortStep <= 0 || g.LongStep <= 0 {
		return out
	}
	for s := g.ShortMin; s <= g.ShortMax; s += g.ShortStep {
		for l := g.LongMin; l <= g.LongMax; l += g.LongStep {
			if s > 0 && s < l {
				out = append(out, model.Combo{Short: s, Long: l})
			}
		}
	}
	if g.IncludeClassic {
		out = append(out, ClassicCombos...)
	}
	return out
}

// AllCombos 返回显式组合与网格组合合并去重后的结果，保持首次出现的顺序
func (b BacktestConfig) AllCombos() []model.Combo {
	all := append([]model.Combo(nil), b.Combos...)
	if b.ComboGrid == nil {
		return all
	}
	seen := make(map[model.Combo]bool, len(all))
	for _, c := range all {
		seen[c] = true
	}
	for _, c := range b.ComboGrid.Combos() {
		if !seen[c] {
			seen[c] = true
			all = append(all, c)
		}
	}
	return all
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 日志根目录，每次运行在其下创建带时间戳的子目录
	Dir string `yaml:"dir"`
	// CSVEnabled 是否输出逐 K 线 CSV 日志
	CSVEnabled bool `yaml:"csv_enabled"`
	// TradesEnabled 是否输出 trades.jsonl
	TradesEnabled bool `yaml:"trades_enabled"`
	// SummaryEnabled 是否输出 summary.json
	SummaryEnabled bool `yaml:"summary_enabled"`
}

// RecorderConfig K 线录制配置
type RecorderConfig struct {
	// OutputPath 录制文件路径
	OutputPath string `yaml:"output_path"`
	// BufferSize 事件通道缓冲大小
	BufferSize int `yaml:"buffer_size"`
}

// Credentials Binance 只读凭证
type Credentials struct {
	// APIKey API Key
	APIKey string
	// APISecret API Secret
	APISecret string
}

// HasKeys 是否配置了完整凭证
func (c Credentials) HasKeys() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// DefaultCombos 默认均线组合
var DefaultCombos = []model.Combo{
	{Short: 5, Long: 20},
	{Short: 7, Long: 21},
	{Short: 7, Long: 25},
	{Short: 8, Long: 21},
	{Short: 9, Long: 21},
	{Short: 9, Long: 27},
	{Short: 10, Long: 30},
	{Short: 12, Long: 26},
}

// ClassicCombos 常用均线组合，网格 include_classic 时追加
var ClassicCombos = []model.Combo{
	{Short: 7, Long: 21},
	{Short: 8, Long: 21},
	{Short: 9, Long: 27},
	{Short: 10, Long: 30},
	{Short: 12, Long: 26},
	{Short: 20, Long: 50},
	{Short: 21, Long: 55},
	{Short: 24, Long: 72},
}

// KnownStrategies 可配置的策略
var KnownStrategies = []model.StrategyName{
	model.StrategyConservative,
	model.StrategyAggressive,
	model.StrategyMACDConfirm,
	model.StrategyBollinger,
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容、设置默认值并验证
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// LoadCredentials 从 .env（若存在）和环境变量加载凭证
// .env 不存在不视为错误；已存在的环境变量优先
func (c *Config) LoadCredentials(envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("加载 %s 失败: %w", envPath, err)
		}
	}
	c.Credentials = Credentials{
		APIKey:    strings.TrimSpace(os.Getenv(EnvAPIKey)),
		APISecret: strings.TrimSpace(os.Getenv(EnvAPISecret)),
	}
	return nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "ma-crossover-backtester"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Market.Symbol == "" {
		c.Market.Symbol = "BTCUSDT"
	}
	c.Market.Symbol = strings.ToUpper(c.Market.Symbol)
	if c.Market.Interval == "" {
		c.Market.Interval = "1h"
	}
	if c.Market.Limit == 0 {
		c.Market.Limit = 1000
	}
	if c.Market.Source == "" {
		c.Market.Source = SourceBinance
	}
	if c.Market.DemoSeed == 0 {
		c.Market.DemoSeed = 42
	}
	if c.Market.DemoStartPrice == 0 {
		c.Market.DemoStartPrice = 45000
	}

	if c.Binance.RESTURL == "" {
		c.Binance.RESTURL = "https://api.binance.com"
	}
	if c.Binance.WSURL == "" {
		c.Binance.WSURL = "wss://stream.binance.com:9443/ws"
	}
	if c.Binance.TimeoutMs == 0 {
		c.Binance.TimeoutMs = 10000 // 10 秒
	}
	if c.Binance.MaxRetries == 0 {
		c.Binance.MaxRetries = 3
	}
	if c.Binance.PingIntervalMs == 0 {
		c.Binance.PingIntervalMs = 15000 // 15 秒
	}
	if c.Binance.ReadTimeoutMs == 0 {
		c.Binance.ReadTimeoutMs = 60000 // 60 秒
	}

	if c.Backtest.Allocation == 0 {
		c.Backtest.Allocation = 1.0
	}
	if c.Backtest.TakeProfitPct == 0 {
		c.Backtest.TakeProfitPct = 1.0
	}
	if c.Backtest.StopLossPct == 0 {
		c.Backtest.StopLossPct = 1.0
	}
	if len(c.Backtest.Strategies) == 0 {
		c.Backtest.Strategies = []model.StrategyName{model.StrategyConservative, model.StrategyAggressive}
	}
	if len(c.Backtest.Combos) == 0 && c.Backtest.ComboGrid == nil {
		c.Backtest.Combos = append([]model.Combo(nil), DefaultCombos...)
	}
	if g := c.Backtest.ComboGrid; g != nil {
		if g.ShortStep == 0 {
			g.ShortStep = 1
		}
		if g.LongStep == 0 {
			g.LongStep = 1
		}
	}
	if c.Backtest.Workers == 0 {
		c.Backtest.Workers = 1
	}
	if c.Backtest.InitialValue == 0 {
		c.Backtest.InitialValue = 100
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./logs"
	}

	if c.Recorder.OutputPath == "" {
		c.Recorder.OutputPath = fmt.Sprintf("./data/%s_%s.csv", c.Market.Symbol, c.Market.Interval)
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = 100
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	if c.Market.Symbol == "" {
		errs = append(errs, "market.symbol: 交易对不能为空")
	}
	if c.Market.Interval == "" {
		errs = append(errs, "market.interval: K 线周期不能为空")
	}
	if c.Market.Limit <= 0 {
		errs = append(errs, "market.limit: K 线数量必须为正数")
	}
	switch c.Market.Source {
	case SourceBinance, SourceDemo:
	case SourceCSV:
		if c.Market.CSVPath == "" {
			errs = append(errs, "market.csv_path: source=csv 时必须配置文件路径")
		}
	default:
		errs = append(errs, fmt.Sprintf("market.source: 无效的行情来源 '%s'，有效值: binance, csv, demo", c.Market.Source))
	}
	if c.Market.DemoStartPrice <= 0 {
		errs = append(errs, "market.demo_start_price: 起始价格必须为正数")
	}

	if c.Market.Source == SourceBinance && c.Binance.RESTURL == "" {
		errs = append(errs, "binance.rest_url: REST 地址不能为空")
	}
	if c.Binance.TimeoutMs <= 0 {
		errs = append(errs, "binance.timeout_ms: 超时时间必须为正数")
	}
	if c.Binance.MaxRetries < 0 {
		errs = append(errs, "binance.max_retries: 重试次数不能为负数")
	}

	if c.Backtest.Allocation <= 0 || c.Backtest.Allocation > 1 {
		errs = append(errs, fmt.Sprintf("backtest.allocation: 资金比例必须在 (0, 1] 之间，当前值: %f", c.Backtest.Allocation))
	}
	if c.Backtest.TakeProfitPct <= 0 {
		errs = append(errs, "backtest.take_profit_pct: 止盈百分比必须为正数")
	}
	if c.Backtest.StopLossPct <= 0 || c.Backtest.StopLossPct >= 100 {
		errs = append(errs, "backtest.stop_loss_pct: 止损百分比必须在 (0, 100) 之间")
	}
	if c.Backtest.Workers <= 0 {
		errs = append(errs, "backtest.workers: worker 数必须为正数")
	}
	if c.Backtest.InitialValue <= 0 {
		errs = append(errs, "backtest.initial_value: 初始资金必须为正数")
	}
	if len(c.Backtest.Strategies) == 0 {
		errs = append(errs, "backtest.strategies: 至少需要配置一个策略")
	}
	seenStrategy := make(map[model.StrategyName]bool)
	known := make(map[model.StrategyName]bool, len(KnownStrategies))
	names := make([]string, len(KnownStrategies))
	for i, s := range KnownStrategies {
		known[s] = true
		names[i] = string(s)
	}
	for i, s := range c.Backtest.Strategies {
		if !known[s] {
			errs = append(errs, fmt.Sprintf("backtest.strategies[%d]: 未知策略 '%s'，有效值: %s", i, s, strings.Join(names, ", ")))
		}
		if seenStrategy[s] {
			errs = append(errs, fmt.Sprintf("backtest.strategies[%d]: 策略 '%s' 重复", i, s))
		}
		seenStrategy[s] = true
	}
	if g := c.Backtest.ComboGrid; g != nil {
		if g.ShortMin <= 0 || g.LongMin <= 0 {
			errs = append(errs, "backtest.combo_grid: short_min 和 long_min 必须为正数")
		}
		if g.ShortMin > g.ShortMax || g.LongMin > g.LongMax {
			errs = append(errs, fmt.Sprintf("backtest.combo_grid: 下限不能大于上限，short [%d, %d]，long [%d, %d]", g.ShortMin, g.ShortMax, g.LongMin, g.LongMax))
		}
		if g.ShortStep <= 0 || g.LongStep <= 0 {
			errs = append(errs, "backtest.combo_grid: 步长必须为正数")
		}
		if len(g.Combos()) == 0 {
			errs = append(errs, "backtest.combo_grid: 网格未生成任何 short < long 的组合")
		}
	}
	if len(c.Backtest.AllCombos()) == 0 {
		errs = append(errs, "backtest.combos: 至少需要配置一个均线组合")
	}
	seenCombo := make(map[model.Combo]bool)
	for i, cb := range c.Backtest.Combos {
		if cb.Short <= 0 || cb.Long <= 0 {
			errs = append(errs, fmt.Sprintf("backtest.combos[%d]: 周期必须为正数，当前值: %s", i, cb))
		}
		if seenCombo[cb] {
			errs = append(errs, fmt.Sprintf("backtest.combos[%d]: 组合 %s 重复", i, cb))
		}
		seenCombo[cb] = true
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if c.Recorder.BufferSize <= 0 {
		errs = append(errs, "recorder.buffer_size: 缓冲区大小必须为正数")
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
