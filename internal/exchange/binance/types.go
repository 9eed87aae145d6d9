// Package binance 实现 Binance 现货 K 线的 REST 拉取、只读账户查询与 K 线 WebSocket 流。
package binance

import "fmt"

// 现货 REST 路径
const (
	// klinesPath K 线接口
	klinesPath = "/api/v3/klines"
	// accountPath 账户信息接口（需要签名）
	accountPath = "/api/v3/account"
	// MaxKlinesPerRequest 单次请求最多返回的 K 线数量
	MaxKlinesPerRequest = 1000
)

// kline 数组字段下标
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...]
const (
	klineOpenTime = iota
	klineOpen
	klineHigh
	klineLow
	klineClose
	klineVolume
	klineCloseTime
	klineMinFields
)

// KlineEvent Binance K 线推送消息（<symbol>@kline_<interval>）
// 字段映射：
// - e: 事件类型（kline）
// - E: 事件时间（毫秒）
// - s: Symbol（如 BTCUSDT）
// - k: K 线内容
type KlineEvent struct {
	// EventType 事件类型: kline
	EventType string `json:"e"`
	// EventTimeMs 事件时间（毫秒）
	EventTimeMs int64 `json:"E"`
	// Symbol 交易对（大写）
	Symbol string `json:"s"`
	// Kline K 线内容
	Kline KlinePayload `json:"k"`
}

// KlinePayload 推送消息内的 K 线字段，价格为字符串
type KlinePayload struct {
	OpenTimeMs  int64  `json:"t"`
	CloseTimeMs int64  `json:"T"`
	Symbol      string `json:"s"`
	Interval    string `json:"i"`
	Open        string `json:"o"`
	Close       string `json:"c"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	// Closed 该 K 线是否已收盘
	Closed bool `json:"x"`
}

// AccountInfo /api/v3/account 响应（只取余额）
type AccountInfo struct {
	Balances []AssetBalance `json:"balances"`
}

// AssetBalance 单个资产余额（字符串数值）
type AssetBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Balance 解析后的资产余额
type Balance struct {
	// Asset 资产名
	Asset string
	// Free 可用数量
	Free float64
	// Locked 冻结数量
	Locked float64
}

// APIError Binance 错误响应体 {"code":-1121,"msg":"Invalid symbol."}
type APIError struct {
	// Status HTTP 状态码
	Status int `json:"-"`
	// Code 业务错误码
	Code int `json:"code"`
	// Msg 错误描述
	Msg string `json:"msg"`
}

// Error 实现 error 接口
func (e *APIError) Error() string {
	return fmt.Sprintf("Binance API 错误: status=%d, code=%d, msg=%s", e.Status, e.Code, e.Msg)
}

// StreamMetrics K 线流连接指标
type StreamMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64
	// ClosedCandles 已输出的收盘 K 线数量
	ClosedCandles int64
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64
}
