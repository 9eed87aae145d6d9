package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// exchangeInfoPath 交易规则接口
const exchangeInfoPath = "/api/v3/exchangeInfo"

// ExchangeInfo /api/v3/exchangeInfo 响应（只取交易对）
type ExchangeInfo struct {
	// Symbols 交易对列表
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo 现货交易对信息
type SymbolInfo struct {
	// Symbol 交易对，如 BTCUSDT
	Symbol string `json:"symbol"`
	// Status 交易对状态: TRADING, BREAK
	Status string `json:"status"`
	// BaseAsset 基础资产，如 BTC
	BaseAsset string `json:"baseAsset"`
	// QuoteAsset 报价资产，如 USDT
	QuoteAsset string `json:"quoteAsset"`
}

// Trading 交易对是否处于可交易状态
func (s *SymbolInfo) Trading() bool {
	return s.Status == "TRADING"
}

// NormalizeSymbol 标准化交易对格式
// 移除分隔符，转为大写，例如: btc-usdt -> BTCUSDT, BTC/USDT -> BTCUSDT
func NormalizeSymbol(s string) string {
	s = strings.NewReplacer("-", "", "_", "", "/", "", " ", "").Replace(s)
	return strings.ToUpper(s)
}

// Symbol 查询交易对信息，用于在拉取 K 线前确认交易对存在
func (c *RESTClient) Symbol(ctx context.Context, symbol string) (*SymbolInfo, error) {
	symbol = NormalizeSymbol(symbol)
	q := url.Values{}
	q.Set("symbol", symbol)

	body, err := c.get(ctx, exchangeInfoPath, q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("请求 Binance 交易规则失败: %w", err)
	}
	var info ExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("解析 Binance 交易规则失败: %w", err)
	}
	for i := range info.Symbols {
		if info.Symbols[i].Symbol == symbol {
			return &info.Symbols[i], nil
		}
	}
	return nil, fmt.Errorf("Binance 未找到交易对: %s", symbol)
}
