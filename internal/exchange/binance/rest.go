package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ma-crossover-backtester/internal/config"
	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/marketdata"
	"ma-crossover-backtester/internal/util/backoff"
	"ma-crossover-backtester/internal/util/timeutil"
)

// recvWindowMs 签名请求的有效窗口
const recvWindowMs = 5000

// RESTClient Binance 现货 REST 客户端
// 只使用公开行情接口与只读账户接口，不下单
type RESTClient struct {
	// baseURL REST 基础地址
	baseURL string
	// client HTTP 客户端
	client *http.Client
	// creds 只读凭证（可为空）
	creds config.Credentials
	// maxRetries 失败重试次数
	maxRetries int
	// logger 日志记录器
	logger *zap.Logger
	// newBackoff 每次请求使用的退避计算器
	newBackoff func() *backoff.Backoff
	// now 当前时间（签名时间戳）
	now func() time.Time
}

var _ marketdata.Source = (*RESTClient)(nil)

// NewRESTClient 创建 REST 客户端
// 参数 cfg: Binance 配置
// 参数 creds: 只读凭证，未配置时无法查询余额
// 参数 logger: 日志记录器
func NewRESTClient(cfg *config.BinanceConfig, creds config.Credentials, logger *zap.Logger) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(cfg.RESTURL, "/"),
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		creds:      creds,
		maxRetries: cfg.MaxRetries,
		logger:     logger.Named("binance.rest"),
		newBackoff: backoff.NewDefault,
		now:        time.Now,
	}
}

// Fetch 获取最近 limit 根 K 线
// 超过单次上限时按 endTime 向前分页，结果按 OpenTime 升序并去重
func (c *RESTClient) Fetch(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("K 线数量必须为正: %d", limit)
	}
	symbol = strings.ToUpper(symbol)

	var pages [][]model.Candle
	remaining := limit
	var endTimeMs int64
	for remaining > 0 {
		pageLimit := remaining
		if pageLimit > MaxKlinesPerRequest {
			pageLimit = MaxKlinesPerRequest
		}

		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("interval", interval)
		q.Set("limit", strconv.Itoa(pageLimit))
		if endTimeMs > 0 {
			q.Set("endTime", strconv.FormatInt(endTimeMs, 10))
		}

		body, err := c.get(ctx, klinesPath, q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("请求 Binance K 线失败: %w", err)
		}
		page, err := ParseKlines(body)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("获取 K 线分页",
			zap.String("symbol", symbol),
			zap.String("interval", interval),
			zap.Int("count", len(page)),
			zap.Int64("end_time", endTimeMs),
		)
		if len(page) == 0 {
			break
		}

		pages = append(pages, page)
		remaining -= len(page)
		if len(page) < pageLimit {
			break
		}
		endTimeMs = timeutil.TimeToMs(page[0].OpenTime) - 1
	}

	candles := mergePages(pages)
	c.logger.Info("K 线获取完成",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("count", len(candles)),
	)
	return marketdata.Tail(candles, limit), nil
}

// mergePages 合并分页结果，按 OpenTime 升序并去除重复时间
func mergePages(pages [][]model.Candle) []model.Candle {
	var all []model.Candle
	for _, p := range pages {
		all = append(all, p...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].OpenTime.Before(all[j].OpenTime)
	})
	out := all[:0]
	for i, cd := range all {
		if i > 0 && cd.OpenTime.Equal(out[len(out)-1].OpenTime) {
			continue
		}
		out = append(out, cd)
	}
	return out
}

// Balance 查询单个资产余额（签名只读接口）
// 参数 asset: 资产名，如 "USDT"
func (c *RESTClient) Balance(ctx context.Context, asset string) (*Balance, error) {
	if !c.creds.HasKeys() {
		return nil, fmt.Errorf("未配置 %s/%s，无法查询余额", config.EnvAPIKey, config.EnvAPISecret)
	}

	q := url.Values{}
	q.Set("timestamp", strconv.FormatInt(timeutil.TimeToMs(c.now()), 10))
	q.Set("recvWindow", strconv.Itoa(recvWindowMs))
	// signature 必须位于查询串末尾
	payload := q.Encode()
	rawQuery := payload + "&signature=" + sign(c.creds.APISecret, payload)

	header := http.Header{}
	header.Set("X-MBX-APIKEY", c.creds.APIKey)
	body, err := c.get(ctx, accountPath, rawQuery, header)
	if err != nil {
		return nil, fmt.Errorf("请求 Binance 账户失败: %w", err)
	}

	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("解析 Binance 账户失败: %w", err)
	}
	asset = strings.ToUpper(asset)
	for _, b := range info.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return nil, fmt.Errorf("解析 %s 可用余额失败: %w", asset, err)
		}
		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			return nil, fmt.Errorf("解析 %s 冻结余额失败: %w", asset, err)
		}
		return &Balance{Asset: asset, Free: free, Locked: locked}, nil
	}
	return &Balance{Asset: asset}, nil
}

// sign HMAC-SHA256 签名，十六进制编码
func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// get 执行带重试的 GET 请求
// 传输错误、429 与 5xx 会重试，其余非 200 状态立即返回 *APIError
func (c *RESTClient) get(ctx context.Context, path, rawQuery string, header http.Header) ([]byte, error) {
	target := c.baseURL + path + "?" + rawQuery

	var body []byte
	err := backoff.Retry(ctx, c.newBackoff(), c.maxRetries, func(ctx context.Context) error {
		b, err := c.doRequest(ctx, target, header)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status != http.StatusTooManyRequests && apiErr.Status < 500 {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Warn("Binance 请求失败，准备重试", zap.String("path", path), zap.Error(err))
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// doRequest 执行单次 HTTP GET
func (c *RESTClient) doRequest(ctx context.Context, target string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "ma-crossover-backtester/1.0")
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}
	return body, nil
}
