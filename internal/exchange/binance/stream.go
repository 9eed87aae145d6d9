package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ma-crossover-backtester/internal/config"
	"ma-crossover-backtester/internal/core/model"
	"ma-crossover-backtester/internal/util/backoff"
)

// StreamClient Binance K 线 WebSocket 客户端
// 订阅 <symbol>@kline_<interval>，只输出已收盘的 K 线
// 心跳机制: 协议层 ping/pong
type StreamClient struct {
	// cfg Binance 配置
	cfg *config.BinanceConfig
	// url 完整的流地址
	url string
	// logger 日志记录器
	logger *zap.Logger

	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁
	connMu sync.Mutex

	// candleCh 收盘 K 线输出通道，Run 返回时关闭
	candleCh chan model.Candle

	// metrics 连接指标
	metrics StreamMetrics
	// metricsMu 指标锁
	metricsMu sync.RWMutex

	// lastMsgTime 最后消息时间（纳秒）
	lastMsgTime int64
	// lastOpenMs 最后输出的 K 线开盘时间，用于重连后去重
	lastOpenMs int64
	// backoff 重连退避
	backoff *backoff.Backoff
	// closed 是否已关闭
	closed int32
}

// NewStreamClient 创建 K 线流客户端
// 参数 cfg: Binance 配置（使用 WSURL、PingIntervalMs、ReadTimeoutMs）
// 参数 symbol: 交易对，如 BTCUSDT
// 参数 interval: K 线周期，如 1m
// 参数 bufferSize: 输出通道缓冲大小
func NewStreamClient(cfg *config.BinanceConfig, symbol, interval string, bufferSize int, logger *zap.Logger) *StreamClient {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval)
	return &StreamClient{
		cfg:      cfg,
		url:      strings.TrimRight(cfg.WSURL, "/") + "/" + stream,
		logger:   logger.Named("binance.stream"),
		candleCh: make(chan model.Candle, bufferSize),
		backoff:  backoff.NewDefault(),
	}
}

// URL 返回流地址
func (c *StreamClient) URL() string {
	return c.url
}

// Connect 建立 WebSocket 连接
func (c *StreamClient) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "ma-crossover-backtester/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("连接 Binance K 线流失败: %w", err)
	}

	readTimeout := c.readTimeout()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		atomic.StoreInt64(&c.lastMsgTime, time.Now().UnixNano())
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	// 服务端 ping 需要回 pong，同时刷新读超时
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	c.conn = conn
	c.backoff.Reset()
	c.logger.Info("Binance K 线流连接成功", zap.String("url", c.url))
	return nil
}

// Run 启动客户端主循环，阻塞直到 ctx 结束或 Close
// 返回前关闭 Candles() 通道
func (c *StreamClient) Run(ctx context.Context) {
	defer close(c.candleCh)

	go c.pingLoop(ctx)
	go func() {
		<-ctx.Done()
		c.closeConn()
	}()
	c.readLoop(ctx)
}

func (c *StreamClient) readLoop(ctx context.Context) {
	readTimeout := c.readTimeout()
	for {
		if ctx.Err() != nil || atomic.LoadInt32(&c.closed) == 1 {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			c.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || atomic.LoadInt32(&c.closed) == 1 {
				return
			}
			c.logger.Warn("读取 Binance K 线流失败", zap.Error(err))
			c.incrementReconnectCount()
			c.reconnect(ctx)
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		atomic.StoreInt64(&c.lastMsgTime, time.Now().UnixNano())

		candle, closed, err := ParseKlineEvent(data)
		if err != nil {
			c.incrementParseErrorCount()
			c.logger.Warn("解析 Binance K 线消息失败", zap.Error(err))
			continue
		}
		if candle == nil || !closed {
			continue
		}
		openMs := candle.OpenTime.UnixMilli()
		if openMs <= atomic.LoadInt64(&c.lastOpenMs) {
			continue
		}
		atomic.StoreInt64(&c.lastOpenMs, openMs)

		select {
		case c.candleCh <- *candle:
			c.metricsMu.Lock()
			c.metrics.ClosedCandles++
			c.metricsMu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (c *StreamClient) pingLoop(ctx context.Context) {
	interval := time.Duration(c.cfg.PingIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = c.readTimeout() / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&c.closed) == 1 {
				return
			}

			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			c.connMu.Unlock()
			if err != nil {
				c.logger.Warn("发送 Binance ping 失败", zap.Error(err))
			}
		}
	}
}

func (c *StreamClient) reconnect(ctx context.Context) {
	c.closeConn()

	delay := c.backoff.Next()
	c.logger.Info("Binance K 线流准备重连", zap.Duration("delay", delay))
	if err := backoff.Wait(ctx, delay); err != nil {
		return
	}
	if err := c.Connect(ctx); err != nil {
		c.logger.Error("Binance K 线流重连失败", zap.Error(err))
	}
}

func (c *StreamClient) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close 关闭客户端，Run 随后返回
func (c *StreamClient) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	c.closeConn()
	c.logger.Info("Binance K 线流已关闭")
	return nil
}

// Candles 获取收盘 K 线通道
func (c *StreamClient) Candles() <-chan model.Candle {
	return c.candleCh
}

// Metrics 获取连接指标
func (c *StreamClient) Metrics() StreamMetrics {
	c.metricsMu.RLock()
	m := c.metrics
	c.metricsMu.RUnlock()

	if last := atomic.LoadInt64(&c.lastMsgTime); last > 0 {
		m.LastMessageAgeMs = (time.Now().UnixNano() - last) / int64(time.Millisecond)
	}
	return m
}

func (c *StreamClient) incrementReconnectCount() {
	c.metricsMu.Lock()
	c.metrics.ReconnectCount++
	c.metricsMu.Unlock()
}

func (c *StreamClient) incrementParseErrorCount() {
	c.metricsMu.Lock()
	c.metrics.ParseErrorCount++
	c.metricsMu.Unlock()
}

func (c *StreamClient) readTimeout() time.Duration {
	if c.cfg.ReadTimeoutMs > 0 {
		return time.Duration(c.cfg.ReadTimeoutMs) * time.Millisecond
	}
	// 未配置时使用 60s
	return 60 * time.Second
}
