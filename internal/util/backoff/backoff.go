// Package backoff 实现指数退避与带上下文的重试。
// 用于 REST 拉取 K 线失败重试以及 K 线流断线重连。
package backoff

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// maxShift 指数位移上限，防止 attempt 过大时溢出
const maxShift = 30

// Backoff 指数退避计算器
// 每次调用 Next() 返回下一次重试的等待时间，按 base*2^attempt 增长直到 max
type Backoff struct {
	// base 基础等待时间
	base time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1），例如 0.2 表示 ±20%
	jitter float64
	// attempt 当前重试次数
	attempt int
}

// New 创建新的退避计算器
// 参数 base: 基础等待时间
// 参数 max: 最大等待时间
// 参数 jitter: 抖动比例
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{base: base, max: max, jitter: jitter}
}

// NewDefault 创建默认配置的退避计算器
// 基础间隔 500ms，最大间隔 30s，抖动 ±20%
func NewDefault() *Backoff {
	return New(500*time.Millisecond, 30*time.Second, 0.2)
}

// Next 获取下次重试的等待时间
// 返回值在应用抖动前不会超过 max
func (b *Backoff) Next() time.Duration {
	shift := b.attempt
	if shift > maxShift {
		shift = maxShift
	}
	delay := b.base * time.Duration(int64(1)<<shift)
	if delay > b.max || delay <= 0 {
		delay = b.max
	}

	if b.jitter > 0 {
		jitterFactor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * jitterFactor)
	}

	b.attempt++
	return delay
}

// Reset 重置退避计算器，在请求或连接成功后调用
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 获取当前重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}

// permanentError 标记不应重试的错误
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent 包装一个不可重试的错误（例如 4xx 响应），Retry 遇到后立即返回
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Wait 等待 d 或 ctx 结束
// 返回: ctx 结束时返回 ctx.Err()
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry 最多执行 fn 共 1+retries 次，失败之间按 b 退避等待
// 参数 retries: 额外重试次数（0 表示只执行一次）
// 返回: 最后一次错误；Permanent 错误会被解包后立即返回
func Retry(ctx context.Context, b *Backoff, retries int, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; ; i++ {
		if err = fn(ctx); err == nil {
			b.Reset()
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if i >= retries {
			return err
		}
		if werr := Wait(ctx, b.Next()); werr != nil {
			return werr
		}
	}
}
