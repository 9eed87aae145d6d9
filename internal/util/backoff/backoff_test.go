// Package backoff 退避算法测试
package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBackoff_Bounds 无抖动时延迟单调不减且不超过 max
func TestBackoff_Bounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("退避时间单调不减且有上界", prop.ForAll(
		func(baseMs int, maxMs int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			b := New(base, max, 0)

			prev := time.Duration(0)
			for i := 0; i < 40; i++ {
				delay := b.Next()
				if delay < prev || delay > max {
					return false
				}
				prev = delay
			}
			return true
		},
		gen.IntRange(1, 2000),
		gen.IntRange(5000, 60000),
	))

	properties.TestingRun(t)
}

// TestBackoff_JitterBounds 抖动后的首次延迟落在 base*(1±jitter) 内
func TestBackoff_JitterBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("抖动在指定范围内", prop.ForAll(
		func(jitterPercent int) bool {
			jitter := float64(jitterPercent) / 100.0
			b := New(time.Second, 30*time.Second, jitter)
			for i := 0; i < 20; i++ {
				b.Reset()
				d := float64(b.Next())
				if d < float64(time.Second)*(1-jitter) || d > float64(time.Second)*(1+jitter) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

// TestBackoff_SpecificValues 无抖动时的具体序列
func TestBackoff_SpecificValues(t *testing.T) {
	b := New(time.Second, 30*time.Second, 0)
	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}
	b.Reset()
	if b.Attempt() != 0 || b.Next() != time.Second {
		t.Error("重置后应从 base 重新开始")
	}
}

// TestRetry_SucceedsAfterFailures 前两次失败第三次成功
func TestRetry_SucceedsAfterFailures(t *testing.T) {
	b := New(time.Millisecond, 2*time.Millisecond, 0)
	calls := 0
	err := Retry(context.Background(), b, 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("暂时失败")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if b.Attempt() != 0 {
		t.Errorf("成功后 attempt 应重置, got %d", b.Attempt())
	}
}

// TestRetry_Exhausted 重试耗尽返回最后一次错误
func TestRetry_Exhausted(t *testing.T) {
	b := New(time.Millisecond, time.Millisecond, 0)
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), b, 2, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

// TestRetry_Permanent 不可重试错误立即返回
func TestRetry_Permanent(t *testing.T) {
	b := New(time.Millisecond, time.Millisecond, 0)
	boom := errors.New("400")
	calls := 0
	err := Retry(context.Background(), b, 5, func(ctx context.Context) error {
		calls++
		return Permanent(boom)
	})
	if err != boom {
		t.Fatalf("err = %v, want 原始错误", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// TestRetry_ContextCanceled 等待期间 ctx 取消
func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New(time.Hour, time.Hour, 0)
	err := Retry(ctx, b, 1, func(ctx context.Context) error {
		cancel()
		return errors.New("失败")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
