package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Class 错误分类：可重试或直接返回
type Class int

const (
	Retryable Class = iota
	Fatal
)

// MaxAttemptsCap 总尝试次数上限，调用方配置更大也会被截断
const MaxAttemptsCap = 3

// Policy 重试策略，零值可用
type Policy struct {
	MaxAttempts int           // 总调用次数，含首次
	BaseDelay   time.Duration // 首次等待，之后指数翻倍
	MaxDelay    time.Duration // 单次等待上限
	Jitter      time.Duration // 随机抖动上限

	// Classify 为 nil 时所有错误都可重试
	Classify func(error) Class

	// OnRetry 每次等待前回调，用于日志
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Do 按策略执行 fn，返回最后一次的错误；ctx 取消时立即停止等待
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.MaxAttempts > MaxAttemptsCap {
		p.MaxAttempts = MaxAttemptsCap
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}

	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Retryable }
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fatal || attempt == p.MaxAttempts {
			break
		}

		wait := p.BaseDelay << (attempt - 1)
		if wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		if p.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Jitter)))
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = errors.New("retry: exhausted with no error")
	}
	return lastErr
}
