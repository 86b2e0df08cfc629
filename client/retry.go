package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy 重試策略，MaxAttempts 含第一次嘗試 (小於 1 視為 1)
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NoRetry 不重試
var NoRetry = RetryPolicy{MaxAttempts: 1}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backOff 建立受 ctx 約束、最多重試 attempts()-1 次的退避策略
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	linear := &linearBackOff{step: p.Backoff}
	return backoff.WithContext(backoff.WithMaxRetries(linear, uint64(p.attempts()-1)), ctx)
}

// linearBackOff 第 n 次重試前等待 n*step
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }
