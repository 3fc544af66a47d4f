package services

import (
	"context"
	"time"
)

// RetryPolicy bounds retry attempts for transient dependency failures.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns the retry bounds used for knowledge graph and
// persistence backend calls when the configuration does not override them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       4,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     12 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 || p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = d.MaxBackoff
	}
	return p
}

// Retry runs op until it succeeds, fails permanently, or the attempt budget is
// exhausted. Only errors tagged ErrTransient are retried; the backoff doubles
// per attempt up to the policy maximum.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	policy = policy.normalized()
	delay := policy.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == policy.Attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= policy.MaxBackoff {
			delay = next
		} else {
			delay = policy.MaxBackoff
		}
	}
	return lastErr
}
