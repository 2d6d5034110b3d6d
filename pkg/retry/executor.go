package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/tracing"
)

// Policy parameterizes the shared backoff behavior.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64 // multiplicative jitter in [0, JitterFraction)
}

// DefaultPolicy mirrors the tunable defaults in config.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		BaseDelay:      time.Second,
		MaxDelay:       60 * time.Second,
		JitterFraction: 0.2,
	}
}

// Executor retries an operation under one Policy. It is safe for concurrent
// use by multiple workers.
type Executor struct {
	policy   Policy
	logger   ectologger.Logger
	classify func(error) Class

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// OnRetry, when set, observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration)
}

// NewExecutor creates an executor with the default classifier.
func NewExecutor(policy Policy, logger ectologger.Logger) *Executor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 60 * time.Second
	}
	return &Executor{
		policy:   policy,
		logger:   logger,
		classify: Classify,
		sleep:    sleepCtx,
	}
}

// WithClassifier overrides the failure classifier.
func (e *Executor) WithClassifier(classify func(error) Class) *Executor {
	e.classify = classify
	return e
}

// Do runs op, retrying retryable failures with exponential backoff and jitter
// up to MaxAttempts. The last observed error is returned when attempts are
// exhausted; permanent failures propagate immediately.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "retry.Executor.Do")
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if e.classify(lastErr) != ClassRetryable {
			return lastErr
		}
		if attempt == e.policy.MaxAttempts-1 {
			break
		}

		delay := e.backoff(attempt, lastErr)
		if e.OnRetry != nil {
			e.OnRetry(attempt+1, delay)
		}
		e.logger.WithContext(ctx).WithError(lastErr).WithFields(map[string]any{
			"operation": name,
			"attempt":   attempt + 1,
			"delay":     delay.String(),
		}).Warn("Retrying after transient failure")

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	e.logger.WithContext(ctx).WithError(lastErr).WithFields(map[string]any{
		"operation": name,
		"attempts":  e.policy.MaxAttempts,
	}).Error("Retries exhausted")
	return lastErr
}

// backoff computes base * 2^attempt with multiplicative jitter, capped at
// MaxDelay. A server Retry-After hint wins when it is longer.
func (e *Executor) backoff(attempt int, err error) time.Duration {
	delay := e.policy.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= e.policy.MaxDelay {
			delay = e.policy.MaxDelay
			break
		}
	}

	if e.policy.JitterFraction > 0 {
		jitter := time.Duration(rand.Float64() * e.policy.JitterFraction * float64(delay))
		delay += jitter
	}
	if delay > e.policy.MaxDelay {
		delay = e.policy.MaxDelay
	}

	if hint, ok := RetryAfterHint(err); ok && hint > delay {
		delay = hint
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
