package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how often a stage call is repeated.
type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	// Timeout bounds every single attempt.
	Timeout time.Duration
}

// uploadRetries is fixed: an upload failure is retried exactly once.
const uploadRetries = 1

// do runs fn until it succeeds, returns a fatal error, or the budget is spent.
// Each attempt gets its own timeout; a timeout counts as retryable.
func (p RetryPolicy) do(ctx context.Context, log *zap.Logger, stage string, fn func(ctx context.Context) error) error {
	attempts := p.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.attempt(ctx, stage, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		stageRetriesTotal.WithLabelValues(stage).Inc()
		if attempt == attempts {
			log.Warn("Retry budget exhausted", zap.String("stage", stage), zap.Int("attempts", attempts), zap.Error(err))
			break
		}

		wait := backoff(p.BaseDelay, attempt)
		log.Info("Stage attempt failed, retrying",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return Fatal(stage, ctx.Err())
		case <-time.After(wait):
		}
	}
	// Retries exhausted: surface as fatal to the orchestrator.
	var se *StageError
	if errors.As(err, &se) {
		return Fatal(se.Stage, fmt.Errorf("after %d attempts: %w", attempts, se.Err))
	}
	return Fatal(stage, err)
}

func (p RetryPolicy) attempt(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
		return Retryable(stage, err)
	}
	return Classify(stage, err)
}

// backoff is exponential with +-10% jitter and never below base.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	jitter := delay * 0.1
	delay += jitter * (rand.Float64()*2 - 1)
	wait := time.Duration(delay)
	if wait < base {
		wait = base
	}
	return wait
}
