package modelclient

import (
	"context"
	"math/rand"
	"time"

	"github.com/agentloop-dev/agentloop/internal/telemetry"
)

const (
	// DefaultMaxRetries bounds consecutive transient failures before
	// RetryExhaustedError is returned.
	DefaultMaxRetries = 5

	// DefaultInitialDelay is the first backoff sleep.
	DefaultInitialDelay = 1000 * time.Millisecond

	backoffFactor = 1.5
	jitterLow     = 0.85
	jitterHigh    = 1.15
)

// RetryOptions configure the retry decorator. Sleep and Jitter are seams for
// deterministic tests; production uses context-aware sleeping and a uniform
// jitter in [0.85, 1.15].
type RetryOptions struct {
	MaxRetries   int
	InitialDelay time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error
	Jitter       func() float64
}

// WithRetry wraps next so transient failures are retried with exponential
// backoff: the first sleep is InitialDelay, each subsequent delay is
// previous × 1.5 × jitter. Non-transient failures propagate immediately.
// After MaxRetries consecutive transient failures the last error is returned
// wrapped in *RetryExhaustedError.
func WithRetry(next Model, optFns ...func(o *RetryOptions)) Model {
	opts := RetryOptions{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		Sleep:        sleepCtx,
		Jitter:       uniformJitter,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &retryModel{next: next, opts: opts}
}

type retryModel struct {
	next Model
	opts RetryOptions
}

func (r *retryModel) Complete(ctx context.Context, req Request) (*Response, error) {
	delay := r.opts.InitialDelay
	for attempt := 1; ; attempt++ {
		resp, err := r.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		if attempt >= r.opts.MaxRetries {
			return nil, &RetryExhaustedError{Attempts: attempt, Err: err}
		}

		turnID, _ := telemetry.TurnIDFromContext(ctx)
		telemetry.Emit("retry_wait", map[string]any{
			"turn_id":  turnID,
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		})
		if sleepErr := r.opts.Sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
		delay = time.Duration(float64(delay) * backoffFactor * r.opts.Jitter())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniformJitter() float64 {
	return jitterLow + rand.Float64()*(jitterHigh-jitterLow)
}
