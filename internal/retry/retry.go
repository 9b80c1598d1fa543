// Package retry provides a generic retry wrapper with exponential backoff
// for fallible network operations. Only errors explicitly classified as
// transient are retried; everything else propagates immediately.
package retry

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Default policy values.
const (
	DefaultMaxAttempts   = 3
	DefaultBackoffFactor = 2.0
	DefaultBaseDelay     = 1 * time.Second
	DefaultMaxDelay      = 30 * time.Second
)

// Policy controls retry behavior.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	// Must be >= 1.
	MaxAttempts int
	// BackoffFactor is the exponential base for the delay between attempts.
	// Must be > 1.
	BackoffFactor float64
	// BaseDelay is the time unit the backoff is expressed in. The wait
	// before retry n is BaseDelay * BackoffFactor^n.
	BaseDelay time.Duration
	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration
}

// DefaultPolicy returns the standard policy: 3 attempts, delays of 2 and 4
// seconds between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   DefaultMaxAttempts,
		BackoffFactor: DefaultBackoffFactor,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BackoffFactor <= 1 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

// delay returns the wait before the retry following failed attempt n
// (n starting at 1).
func (p Policy) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Attempt describes one attempt outcome, delivered to the observability
// hook. Err is nil when the operation succeeded after earlier failures.
type Attempt struct {
	Operation string
	Number    int
	Err       error
	Final     bool
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithLogger sets the logger used for attempt events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retrier) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHook registers a callback invoked on every retried failure, the
// final failure, and a success that needed retries.
func WithHook(hook func(Attempt)) Option {
	return func(r *Retrier) {
		r.hook = hook
	}
}

// Retrier wraps fallible operations with the backoff policy. It is safe
// for concurrent use and is shared by the quote, swap-build, and
// transaction-submission call sites.
type Retrier struct {
	policy Policy
	logger *zap.Logger
	hook   func(Attempt)
}

// New creates a Retrier with the given policy.
func New(policy Policy, opts ...Option) *Retrier {
	r := &Retrier{
		policy: policy.normalized(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do invokes fn, retrying transient failures per the policy. The final
// error is propagated unchanged. Non-transient errors propagate
// immediately without retry. Context cancellation aborts the wait.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	_, err := DoValue(ctx, r, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, r *Retrier, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.observe(Attempt{Operation: operation, Number: attempt})
				r.logger.Info("operation succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
				)
			}
			return v, nil
		}

		if !IsTransient(err) {
			return zero, err
		}

		if attempt >= r.policy.MaxAttempts {
			r.observe(Attempt{Operation: operation, Number: attempt, Err: err, Final: true})
			r.logger.Error("operation failed after max attempts",
				zap.String("operation", operation),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Error(err),
			)
			return zero, err
		}

		wait := r.policy.delay(attempt)
		r.observe(Attempt{Operation: operation, Number: attempt, Err: err})
		r.logger.Warn("operation failed, retrying with backoff",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *Retrier) observe(a Attempt) {
	if r.hook != nil {
		r.hook(a)
	}
}
