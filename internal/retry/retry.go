// Package retry re-runs a unit of work that failed on a transient storage error.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/avstrong/hotel/internal/domain"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type Func func(ctx context.Context) error

type config struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	onRetry      func(attempt int, err error)
}

type Option func(*config) error

// WithExponentialBackoff calls fn until it succeeds, fails with a non-transient error or runs
// out of attempts. Delays are baseDelay * 2^(attempt-1) plus jitter: 0, 10 ms, 20 ms, 40 ms...
//
// Only domain.ErrTransient is retried. Domain conflicts fail fast.
func WithExponentialBackoff(ctx context.Context, fn Func, options ...Option) error {
	//nolint:exhaustruct
	conf := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(conf); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < conf.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := conf.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * conf.jitterFactor //nolint:gosec // jitter only

			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !errors.Is(lastErr, domain.ErrTransient) {
			return lastErr
		}

		if conf.onRetry != nil && attempt < conf.maxAttempts-1 {
			conf.onRetry(attempt+1, lastErr)
		}
	}

	return lastErr
}

func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		c.maxAttempts = attempts

		return nil
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		c.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the share of each delay added as random jitter, from 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		c.jitterFactor = factor

		return nil
	}
}

// WithOnRetry registers a hook called before each further attempt.
func WithOnRetry(hook func(attempt int, err error)) Option {
	return func(c *config) error {
		c.onRetry = hook

		return nil
	}
}
