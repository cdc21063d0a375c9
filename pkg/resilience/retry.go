package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var ErrRateLimited = errors.New("rate limited by provider")

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as never worth retrying, whatever it wraps.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Transient marks err as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsRetryable reports whether err is a rate limit, a marked transient error or
// a network timeout. Context cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// FromStatus classifies a failed provider HTTP status.
func FromStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case status >= 500:
		return Transient(err)
	default:
		return err
	}
}

// Policy is a bounded exponential backoff: BaseDelay, 2x BaseDelay, ... up to
// MaxTries attempts in total.
type Policy struct {
	MaxTries  uint
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxTries: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}
}

// Do runs op under the limiter (when non-nil) and retries retryable failures.
// After the last attempt the final error is returned as is.
func Do[T any](ctx context.Context, p Policy, limiter *RateLimiter, key string, op func(context.Context) (T, error)) (T, error) {
	if p.MaxTries == 0 {
		p.MaxTries = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}

	return backoff.Retry(ctx, func() (T, error) {
		var zero T
		if limiter != nil {
			if err := limiter.Wait(ctx, key); err != nil {
				return zero, backoff.Permanent(err)
			}
		}
		out, err := op(ctx)
		if err != nil {
			if IsRetryable(err) {
				return zero, err
			}
			return zero, backoff.Permanent(err)
		}
		return out, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.MaxTries))
}
