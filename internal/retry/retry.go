// Package retry implements exponential backoff with jitter as a
// higher-order wrapper, independent of any transport. Callers mark
// transient failures with Retryable; everything else aborts the loop.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy controls how many attempts are made and how long to wait between them.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap for the exponential growth
	MaxJitter   time.Duration // uniform jitter added on top, [0, MaxJitter)
}

// Backoff returns the delay to wait after the given attempt (1-based).
// The deterministic part doubles per attempt from BaseDelay up to MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 32 {
		shift = 32
	}
	delay := p.BaseDelay << shift
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay < 0) {
		delay = p.MaxDelay
	}
	if p.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return delay
}

// Sleeper waits for the given duration or until the context is done.
// Injectable so policies can be tested without real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks an error as transient so Do will retry it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err carries the Retryable marker.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Do runs fn up to p.MaxAttempts times, sleeping p.Backoff between attempts.
// Only errors marked Retryable trigger another attempt; the terminal error is
// returned unwrapped, exactly as fn produced it. Attempts are strictly
// sequential. A nil sleep uses the real clock.
func Do(ctx context.Context, p Policy, sleep Sleeper, fn func(ctx context.Context, attempt int) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = unwrapMarker(err)
		if !IsRetryable(err) || attempt == p.MaxAttempts {
			return lastErr
		}
		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func unwrapMarker(err error) error {
	var re *retryableError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}
