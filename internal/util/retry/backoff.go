package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrExhausted matches every ExhaustedError via errors.Is.
var ErrExhausted = errors.New("retries exhausted")

// Backoff controls WithExponentialBackoff.
type Backoff struct {
	// Attempts counts every try, including the first. Values below one
	// mean a single try.
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Clock        clockwork.Clock
	// OnRetry runs before each wait with the failed attempt number
	// (starting at 1) and the delay that follows.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Option adjusts a Backoff.
type Option func(*Backoff)

// WithAttempts sets the total number of tries.
func WithAttempts(n int) Option {
	return func(b *Backoff) { b.Attempts = n }
}

// WithInitialDelay sets the wait after the first failure.
func WithInitialDelay(d time.Duration) Option {
	return func(b *Backoff) { b.InitialDelay = d }
}

// WithMaxDelay caps the wait between tries.
func WithMaxDelay(d time.Duration) Option {
	return func(b *Backoff) { b.MaxDelay = d }
}

// WithMultiplier sets the growth factor of the wait.
func WithMultiplier(m float64) Option {
	return func(b *Backoff) { b.Multiplier = m }
}

// WithBackoffClock replaces the real clock.
func WithBackoffClock(clk clockwork.Clock) Option {
	return func(b *Backoff) { b.Clock = clk }
}

// OnRetry registers a hook called after every retryable failure.
func OnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(b *Backoff) { b.OnRetry = fn }
}

// ExhaustedError reports that every attempt failed. Err is the last failure.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExhausted) true for any ExhaustedError.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// WithExponentialBackoff calls operation until it succeeds, returns an
// error marked with Fatal, or runs out of attempts. attempt starts at 1.
// A fatal error is returned unwrapped from its marker.
func WithExponentialBackoff(ctx context.Context, operation func(ctx context.Context, attempt int) error, opts ...Option) error {
	b := Backoff{
		Attempts:     6,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.Attempts < 1 {
		b.Attempts = 1
	}
	if b.Clock == nil {
		b.Clock = clockwork.NewRealClock()
	}

	delay := b.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= b.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled before attempt %d: %w", attempt, err)
		}
		err := operation(ctx, attempt)
		if err == nil {
			return nil
		}
		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}
		lastErr = err
		if attempt == b.Attempts {
			break
		}

		if b.OnRetry != nil {
			b.OnRetry(attempt, err, delay)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-b.Clock.After(delay):
		}
		delay = b.next(delay)
	}
	return &ExhaustedError{Attempts: b.Attempts, Err: lastErr}
}

func (b Backoff) next(d time.Duration) time.Duration {
	if b.Multiplier > 1 {
		d = time.Duration(float64(d) * b.Multiplier)
	}
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	return d
}

// FatalError marks an error that must stop WithExponentialBackoff.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal marks err as not worth retrying. Fatal(nil) is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err carries a Fatal marker.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
