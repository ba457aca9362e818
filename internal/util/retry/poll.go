package retry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultPollInterval = time.Second

// ErrTimeout matches every TimeoutError via errors.Is.
var ErrTimeout = errors.New("timed out")

// TimeoutError reports that a wait exceeded its deadline. The awaited
// remote work is not cancelled; only the local wait ended.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s (limit %s)",
		e.Op, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// Is makes errors.Is(err, ErrTimeout) true for any TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Outcome tags how a polling loop ended.
type Outcome int

const (
	// Done means the condition reported completion.
	Done Outcome = iota
	// TimedOut means the deadline passed first.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Result describes a finished polling loop.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
}

// TimeoutError converts a TimedOut result into an error naming op.
// It returns nil for any other outcome.
func (r Result) TimeoutError(op string, timeout time.Duration) error {
	if r.Outcome != TimedOut {
		return nil
	}
	return &TimeoutError{Op: op, Timeout: timeout, Elapsed: r.Elapsed}
}

// PollConfig controls a polling loop.
type PollConfig struct {
	// Interval between condition checks. Defaults to one second.
	Interval time.Duration
	// Timeout bounds the whole loop. A non-positive timeout checks once.
	Timeout time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Condition reports whether the awaited state was observed. A non-nil
// error aborts the loop immediately.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond until it reports done, returns an error, the context
// ends, or the timeout elapses. A timed-out result is returned at the
// deadline, within one interval of the last check.
//
// cond receives a context that is cancelled when the deadline passes on
// the configured clock, so a check that blocks cannot hold the loop past
// its timeout. An error caused by that cancellation yields TimedOut.
func Poll(ctx context.Context, cfg PollConfig, cond Condition) (Result, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	start := clk.Now()
	deadline := start.Add(cfg.Timeout)
	var res Result

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var expired atomic.Bool
	if cfg.Timeout > 0 {
		timer := clk.AfterFunc(cfg.Timeout, func() {
			expired.Store(true)
			cancel()
		})
		defer timer.Stop()
	}
	timedOut := func() bool { return expired.Load() && ctx.Err() == nil }

	for {
		res.Attempts++
		done, err := cond(pctx)
		res.Elapsed = clk.Since(start)
		if err != nil {
			if timedOut() {
				res.Outcome = TimedOut
				return res, nil
			}
			return res, err
		}
		if done {
			res.Outcome = Done
			return res, nil
		}

		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 || timedOut() {
			res.Outcome = TimedOut
			return res, nil
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}

		select {
		case <-pctx.Done():
			if !timedOut() {
				return res, ctx.Err()
			}
			res.Elapsed = clk.Since(start)
			res.Outcome = TimedOut
			return res, nil
		case <-clk.After(wait):
		}
	}
}
