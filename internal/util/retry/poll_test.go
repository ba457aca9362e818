package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_DoneOnFirstCheck(t *testing.T) {
	t.Parallel()

	res, err := Poll(context.Background(), PollConfig{Interval: 10 * time.Millisecond, Timeout: time.Second},
		func(context.Context) (bool, error) { return true, nil })

	require.NoError(t, err)
	assert.Equal(t, Done, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.NoError(t, res.TimeoutError("noop", time.Second))
}

func TestPoll_DoneAfterSeveralChecks(t *testing.T) {
	t.Parallel()

	calls := 0
	res, err := Poll(context.Background(), PollConfig{Interval: 5 * time.Millisecond, Timeout: time.Second},
		func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})

	require.NoError(t, err)
	assert.Equal(t, Done, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
}

func TestPoll_TimesOutNearDeadline(t *testing.T) {
	t.Parallel()

	timeout := 100 * time.Millisecond
	interval := 20 * time.Millisecond
	start := time.Now()

	res, err := Poll(context.Background(), PollConfig{Interval: interval, Timeout: timeout},
		func(context.Context) (bool, error) { return false, nil })
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+interval+200*time.Millisecond)

	terr := res.TimeoutError("wait for session build", timeout)
	require.Error(t, terr)
	assert.ErrorIs(t, terr, ErrTimeout)
	assert.Contains(t, terr.Error(), "wait for session build")

	var te *TimeoutError
	require.ErrorAs(t, terr, &te)
	assert.Equal(t, timeout, te.Timeout)
}

func TestPoll_ConditionErrorStopsLoop(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	res, err := Poll(context.Background(), PollConfig{Interval: time.Millisecond, Timeout: time.Second},
		func(context.Context) (bool, error) { return false, boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Attempts)
}

func TestPoll_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Poll(ctx, PollConfig{Interval: 10 * time.Millisecond, Timeout: time.Minute},
		func(context.Context) (bool, error) {
			calls++
			if calls == 2 {
				cancel()
			}
			return false, nil
		})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoll_NonPositiveTimeoutChecksOnce(t *testing.T) {
	t.Parallel()

	res, err := Poll(context.Background(), PollConfig{}, func(context.Context) (bool, error) { return false, nil })

	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "timed-out", res.Outcome.String())
}

func TestPoll_BlockingCheckEndsAtDeadline(t *testing.T) {
	t.Parallel()

	timeout := 100 * time.Millisecond
	start := time.Now()

	res, err := Poll(context.Background(), PollConfig{Interval: 10 * time.Millisecond, Timeout: timeout},
		func(ctx context.Context) (bool, error) {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(10 * time.Second):
				return true, nil
			}
		})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestPoll_CheckContextFollowsInjectedClock(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClock()
	entered := make(chan struct{})
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := Poll(context.Background(), PollConfig{Interval: time.Second, Timeout: time.Minute, Clock: clk},
			func(ctx context.Context) (bool, error) {
				close(entered)
				<-ctx.Done()
				return false, ctx.Err()
			})
		done <- outcome{res, err}
	}()

	<-entered
	clk.Advance(time.Minute)
	got := <-done

	require.NoError(t, got.err)
	assert.Equal(t, TimedOut, got.res.Outcome)
	assert.Equal(t, time.Minute, got.res.Elapsed)
}

func TestPoll_CallerCancelIsNotATimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := Poll(ctx, PollConfig{Interval: time.Millisecond, Timeout: time.Minute},
		func(cctx context.Context) (bool, error) {
			cancel()
			<-cctx.Done()
			return false, cctx.Err()
		})

	assert.ErrorIs(t, err, context.Canceled)
}
