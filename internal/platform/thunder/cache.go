package thunder

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/imamik/tnrctl/internal/instance"
)

type snapshot map[instance.ID]instance.Record

// listCache holds the last instance list. A refresh only publishes its
// result if no invalidation happened while it was in flight.
type listCache struct {
	ttl   time.Duration
	clock clockwork.Clock
	group singleflight.Group

	mu         sync.Mutex
	snap       snapshot
	fetchedAt  time.Time
	generation uint64
}

func newListCache(ttl time.Duration, clk clockwork.Clock) *listCache {
	return &listCache{ttl: ttl, clock: clk}
}

// fresh returns the cached snapshot if it is within the TTL.
func (lc *listCache) fresh() (snapshot, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.snap == nil || lc.clock.Since(lc.fetchedAt) >= lc.ttl {
		return nil, false
	}
	return lc.snap, true
}

func (lc *listCache) invalidate() {
	lc.mu.Lock()
	lc.snap = nil
	lc.generation++
	lc.mu.Unlock()
}

// refresh fetches a new snapshot. Callers within the same generation share
// one fetch; a caller after an invalidation always starts a new one.
func (lc *listCache) refresh(ctx context.Context, fetch func(context.Context) (snapshot, error)) (snapshot, error) {
	lc.mu.Lock()
	gen := lc.generation
	lc.mu.Unlock()

	ch := lc.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		snap, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		lc.mu.Lock()
		if lc.generation == gen {
			lc.snap = snap
			lc.fetchedAt = lc.clock.Now()
		}
		lc.mu.Unlock()
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(snapshot), nil
	}
}
