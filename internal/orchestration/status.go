package orchestration

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/tmux"
)

// maxConcurrentProbes bounds SSH fan-out in Overview.
const maxConcurrentProbes = 8

// InstanceOverview is one row of Overview.
type InstanceOverview struct {
	Record   instance.Record
	Sessions []tmux.SessionInfo
	// Err is set when the sessions of a running instance could not be listed.
	Err error
}

// Overview lists every instance and, with sessions set, the tmux sessions
// of the running ones. Session errors are reported per instance.
func (m *Manager) Overview(ctx context.Context, force, sessions bool) ([]InstanceOverview, error) {
	records, err := m.api.ListInstances(ctx, force)
	if err != nil {
		return nil, err
	}
	rows := make([]InstanceOverview, len(records))
	for i, rec := range records {
		rows[i].Record = rec
	}
	if !sessions {
		return rows, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i := range rows {
		if rows[i].Record.Status != instance.StatusRunning {
			continue
		}
		g.Go(func() error {
			list, err := m.sessions.ListSessions(gctx, rows[i].Record.ID)
			rows[i].Sessions, rows[i].Err = list, err
			return nil
		})
	}
	_ = g.Wait()
	return rows, nil
}
