package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/platform/thunder"
)

// CreateOptions describes a new instance.
type CreateOptions struct {
	thunder.CreateRequest

	// WaitForRunning blocks until the instance reports RUNNING.
	WaitForRunning bool
	// WaitTimeout defaults to the status wait timeout.
	WaitTimeout time.Duration
}

// CreatedInstance is the result of CreateInstance.
type CreatedInstance struct {
	ID      instance.ID
	UUID    string
	KeyPath string
	Record  instance.Record
}

// CreateInstance provisions an instance and stores its private key in the
// secrets store so later connections take the fast path.
func (m *Manager) CreateInstance(ctx context.Context, opts CreateOptions) (*CreatedInstance, error) {
	resp, err := m.api.Create(ctx, opts.CreateRequest)
	if err != nil {
		return nil, err
	}
	created := &CreatedInstance{ID: resp.Identifier, UUID: resp.UUID}
	m.log.Info("Created instance", "instance", created.ID, "uuid", created.UUID)

	if resp.Key != "" {
		material, err := m.store.Save(ctx, created.ID, []byte(resp.Key))
		if err != nil {
			return created, fmt.Errorf("instance %s created but its key could not be stored: %w", created.ID, err)
		}
		created.KeyPath = material.Path
	} else {
		m.log.Info("Create response carried no key; it will be resolved on first connect", "instance", created.ID)
	}

	if !opts.WaitForRunning {
		return created, nil
	}
	rec, err := m.WaitForStatus(ctx, created.ID, instance.StatusRunning, opts.WaitTimeout)
	created.Record = rec
	return created, err
}
