package thunder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/util/retry"
)

// CreateRequest is the body of POST /instances/create.
type CreateRequest struct {
	CPUCores   int    `json:"cpu_cores"`
	GPUType    string `json:"gpu_type"`
	NumGPUs    int    `json:"num_gpus"`
	DiskSizeGB int    `json:"disk_size_gb"`
	Template   string `json:"template,omitempty"`
	Name       string `json:"name,omitempty"`
}

// CreateResponse is returned by create and clone. Key is the PEM private
// key for the new instance.
type CreateResponse struct {
	UUID       string      `json:"uuid"`
	Key        string      `json:"key"`
	Identifier instance.ID `json:"identifier"`
}

// ModifyRequest changes the shape of a stopped instance. Zero fields are
// left unchanged.
type ModifyRequest struct {
	CPUCores   int    `json:"cpu_cores,omitempty"`
	GPUType    string `json:"gpu_type,omitempty"`
	NumGPUs    int    `json:"num_gpus,omitempty"`
	DiskSizeGB int    `json:"disk_size_gb,omitempty"`
}

// CloneRequest names the clone.
type CloneRequest struct {
	Name string `json:"name,omitempty"`
}

// ListInstances returns all instances ordered by id. With force, the cache
// is bypassed and refreshed.
func (c *Client) ListInstances(ctx context.Context, force bool) ([]instance.Record, error) {
	snap, err := c.snapshot(ctx, force)
	if err != nil {
		return nil, err
	}

	records := make([]instance.Record, 0, len(snap))
	for _, rec := range snap {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return lessID(records[i].ID, records[j].ID) })
	return records, nil
}

// GetInstance returns one instance from the (possibly cached) list.
func (c *Client) GetInstance(ctx context.Context, id instance.ID) (instance.Record, error) {
	return c.getInstance(ctx, id, false)
}

// GetStatus returns the lifecycle state of an instance.
func (c *Client) GetStatus(ctx context.Context, id instance.ID) (instance.Status, error) {
	rec, err := c.GetInstance(ctx, id)
	if err != nil {
		return instance.StatusUnknown, err
	}
	return rec.Status, nil
}

// Address returns the instance IP used for SSH.
func (c *Client) Address(ctx context.Context, id instance.ID) (string, error) {
	rec, err := c.GetInstance(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.IP == "" {
		return "", fmt.Errorf("instance %s (status %s): %w", id, rec.Status, ErrNoAddress)
	}
	return rec.IP, nil
}

// WaitForStatus polls until the instance reports target. Each poll forces
// a list refresh. On expiry it returns a *retry.TimeoutError together with
// the last observed record.
func (c *Client) WaitForStatus(ctx context.Context, id instance.ID, target instance.Status, poll, timeout time.Duration) (instance.Record, error) {
	var last instance.Record

	res, err := retry.Poll(ctx, retry.PollConfig{Interval: poll, Timeout: timeout, Clock: c.clock},
		func(ctx context.Context) (bool, error) {
			rec, err := c.getInstance(ctx, id, true)
			if err != nil {
				return false, err
			}
			last = rec
			c.log.V(1).Info("Waiting for instance status", "instance", id, "status", rec.Status, "target", target)
			return rec.Status == target, nil
		})
	if err != nil {
		return last, err
	}
	if err := res.TimeoutError(fmt.Sprintf("waiting for instance %s to reach %s (last %s)", id, target, last.Status), timeout); err != nil {
		return last, err
	}
	return last, nil
}

// Create provisions a new instance.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	defer c.cache.invalidate()

	var resp CreateResponse
	if err := c.do(ctx, "create", http.MethodPost, "/instances/create", req, &resp); err != nil {
		return nil, err
	}
	if resp.Identifier == "" {
		return nil, fmt.Errorf("create: response has no instance identifier")
	}
	return &resp, nil
}

// Start boots a stopped instance.
func (c *Client) Start(ctx context.Context, id instance.ID) error {
	return c.mutate(ctx, "start", id, "up", nil, nil)
}

// Stop shuts an instance down.
func (c *Client) Stop(ctx context.Context, id instance.ID) error {
	return c.mutate(ctx, "stop", id, "down", nil, nil)
}

// Modify changes the shape of an instance.
func (c *Client) Modify(ctx context.Context, id instance.ID, req ModifyRequest) error {
	return c.mutate(ctx, "modify", id, "modify", req, nil)
}

// Clone copies an instance.
func (c *Client) Clone(ctx context.Context, id instance.ID, req CloneRequest) (*CreateResponse, error) {
	var resp CreateResponse
	if err := c.mutate(ctx, "clone", id, "clone", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete destroys an instance. Without confirm no request is sent.
func (c *Client) Delete(ctx context.Context, id instance.ID, confirm bool) error {
	if !confirm {
		return fmt.Errorf("instance %s: %w", id, ErrConfirmationRequired)
	}
	return c.mutate(ctx, "delete", id, "delete", nil, nil)
}

// mutate posts to /instances/{id}/{action}. The list cache is invalidated
// whether or not the call succeeded.
func (c *Client) mutate(ctx context.Context, op string, id instance.ID, action string, in, out any) error {
	defer c.cache.invalidate()

	path := fmt.Sprintf("/instances/%s/%s", url.PathEscape(id.String()), action)
	if err := c.do(ctx, op, http.MethodPost, path, in, out); err != nil {
		return fmt.Errorf("instance %s: %w", id, err)
	}
	c.log.Info("Instance lifecycle call", "operation", op, "instance", id)
	return nil
}

func (c *Client) getInstance(ctx context.Context, id instance.ID, force bool) (instance.Record, error) {
	snap, err := c.snapshot(ctx, force)
	if err != nil {
		return instance.Record{}, err
	}
	rec, ok := snap[id]
	if !ok {
		return instance.Record{}, fmt.Errorf("instance %s: %w", id, ErrInstanceNotFound)
	}
	return rec, nil
}

func (c *Client) snapshot(ctx context.Context, force bool) (snapshot, error) {
	if !force {
		if snap, ok := c.cache.fresh(); ok {
			return snap, nil
		}
	}
	return c.cache.refresh(ctx, c.fetchList)
}

func (c *Client) fetchList(ctx context.Context) (snapshot, error) {
	var raw map[string]json.RawMessage
	if err := c.do(ctx, "list", http.MethodGet, "/instances/list", nil, &raw); err != nil {
		return nil, err
	}

	snap := make(snapshot, len(raw))
	for key, data := range raw {
		var rec instance.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("list: failed to decode instance %s: %w", key, err)
		}
		rec.ID = instance.ID(key)
		rec.Status = instance.ParseStatus(string(rec.Status))
		snap[rec.ID] = rec
	}
	return snap, nil
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b instance.ID) bool {
	ai, aerr := strconv.Atoi(string(a))
	bi, berr := strconv.Atoi(string(b))
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
