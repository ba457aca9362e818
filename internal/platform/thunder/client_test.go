package thunder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/util/retry"
)

// testServer creates an httptest server that mocks the lifecycle API.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu        sync.Mutex
	instances map[string]map[string]any
	listCalls atomic.Int32
	posts     []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		mux:       http.NewServeMux(),
		instances: map[string]map[string]any{},
	}
	ts.mux.HandleFunc("/instances/list", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "bad token"})
			return
		}
		ts.listCalls.Add(1)
		ts.mu.Lock()
		defer ts.mu.Unlock()
		jsonResponse(w, http.StatusOK, ts.instances)
	})
	ts.server = httptest.NewServer(ts.mux)
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) setInstance(id string, fields map[string]any) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.instances[id] = fields
}

// handlePost records POSTs to path and answers with status and body.
func (ts *testServer) handlePost(path string, status int, body any) {
	ts.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ts.mu.Lock()
		ts.posts = append(ts.posts, r.URL.Path)
		ts.mu.Unlock()
		jsonResponse(w, status, body)
	})
}

func (ts *testServer) client(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient("test-token", append([]ClientOption{WithBaseURL(ts.server.URL)}, opts...)...)
	require.NoError(t, err)
	return c
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewClient_EmptyToken(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestListInstances_DecodesAndSorts(t *testing.T) {
	ts := newTestServer(t)
	ts.setInstance("555", map[string]any{"status": "running", "ip": "10.0.0.5", "cpu_cores": "8", "gpu_type": "a100xl", "num_gpus": 1})
	ts.setInstance("42", map[string]any{"status": "STOPPED", "cpu_cores": 4})
	ts.setInstance("1000", map[string]any{"status": "PENDING"})

	records, err := ts.client(t).ListInstances(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, []instance.ID{"42", "555", "1000"}, []instance.ID{records[0].ID, records[1].ID, records[2].ID})
	assert.Equal(t, instance.StatusRunning, records[1].Status)
	assert.Equal(t, instance.FlexInt(8), records[1].CPUCores)
	assert.True(t, records[1].HasGPU())
	assert.Equal(t, "10.0.0.5", records[1].IP)
}

func TestListInstances_Unauthorized(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient("wrong", WithBaseURL(ts.server.URL))
	require.NoError(t, err)

	_, err = c.ListInstances(context.Background(), false)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "list", apiErr.Operation)
	assert.Contains(t, apiErr.Body, "bad token")
}

func TestGetInstance_NotFound(t *testing.T) {
	ts := newTestServer(t)

	_, err := ts.client(t).GetInstance(context.Background(), "999")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
	assert.True(t, IsNotFound(err))
}

func TestAddress(t *testing.T) {
	ts := newTestServer(t)
	ts.setInstance("1", map[string]any{"status": "RUNNING", "ip": "1.2.3.4"})
	ts.setInstance("2", map[string]any{"status": "STOPPED"})
	c := ts.client(t)

	ip, err := c.Address(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", ip)

	_, err = c.Address(context.Background(), "2")
	assert.ErrorIs(t, err, ErrNoAddress)
	assert.Contains(t, err.Error(), "STOPPED")
}

func TestListCache_TTLAndForce(t *testing.T) {
	ts := newTestServer(t)
	ts.setInstance("1", map[string]any{"status": "RUNNING"})
	clk := clockwork.NewFakeClock()
	c := ts.client(t, WithClock(clk))
	ctx := context.Background()

	_, err := c.ListInstances(ctx, false)
	require.NoError(t, err)
	_, err = c.ListInstances(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ts.listCalls.Load(), "second call served from cache")

	clk.Advance(29 * time.Second)
	_, err = c.ListInstances(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ts.listCalls.Load())

	clk.Advance(2 * time.Second)
	_, err = c.ListInstances(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ts.listCalls.Load(), "expired after TTL")

	_, err = c.ListInstances(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ts.listCalls.Load(), "force bypasses cache")
}

func TestMutations_InvalidateCache(t *testing.T) {
	ts := newTestServer(t)
	ts.setInstance("7", map[string]any{"status": "STOPPED"})
	ts.handlePost("/instances/7/up", http.StatusOK, map[string]string{})
	ts.handlePost("/instances/7/down", http.StatusOK, map[string]string{})
	ts.handlePost("/instances/7/modify", http.StatusOK, map[string]string{})
	ts.handlePost("/instances/7/clone", http.StatusOK, map[string]any{"uuid": "u", "key": "k", "identifier": 8})
	c := ts.client(t, WithClock(clockwork.NewFakeClock()))
	ctx := context.Background()

	steps := []struct {
		name string
		call func() error
	}{
		{"start", func() error { return c.Start(ctx, "7") }},
		{"stop", func() error { return c.Stop(ctx, "7") }},
		{"modify", func() error { return c.Modify(ctx, "7", ModifyRequest{CPUCores: 16}) }},
		{"clone", func() error {
			resp, err := c.Clone(ctx, "7", CloneRequest{Name: "copy"})
			if err == nil && resp.Identifier != "8" {
				return errors.New("unexpected clone id " + resp.Identifier.String())
			}
			return err
		}},
	}

	for i, step := range steps {
		_, err := c.ListInstances(ctx, false)
		require.NoError(t, err)
		before := ts.listCalls.Load()

		require.NoError(t, step.call(), step.name)

		_, err = c.ListInstances(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, before+1, ts.listCalls.Load(), "step %d (%s) must invalidate", i, step.name)
	}
	assert.Equal(t, []string{"/instances/7/up", "/instances/7/down", "/instances/7/modify", "/instances/7/clone"}, ts.posts)
}

func TestCreate(t *testing.T) {
	ts := newTestServer(t)
	var got CreateRequest
	ts.mux.HandleFunc("/instances/create", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		jsonResponse(w, http.StatusOK, map[string]any{"uuid": "abc", "key": "-----BEGIN KEY-----", "identifier": 555})
	})

	resp, err := ts.client(t).Create(context.Background(), CreateRequest{CPUCores: 8, GPUType: "a100xl", NumGPUs: 1, DiskSizeGB: 200, Name: "kohya"})
	require.NoError(t, err)

	assert.Equal(t, instance.ID("555"), resp.Identifier)
	assert.Equal(t, "abc", resp.UUID)
	assert.Equal(t, "-----BEGIN KEY-----", resp.Key)
	assert.Equal(t, CreateRequest{CPUCores: 8, GPUType: "a100xl", NumGPUs: 1, DiskSizeGB: 200, Name: "kohya"}, got)
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	ts := newTestServer(t)
	ts.handlePost("/instances/7/delete", http.StatusOK, map[string]string{})
	c := ts.client(t)

	err := c.Delete(context.Background(), "7", false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, ts.posts, "no request without confirmation")

	require.NoError(t, c.Delete(context.Background(), "7", true))
	assert.Equal(t, []string{"/instances/7/delete"}, ts.posts)
}

func TestMutation_APIError(t *testing.T) {
	ts := newTestServer(t)
	ts.handlePost("/instances/7/up", http.StatusNotFound, map[string]string{"error": "no such instance"})

	err := ts.client(t).Start(context.Background(), "7")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "instance 7")
}

func TestWaitForStatus_Reached(t *testing.T) {
	ts := newTestServer(t)
	ts.setInstance("3", map[string]any{"status": "STARTING"})
	c := ts.client(t)

	go func() {
		time.Sleep(30 * time.Millisecond)
		ts.setInstance("3", map[string]any{"status": "RUNNING", "ip": "9.9.9.9"})
	}()

	rec, err := c.WaitForStatus(context.Background(), "3", instance.StatusRunning, 10*time.Millisecond, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusRunning, rec.Status)
	assert.Equal(t, "9.9.9.9", rec.IP)
	assert.GreaterOrEqual(t, ts.listCalls.Load(), int32(2), "every poll forces a refresh")
}

func TestWaitForStatus_Timeout(t *testing.T) {
	ts := newTestServer(t)
	ts.setInstance("3", map[string]any{"status": "STARTING"})
	c := ts.client(t)

	start := time.Now()
	rec, err := c.WaitForStatus(context.Background(), "3", instance.StatusRunning, 20*time.Millisecond, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrTimeout)
	var te *retry.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 100*time.Millisecond, te.Timeout)
	assert.Equal(t, instance.StatusStarting, rec.Status)
	assert.Less(t, elapsed, time.Second)
}

func TestWaitForStatus_NotFoundAborts(t *testing.T) {
	ts := newTestServer(t)

	_, err := ts.client(t).WaitForStatus(context.Background(), "3", instance.StatusRunning, 10*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}
