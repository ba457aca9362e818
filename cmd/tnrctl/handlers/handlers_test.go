package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/keys"
	"github.com/imamik/tnrctl/internal/orchestration"
	testutil "github.com/imamik/tnrctl/internal/testing"
)

// fakeAPI serves the lifecycle endpoints the handlers touch.
type fakeAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	instances map[string]map[string]any
	posts     []string
	bodies    map[string]map[string]any
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{instances: map[string]map[string]any{}, bodies: map[string]map[string]any{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /instances/list", func(w http.ResponseWriter, _ *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		writeJSON(w, api.instances)
	})
	mux.HandleFunc("POST /instances/create", func(w http.ResponseWriter, _ *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		api.posts = append(api.posts, "create")
		api.instances["77"] = map[string]any{"status": "RUNNING", "ip": "10.1.0.77"}
		writeJSON(w, map[string]any{"uuid": "u-77", "identifier": 77})
	})
	mux.HandleFunc("POST /instances/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		id, action := r.PathValue("id"), r.PathValue("action")
		api.posts = append(api.posts, action+" "+id)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.bodies[action+" "+id] = body

		inst, ok := api.instances[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch action {
		case "up":
			inst["status"] = "RUNNING"
		case "down":
			inst["status"] = "STOPPED"
		case "delete":
			delete(api.instances, id)
		case "clone":
			writeJSON(w, map[string]any{"uuid": "u-clone", "identifier": 78})
			return
		}
		writeJSON(w, map[string]any{})
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) set(id, status, ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.instances[id] = map[string]any{"status": status, "ip": ip, "name": "box-" + id, "cpu_cores": 8, "gpu_type": "a100", "num_gpus": "1", "disk_size_gb": 100}
}

func (a *fakeAPI) postCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.posts...)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

type fixture struct {
	api    *fakeAPI
	host   *testutil.FakeHost
	dialer *testutil.FakeDialer
	cfg    *config.Config
}

// newFixture swaps the package factories for fakes. Tests using it must
// not run in parallel.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{api: newFakeAPI(t), host: testutil.NewFakeHost()}
	f.dialer = testutil.NewFakeDialer(f.host)
	f.cfg = testutil.NewConfigBuilder(t.TempDir()).
		WithAPIBaseURL(f.api.server.URL).
		WithPollInterval(10 * time.Millisecond).
		Build()

	origLoad, origManager, origTerminal, origConfirm := loadConfig, newManager, isTerminal, confirm
	t.Cleanup(func() {
		loadConfig, newManager, isTerminal, confirm = origLoad, origManager, origTerminal, origConfirm
	})

	loadConfig = func(string) (*config.Config, error) { return f.cfg, nil }
	newManager = func(cfg *config.Config, _ logr.Logger) (*orchestration.Manager, error) {
		return orchestration.New(cfg, orchestration.WithLogger(testr.New(t)), orchestration.WithDialer(f.dialer))
	}
	isTerminal = func() bool { return false }
	confirm = func(context.Context, string, string) (bool, error) {
		t.Fatal("unexpected confirmation prompt")
		return false, nil
	}
	return f
}

func (f *fixture) storeKey(t *testing.T, id string) {
	t.Helper()
	_, err := keys.NewStore(f.cfg.SecretsDir, logr.Discard()).
		Save(context.Background(), instance.ID(id), testutil.PrivateKeyPEM(t))
	require.NoError(t, err)
}

// captureOutput captures stdout during f.
func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	f()

	_ = w.Close()
	os.Stdout = old
	return <-done
}

func TestWithManager_WritesMetricsFile(t *testing.T) {
	f := newFixture(t)
	f.api.set("1", "RUNNING", "10.1.0.1")
	path := filepath.Join(t.TempDir(), "tnrctl.prom")

	err := withManager(Options{MetricsFile: path}, func(m *orchestration.Manager) error {
		_, err := m.Instances().ListInstances(context.Background(), true)
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "tnrctl_")
}

func TestWithManager_ConfigError(t *testing.T) {
	newFixture(t)
	loadConfig = func(string) (*config.Config, error) {
		return nil, config.NewConfigurationError("ssh_port", "use 1-65535", nil)
	}

	called := false
	err := withManager(Options{}, func(*orchestration.Manager) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, config.ErrConfiguration)
	require.False(t, called)
}

func TestParseID(t *testing.T) {
	t.Parallel()
	id, err := parseID("42")
	require.NoError(t, err)
	require.Equal(t, instance.ID("42"), id)

	_, err = parseID("")
	require.Error(t, err)
}

func TestExitCodeError(t *testing.T) {
	t.Parallel()
	require.Equal(t, "exit status 3", (&ExitCodeError{Code: 3}).Error())

	inner := os.ErrNotExist
	err := &ExitCodeError{Code: 2, Err: inner}
	require.ErrorIs(t, err, os.ErrNotExist)
}
