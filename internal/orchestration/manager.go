package orchestration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/keys"
	"github.com/imamik/tnrctl/internal/platform/ssh"
	"github.com/imamik/tnrctl/internal/platform/thunder"
	"github.com/imamik/tnrctl/internal/pool"
	"github.com/imamik/tnrctl/internal/tmux"
	"github.com/imamik/tnrctl/internal/util/retry"
)

// Option configures New.
type Option func(*options)

type options struct {
	log          logr.Logger
	clock        clockwork.Clock
	httpClient   *http.Client
	dialer       ssh.Dialer
	hosts        keys.HostLookup
	bootstrapper keys.Bootstrapper
}

// WithLogger sets the logger shared by every component.
func WithLogger(log logr.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock sets the clock shared by every component.
func WithClock(clk clockwork.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithHTTPClient replaces the lifecycle API HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithDialer replaces the SSH dialer.
func WithDialer(d ssh.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithHostLookup replaces the SSH client config lookup.
func WithHostLookup(h keys.HostLookup) Option {
	return func(o *options) { o.hosts = h }
}

// WithBootstrapper overrides the strategy chosen from cfg.AutoSetupKeys.
func WithBootstrapper(b keys.Bootstrapper) Option {
	return func(o *options) { o.bootstrapper = b }
}

// Manager owns the process-wide state: the instance list cache inside the
// lifecycle client and the SSH connection pool.
type Manager struct {
	cfg      *config.Config
	log      logr.Logger
	clock    clockwork.Clock
	registry *prometheus.Registry

	api      *thunder.Client
	store    *keys.Store
	resolver *keys.Resolver
	pool     *pool.Pool
	sessions *tmux.Driver

	closeOnce sync.Once
	closeErr  error
}

// New builds a Manager from cfg. The API key comes from cfg.APIKey or,
// when empty, from cfg.APIKeyFile.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	o := options{log: logr.Discard(), clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	token := cfg.APIKey
	if token == "" {
		var err error
		if token, err = keys.ReadAPIKey(cfg.APIKeyFile); err != nil {
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()

	clientOpts := []thunder.ClientOption{
		thunder.WithBaseURL(cfg.APIBaseURL),
		thunder.WithLogger(o.log.WithName("thunder")),
		thunder.WithClock(o.clock),
		thunder.WithMetrics(thunder.NewMetrics(reg)),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, thunder.WithHTTPClient(o.httpClient))
	}
	api, err := thunder.NewClient(token, clientOpts...)
	if err != nil {
		return nil, err
	}

	store := keys.NewStore(cfg.SecretsDir, o.log.WithName("keys"))
	if o.hosts == nil {
		o.hosts = keys.NewSSHConfig(cfg.SSHConfigPath)
	}
	if o.bootstrapper == nil {
		o.bootstrapper = keys.NewBootstrapper(cfg, o.log.WithName("bootstrap"))
	}
	resolver := keys.NewResolver(store, o.hosts, o.bootstrapper,
		keys.WithHostAliasPrefix(cfg.HostAliasPrefix),
		keys.WithResolverLogger(o.log.WithName("keys")))

	if o.dialer == nil {
		o.dialer = ssh.NewDialer(ssh.Config{DialTimeout: cfg.Timeouts.Connect})
	}
	connPool := pool.New(pool.Config{
		User:               cfg.SSHUser,
		Port:               cfg.SSHPort,
		FreshnessWindow:    cfg.FreshnessWindow,
		HealthCheckTimeout: cfg.Timeouts.HealthCheck,
	}, api, resolver, o.dialer,
		pool.WithLogger(o.log.WithName("pool")),
		pool.WithClock(o.clock),
		pool.WithMetrics(pool.NewMetrics(reg)))

	sessions := tmux.New(connPool,
		tmux.WithLogger(o.log.WithName("tmux")),
		tmux.WithClock(o.clock),
		tmux.WithCommandTimeout(cfg.Timeouts.Command),
		tmux.WithDefaults(cfg.Timeouts.ScriptWait, cfg.Timeouts.PollInterval))

	return &Manager{
		cfg:      cfg,
		log:      o.log,
		clock:    o.clock,
		registry: reg,
		api:      api,
		store:    store,
		resolver: resolver,
		pool:     connPool,
		sessions: sessions,
	}, nil
}

// Close releases every pooled connection. It is safe to call repeatedly.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeouts.HealthCheck)
		defer cancel()
		m.closeErr = m.pool.CleanupAll(ctx)
	})
	return m.closeErr
}

// Instances returns the lifecycle client.
func (m *Manager) Instances() *thunder.Client { return m.api }

// Sessions returns the tmux driver.
func (m *Manager) Sessions() *tmux.Driver { return m.sessions }

// Pool returns the connection pool.
func (m *Manager) Pool() *pool.Pool { return m.pool }

// Keys returns the key resolver.
func (m *Manager) Keys() *keys.Resolver { return m.resolver }

// Store returns the secrets store.
func (m *Manager) Store() *keys.Store { return m.store }

// Exec runs cmd on the instance over the pooled connection. A transport
// failure drops the cached connection before returning.
func (m *Manager) Exec(ctx context.Context, id instance.ID, cmd string) (ssh.Result, error) {
	conn, err := m.pool.Acquire(ctx, id)
	if err != nil {
		return ssh.Result{}, err
	}
	res, err := conn.Run(ctx, cmd)
	if err != nil {
		if ctx.Err() == nil {
			m.pool.Invalidate(id)
		}
		return ssh.Result{}, &pool.ConnectionError{Instance: id, Op: "run", Err: err}
	}
	return res, nil
}

// WaitForSSH retries a trivial remote command until the instance accepts
// SSH. attempts counts every try, including the first. Key resolution and
// configuration errors are not retried.
func (m *Manager) WaitForSSH(ctx context.Context, id instance.ID, attempts int, delay time.Duration) error {
	return retry.WithExponentialBackoff(ctx, func(ctx context.Context, attempt int) error {
		res, err := m.Exec(ctx, id, "echo ready")
		switch {
		case errors.Is(err, keys.ErrKeyResolution), errors.Is(err, config.ErrConfiguration):
			return retry.Fatal(err)
		case err != nil:
			return err
		case !res.OK():
			return fmt.Errorf("probe exited with status %d: %s", res.ExitCode, res.Combined())
		}
		m.log.V(1).Info("SSH ready", "instance", id, "attempt", attempt)
		return nil
	},
		retry.WithAttempts(attempts),
		retry.WithInitialDelay(delay),
		retry.WithMaxDelay(4*delay),
		retry.WithMultiplier(1.5),
		retry.WithBackoffClock(m.clock),
		retry.OnRetry(func(attempt int, err error, wait time.Duration) {
			m.log.Info("SSH not ready yet", "instance", id, "attempt", attempt, "of", attempts, "retryIn", wait, "error", err.Error())
		}))
}

// EnsureRunning starts the instance unless it is already running and
// waits for RUNNING.
func (m *Manager) EnsureRunning(ctx context.Context, id instance.ID, timeout time.Duration) (instance.Record, error) {
	rec, err := m.api.GetInstance(ctx, id)
	if err != nil {
		return rec, err
	}
	if rec.Status == instance.StatusRunning {
		return rec, nil
	}
	if rec.Status != instance.StatusStarting && rec.Status != instance.StatusPending {
		m.log.Info("Starting instance", "instance", id, "status", rec.Status)
		if err := m.api.Start(ctx, id); err != nil {
			return rec, err
		}
	}
	return m.WaitForStatus(ctx, id, instance.StatusRunning, timeout)
}

// WaitForStatus polls the instance at the configured interval until it
// reports target. A non-positive timeout means the configured status wait.
func (m *Manager) WaitForStatus(ctx context.Context, id instance.ID, target instance.Status, timeout time.Duration) (instance.Record, error) {
	if timeout <= 0 {
		timeout = m.cfg.Timeouts.StatusWait
	}
	return m.api.WaitForStatus(ctx, id, target, m.cfg.Timeouts.PollInterval, timeout)
}

// WriteMetrics writes every collected metric to path in Prometheus text
// format.
func (m *Manager) WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Registry exposes the metrics registry.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }
