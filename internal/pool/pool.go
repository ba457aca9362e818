package pool

import (
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/keys"
	"github.com/imamik/tnrctl/internal/platform/ssh"
	"github.com/imamik/tnrctl/internal/util/async"
)

const (
	defaultFreshnessWindow    = 10 * time.Second
	defaultHealthCheckTimeout = 5 * time.Second
	defaultHealthCheckCommand = "true"
)

// AddressResolver returns the SSH host for an instance.
type AddressResolver interface {
	Address(ctx context.Context, id instance.ID) (string, error)
}

// KeyResolver returns the private key for an instance.
type KeyResolver interface {
	Resolve(ctx context.Context, id instance.ID) (*keys.Material, error)
}

// Config holds pool settings. Zero values use defaults.
type Config struct {
	User               string
	Port               int
	FreshnessWindow    time.Duration
	HealthCheckTimeout time.Duration
	HealthCheckCommand string
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// WithClock sets the clock used for the freshness window.
func WithClock(clk clockwork.Clock) Option {
	return func(p *Pool) { p.clock = clk }
}

// WithMetrics enables pool metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

type entry struct {
	conn        ssh.Conn
	validatedAt time.Time
}

// Pool is the per-process SSH connection cache.
type Pool struct {
	cfg     Config
	addrs   AddressResolver
	keys    KeyResolver
	dialer  ssh.Dialer
	log     logr.Logger
	clock   clockwork.Clock
	metrics *Metrics

	mu      sync.Mutex // guards locks and entries, never held across I/O
	locks   map[instance.ID]*sync.Mutex
	entries map[instance.ID]*entry
}

// New builds a Pool.
func New(cfg Config, addrs AddressResolver, keyResolver KeyResolver, dialer ssh.Dialer, opts ...Option) *Pool {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = defaultFreshnessWindow
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = defaultHealthCheckTimeout
	}
	if cfg.HealthCheckCommand == "" {
		cfg.HealthCheckCommand = defaultHealthCheckCommand
	}
	p := &Pool{
		cfg:     cfg,
		addrs:   addrs,
		keys:    keyResolver,
		dialer:  dialer,
		log:     logr.Discard(),
		clock:   clockwork.NewRealClock(),
		locks:   make(map[instance.ID]*sync.Mutex),
		entries: make(map[instance.ID]*entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a validated connection for id, building one if needed.
func (p *Pool) Acquire(ctx context.Context, id instance.ID) (ssh.Conn, error) {
	start := p.clock.Now()
	defer func() { p.metrics.recordAcquire(p.clock.Since(start)) }()

	lock := p.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if e := p.lookup(id); e != nil {
		age := p.clock.Since(e.validatedAt)
		if age < p.cfg.FreshnessWindow {
			return e.conn, nil
		}
		if p.healthy(ctx, e.conn) {
			p.metrics.recordHealthCheck(true)
			e.validatedAt = p.clock.Now()
			return e.conn, nil
		}
		if err := ctx.Err(); err != nil {
			// A cancelled caller says nothing about the connection.
			return nil, &ConnectionError{Instance: id, Op: "health check", Err: err}
		}
		p.metrics.recordHealthCheck(false)
		p.log.Info("Cached connection failed health check, reconnecting", "instance", id, "age", age)
		p.evict(id, reasonHealthCheck)
	}

	conn, err := p.connect(ctx, id)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[id] = &entry{conn: conn, validatedAt: p.clock.Now()}
	n := len(p.entries)
	p.mu.Unlock()

	p.metrics.recordEstablished()
	p.metrics.setOpen(n)
	p.log.V(1).Info("SSH connection established", "instance", id)
	return conn, nil
}

// Invalidate drops the cached connection for id without reporting errors.
// The next Acquire reconnects.
func (p *Pool) Invalidate(id instance.ID) {
	lock := p.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	p.evict(id, reasonInvalidated)
}

// Release closes and forgets the connection for id. Releasing an instance
// with no cached connection is a no-op.
func (p *Pool) Release(id instance.ID) error {
	lock := p.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	e := p.take(id)
	if e == nil {
		return nil
	}
	p.metrics.recordEviction(reasonReleased)
	return closeConn(e.conn)
}

// CleanupAll releases every cached connection in parallel.
func (p *Pool) CleanupAll(ctx context.Context) error {
	ids := p.Instances()
	tasks := make([]async.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, async.Task{
			Name: id.String(),
			Func: func(context.Context) error { return p.Release(id) },
		})
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		p.log.Error(err, "Failed to close some SSH connections")
		return err
	}
	return nil
}

// Instances lists instances with a cached connection, sorted.
func (p *Pool) Instances() []instance.ID {
	p.mu.Lock()
	ids := make([]instance.ID, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of cached connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool) connect(ctx context.Context, id instance.ID) (ssh.Conn, error) {
	host, err := p.addrs.Address(ctx, id)
	if err != nil {
		return nil, &ConnectionError{Instance: id, Op: "resolve address", Err: err}
	}

	material, err := p.keys.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	conn, err := p.dialer.Dial(ctx, ssh.Target{
		Host:   host,
		Port:   p.cfg.Port,
		User:   p.cfg.User,
		Signer: material.Signer,
	})
	if err != nil {
		return nil, &ConnectionError{Instance: id, Op: "dial", Err: err}
	}
	return conn, nil
}

func (p *Pool) healthy(ctx context.Context, conn ssh.Conn) bool {
	hctx, cancel := context.WithTimeout(ctx, p.cfg.HealthCheckTimeout)
	defer cancel()
	res, err := conn.Run(hctx, p.cfg.HealthCheckCommand)
	return err == nil && res.OK()
}

// lockFor returns the mutex for id, creating it on first use.
func (p *Pool) lockFor(id instance.ID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[id]
	if !ok {
		l = &sync.Mutex{}
		p.locks[id] = l
	}
	return l
}

func (p *Pool) lookup(id instance.ID) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[id]
}

func (p *Pool) take(id instance.ID) *entry {
	p.mu.Lock()
	e := p.entries[id]
	delete(p.entries, id)
	n := len(p.entries)
	p.mu.Unlock()
	if e != nil {
		p.metrics.setOpen(n)
	}
	return e
}

// evict closes and removes the entry for id. Close errors are logged.
// The caller holds the instance lock.
func (p *Pool) evict(id instance.ID, reason string) {
	e := p.take(id)
	if e == nil {
		return
	}
	p.metrics.recordEviction(reason)
	if err := closeConn(e.conn); err != nil {
		p.log.V(1).Info("Error closing evicted connection", "instance", id, "error", err.Error())
	}
}

// closeConn closes conn, treating an already closed transport as success.
func closeConn(conn ssh.Conn) error {
	err := conn.Close()
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
