package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 30 * time.Second
	defaultKeepAlive   = 30 * time.Second
)

// Result is the outcome of one remote command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OK reports whether the command exited with status zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Combined returns stdout followed by stderr.
func (r Result) Combined() string { return r.Stdout + r.Stderr }

// Conn is an established SSH connection.
type Conn interface {
	// Run executes cmd in a fresh session. Remote exit codes are reported
	// in Result; err is non-nil only for transport failures or ctx expiry.
	Run(ctx context.Context, cmd string) (Result, error)
	// Close tears down the connection. Calling it more than once is allowed.
	Close() error
}

// Target identifies the endpoint and credentials for a dial.
type Target struct {
	Host   string
	Port   int
	User   string
	Signer ssh.Signer
}

// Addr returns host:port, applying the default port.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Conn, error)
}

// Config holds dialer configuration.
type Config struct {
	// DialTimeout bounds TCP connect plus SSH handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive period. If zero, defaultKeepAlive is used.
	KeepAlive time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// ClientDialer dials with golang.org/x/crypto/ssh.
type ClientDialer struct {
	config Config
	dialer net.Dialer
}

// NewDialer returns a ClientDialer with defaults applied to a copy of cfg.
func NewDialer(cfg Config) *ClientDialer {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // instance addresses are ephemeral
	}
	return &ClientDialer{
		config: cfg,
		dialer: net.Dialer{KeepAlive: cfg.KeepAlive},
	}
}

// Dial connects and authenticates with the target's signer. The context
// and DialTimeout both bound the TCP connect and the handshake.
func (d *ClientDialer) Dial(ctx context.Context, target Target) (Conn, error) {
	if target.Host == "" {
		return nil, fmt.Errorf("target host cannot be empty")
	}
	if target.User == "" {
		return nil, fmt.Errorf("target user cannot be empty")
	}
	if target.Signer == nil {
		return nil, fmt.Errorf("target signer cannot be nil")
	}

	addr := target.Addr()
	dctx, cancel := context.WithTimeout(ctx, d.config.DialTimeout)
	defer cancel()

	nc, err := d.dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	// The handshake has no context parameter; closing the socket unblocks it.
	stop := context.AfterFunc(dctx, func() { _ = nc.Close() })

	clientCfg := &ssh.ClientConfig{
		User:            target.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(target.Signer)},
		HostKeyCallback: d.config.HostKeyCallback,
		Timeout:         d.config.DialTimeout,
	}
	sc, chans, reqs, err := ssh.NewClientConn(nc, addr, clientCfg)
	if !stop() {
		if err == nil {
			_ = sc.Close()
		}
		_ = nc.Close()
		if ctxErr := dctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("SSH handshake with %s: %w", addr, ctxErr)
		}
		return nil, fmt.Errorf("SSH handshake with %s: connection closed", addr)
	}
	if err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("SSH handshake with %s: %w", addr, err)
	}

	return &clientConn{client: ssh.NewClient(sc, chans, reqs), addr: addr}, nil
}

// clientConn runs commands over a single *ssh.Client.
type clientConn struct {
	client *ssh.Client
	addr   string

	closeOnce sync.Once
	closeErr  error
}

func (c *clientConn) Run(ctx context.Context, cmd string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	session, err := c.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create SSH session on %s: %w", c.addr, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		// The buffers may still be written to by the session goroutine.
		_ = session.Close()
		return Result{}, ctx.Err()
	case err = <-done:
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		return res, fmt.Errorf("command failed on %s: %w", c.addr, err)
	}
	return res, nil
}

func (c *clientConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.Close()
		if errors.Is(c.closeErr, net.ErrClosed) {
			c.closeErr = nil
		}
	})
	return c.closeErr
}
