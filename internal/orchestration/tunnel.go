package orchestration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/tmux"
)

// DefaultTunnelSession is the tmux session cloudflared runs in.
const DefaultTunnelSession = "cloudflare-tunnel"

const defaultTunnelURLTimeout = 30 * time.Second

var tunnelURLRe = regexp.MustCompile(`https://[a-zA-Z0-9-]+\.trycloudflare\.com`)

// TunnelOptions configures StartTunnel.
type TunnelOptions struct {
	Port    int
	Session string
	// WaitForURL polls the session output for the public URL.
	WaitForURL bool
	Timeout    time.Duration
}

// Tunnel is a cloudflared quick tunnel running in a tmux session.
type Tunnel struct {
	Session string
	Port    int
	// URL is empty unless WaitForURL was set.
	URL string
	// Reused is true when the session already existed.
	Reused bool
}

// StartTunnel exposes a local port of the instance through a cloudflared
// quick tunnel. An existing tunnel session is reused as is.
func (m *Manager) StartTunnel(ctx context.Context, id instance.ID, opts TunnelOptions) (*Tunnel, error) {
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("invalid tunnel port %d", opts.Port)
	}
	if opts.Session == "" {
		opts.Session = DefaultTunnelSession
	}
	if err := tmux.ValidateName(opts.Session); err != nil {
		return nil, err
	}
	t := &Tunnel{Session: opts.Session, Port: opts.Port}

	state, err := m.sessions.State(ctx, id, opts.Session, nil)
	if err != nil {
		return nil, err
	}
	if state == tmux.Absent {
		script := "/tmp/tnrctl-" + opts.Session + ".sh"
		if err := m.writeTunnelScript(ctx, id, script, opts.Port); err != nil {
			return nil, err
		}
		runOpts := tmux.DefaultRunOptions()
		runOpts.Markers = false
		if _, err := m.sessions.RunScript(ctx, id, opts.Session, script, runOpts); err != nil {
			return nil, err
		}
		m.log.Info("Started tunnel", "instance", id, "session", opts.Session, "port", opts.Port)
	} else {
		t.Reused = true
		m.log.Info("Tunnel session already exists", "instance", id, "session", opts.Session)
	}

	if !opts.WaitForURL {
		return t, nil
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTunnelURLTimeout
	}
	match, err := m.sessions.WaitForOutput(ctx, id, opts.Session, tunnelURLRe,
		tmux.WaitOptions{Timeout: timeout, PollInterval: m.cfg.Timeouts.PollInterval})
	if err != nil {
		return t, err
	}
	t.URL = match[0]
	return t, nil
}

func (m *Manager) writeTunnelScript(ctx context.Context, id instance.ID, path string, port int) error {
	body := fmt.Sprintf("exec cloudflared tunnel --no-autoupdate --url http://localhost:%d", port)
	cmd := "printf '%s\\n' " + shellescape.Quote(body) + " > " + shellescape.Quote(path)
	res, err := m.Exec(ctx, id, cmd)
	if err != nil {
		return err
	}
	if !res.OK() {
		return errors.New("write tunnel script: " + res.Combined())
	}
	return nil
}
