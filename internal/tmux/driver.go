package tmux

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/platform/ssh"
	"github.com/imamik/tnrctl/internal/util/retry"
)

// Acquirer hands out connections and drops broken ones.
// *pool.Pool implements it.
type Acquirer interface {
	Acquire(ctx context.Context, id instance.ID) (ssh.Conn, error)
	Invalidate(id instance.ID)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Driver) { d.log = log }
}

// WithClock sets the clock used for polling and run timestamps.
func WithClock(clk clockwork.Clock) Option {
	return func(d *Driver) { d.clock = clk }
}

// WithHistoryLimit sets the scrollback applied to every started session.
func WithHistoryLimit(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.historyLimit = n
		}
	}
}

// WithCommandTimeout bounds each individual tmux command.
func WithCommandTimeout(t time.Duration) Option {
	return func(d *Driver) {
		if t > 0 {
			d.commandTimeout = t
		}
	}
}

// WithDefaults sets the timeout and poll interval used when a call leaves
// them zero.
func WithDefaults(timeout, poll time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.waitTimeout = timeout
		}
		if poll > 0 {
			d.pollInterval = poll
		}
	}
}

// WithNonceFunc replaces the random marker nonce generator.
func WithNonceFunc(fn func() string) Option {
	return func(d *Driver) { d.nonce = fn }
}

// Driver runs the tmux session protocol over pooled SSH connections.
type Driver struct {
	conns          Acquirer
	log            logr.Logger
	clock          clockwork.Clock
	historyLimit   int
	commandTimeout time.Duration
	waitTimeout    time.Duration
	pollInterval   time.Duration
	nonce          func() string
}

// New creates a Driver.
func New(conns Acquirer, opts ...Option) *Driver {
	d := &Driver{
		conns:          conns,
		log:            logr.Discard(),
		clock:          clockwork.NewRealClock(),
		historyLimit:   DefaultHistoryLimit,
		commandTimeout: DefaultCommandTimeout,
		waitTimeout:    DefaultWaitTimeout,
		pollInterval:   DefaultPollInterval,
		nonce:          newNonce,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StartSession creates a detached session unless it already exists. The
// boolean reports whether this call created it. Losing a creation race to
// another client counts as success.
func (d *Driver) StartSession(ctx context.Context, id instance.ID, name string, opts SessionOptions) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	exists, err := d.hasSession(ctx, id, name)
	if err != nil {
		return false, err
	}

	created := false
	if !exists {
		cmd := newSessionCmd(name, opts.Dir)
		res, err := d.exec(ctx, id, cmd)
		if err != nil {
			return false, err
		}
		switch {
		case res.OK():
			created = true
		case isDuplicateSession(res.Stderr):
			d.log.V(1).Info("Session created concurrently", "instance", id, "session", name)
		default:
			return false, commandError(cmd, res)
		}
	}

	cmd := setHistoryLimitCmd(name, d.historyLimit)
	res, err := d.exec(ctx, id, cmd)
	if err != nil {
		return created, err
	}
	if !res.OK() {
		return created, d.classify(id, name, cmd, res)
	}

	if created {
		d.log.Info("Started tmux session", "instance", id, "session", name)
	}
	return created, nil
}

// RunScript types `bash <script>` into the session. With opts.Wait the call
// blocks until the script finishes or opts.Timeout passes; on timeout the
// script keeps running remotely and the returned Run can be waited on again.
func (d *Driver) RunScript(ctx context.Context, id instance.ID, name, script string, opts RunOptions) (*Run, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(script) == "" {
		return nil, errors.New("script path is empty")
	}

	if opts.CreateIfMissing {
		if _, err := d.StartSession(ctx, id, name, SessionOptions{Dir: opts.Dir}); err != nil {
			return nil, err
		}
	} else {
		exists, err := d.hasSession(ctx, id, name)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &SessionNotFoundError{Instance: id, Session: name}
		}
	}

	var nonce string
	if opts.Markers || opts.Wait {
		nonce = d.nonce()
	}
	line, err := scriptLine(script, opts.Dir, opts.Env, nonce)
	if err != nil {
		return nil, err
	}

	cmd := sendKeysCmd(name, line)
	res, err := d.exec(ctx, id, cmd)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, d.classify(id, name, "tmux send-keys", res)
	}

	run := &Run{
		Session:   Session{Instance: id, Name: name},
		Nonce:     nonce,
		Command:   line,
		StartedAt: d.clock.Now(),
	}
	d.log.Info("Dispatched script", "instance", id, "session", name, "script", script, "nonce", nonce)

	if !opts.Wait {
		return run, nil
	}
	_, err = d.Wait(ctx, run, WaitOptions{Timeout: opts.Timeout, PollInterval: opts.PollInterval})
	return run, err
}

// Wait polls the run's session until its completion marker appears.
//
// A failure marker returns the Completion together with a *ScriptError.
// When neither marker shows up before the timeout, a *retry.TimeoutError
// is returned and the remote script is left alone. Transport errors during
// polling drop the cached connection and the next poll reconnects; a
// failed reconnect ends the wait.
func (d *Driver) Wait(ctx context.Context, run *Run, opts WaitOptions) (*Completion, error) {
	if run == nil || run.Nonce == "" {
		return nil, ErrNoMarkers
	}
	timeout, poll := d.waitBounds(opts)
	id, name := run.Session.Instance, run.Session.Name

	exitCode := 0
	res, err := retry.Poll(ctx, retry.PollConfig{Interval: poll, Timeout: timeout, Clock: d.clock},
		func(ctx context.Context) (bool, error) {
			out, err := d.capture(ctx, id, name, 0)
			if err != nil {
				if isTransport(err) {
					d.log.V(1).Info("Lost connection while waiting, will reconnect",
						"instance", id, "session", name, "error", err.Error())
					return false, nil
				}
				return false, err
			}
			code, found := findMarker(out, run.Nonce)
			exitCode = code
			return found, nil
		})
	if err != nil {
		return nil, err
	}
	if tErr := res.TimeoutError(fmt.Sprintf("wait for script in session %q on instance %s", name, id), timeout); tErr != nil {
		d.log.Info("Script still running after wait timeout", "instance", id, "session", name, "timeout", timeout)
		return nil, tErr
	}

	run.Completion = &Completion{ExitCode: exitCode, Elapsed: d.clock.Since(run.StartedAt)}
	if exitCode != 0 {
		return run.Completion, &ScriptError{Instance: id, Session: name, ExitCode: exitCode}
	}
	return run.Completion, nil
}

// GetOutput returns the pane contents. lines <= 0 returns the full
// scrollback, otherwise the last lines lines.
func (d *Driver) GetOutput(ctx context.Context, id instance.ID, name string, lines int) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return d.capture(ctx, id, name, lines)
}

// KillSession kills the session. Killing an absent session succeeds.
func (d *Driver) KillSession(ctx context.Context, id instance.ID, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	cmd := killSessionCmd(name)
	res, err := d.exec(ctx, id, cmd)
	if err != nil {
		return err
	}
	if res.OK() || isSessionNotFound(res.Stderr) {
		return nil
	}
	return commandError(cmd, res)
}

// State reports whether the session exists and, when run is given, whether
// that run has printed its marker.
func (d *Driver) State(ctx context.Context, id instance.ID, name string, run *Run) (State, error) {
	if err := ValidateName(name); err != nil {
		return Unknown, err
	}
	exists, err := d.hasSession(ctx, id, name)
	if err != nil {
		return Unknown, err
	}
	if !exists {
		return Absent, nil
	}
	if run == nil || run.Nonce == "" {
		return Running, nil
	}

	out, err := d.capture(ctx, id, name, 0)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Absent, nil
		}
		return Unknown, err
	}
	if _, found := findMarker(out, run.Nonce); found {
		return Completed, nil
	}
	return Running, nil
}

// ListSessions lists the sessions on the instance. No tmux server means no
// sessions.
func (d *Driver) ListSessions(ctx context.Context, id instance.ID) ([]SessionInfo, error) {
	cmd := listSessionsCmd()
	res, err := d.exec(ctx, id, cmd)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		if isNoServer(res.Stderr) {
			return []SessionInfo{}, nil
		}
		return nil, commandError(cmd, res)
	}
	return parseSessions(res.Stdout), nil
}

// WaitForOutput polls the pane until pattern matches and returns the
// submatches of the last match.
func (d *Driver) WaitForOutput(ctx context.Context, id instance.ID, name string, pattern *regexp.Regexp, opts WaitOptions) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	timeout, poll := d.waitBounds(opts)

	var match []string
	res, err := retry.Poll(ctx, retry.PollConfig{Interval: poll, Timeout: timeout, Clock: d.clock},
		func(ctx context.Context) (bool, error) {
			out, err := d.capture(ctx, id, name, 0)
			if err != nil {
				if isTransport(err) {
					return false, nil
				}
				return false, err
			}
			all := pattern.FindAllStringSubmatch(out, -1)
			if len(all) == 0 {
				return false, nil
			}
			match = all[len(all)-1]
			return true, nil
		})
	if err != nil {
		return nil, err
	}
	if tErr := res.TimeoutError(fmt.Sprintf("wait for %q in session %q on instance %s", pattern, name, id), timeout); tErr != nil {
		return nil, tErr
	}
	return match, nil
}

func (d *Driver) hasSession(ctx context.Context, id instance.ID, name string) (bool, error) {
	cmd := hasSessionCmd(name)
	res, err := d.exec(ctx, id, cmd)
	if err != nil {
		return false, err
	}
	if res.OK() {
		return true, nil
	}
	if isSessionNotFound(res.Stderr) {
		return false, nil
	}
	return false, commandError(cmd, res)
}

func (d *Driver) capture(ctx context.Context, id instance.ID, name string, lines int) (string, error) {
	cmd := capturePaneCmd(name, lines)
	res, err := d.exec(ctx, id, cmd)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", d.classify(id, name, "tmux capture-pane", res)
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

// exec runs cmd over the pooled connection. A transport failure drops the
// cached connection and is returned as a transportError; acquisition
// errors are returned unchanged.
func (d *Driver) exec(ctx context.Context, id instance.ID, cmd string) (ssh.Result, error) {
	conn, err := d.conns.Acquire(ctx, id)
	if err != nil {
		return ssh.Result{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, d.commandTimeout)
	defer cancel()

	res, err := conn.Run(cctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ssh.Result{}, ctxErr
		}
		d.conns.Invalidate(id)
		return ssh.Result{}, &transportError{err: err}
	}
	return res, nil
}

func (d *Driver) classify(id instance.ID, name, cmd string, res ssh.Result) error {
	if isSessionNotFound(res.Stderr) {
		return &SessionNotFoundError{Instance: id, Session: name}
	}
	return commandError(cmd, res)
}

func (d *Driver) waitBounds(opts WaitOptions) (time.Duration, time.Duration) {
	timeout, poll := opts.Timeout, opts.PollInterval
	if timeout <= 0 {
		timeout = d.waitTimeout
	}
	if poll <= 0 {
		poll = d.pollInterval
	}
	return timeout, poll
}

func commandError(cmd string, res ssh.Result) error {
	return &CommandError{Command: cmd, ExitCode: res.ExitCode, Stderr: res.Stderr}
}

func parseSessions(out string) []SessionInfo {
	sessions := []SessionInfo{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(strings.TrimSpace(line), "|")
		if len(fields) != 4 || fields[0] == "" {
			continue
		}
		info := SessionInfo{Name: fields[0], Attached: fields[2] != "" && fields[2] != "0"}
		if ts, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			info.Created = time.Unix(ts, 0)
		}
		info.Windows, _ = strconv.Atoi(fields[3])
		sessions = append(sessions, info)
	}
	return sessions
}
