package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imamik/tnrctl/internal/platform/ssh"
)

// ErrConnectionBroken is returned by Run on a connection broken with
// FakeHost.BreakConnections.
var ErrConnectionBroken = errors.New("fake ssh: connection lost")

var nonceRe = regexp.MustCompile(`__TNR_""OK_([A-Za-z0-9]+)__`)

// Script describes how a script path behaves when launched in a session.
type Script struct {
	// Output is appended to the pane when the script starts.
	Output string
	// ExitCode is reported through the completion marker.
	ExitCode int
	// Hang keeps the script running; FinishScript completes it later.
	Hang bool
}

// Launch records one send-keys invocation that started a script.
type Launch struct {
	Session string
	Dir     string
	Env     map[string]string
	Script  string
	Nonce   string
	Line    string
}

// FakeSession is the host-side state of one tmux session.
type FakeSession struct {
	Name         string
	Dir          string
	Created      time.Time
	Attached     int
	Windows      int
	HistoryLimit int
	Lines        []string

	pendingNonce string
}

// FakeHost is an in-memory machine that interprets the tmux commands issued
// over SSH. Unknown commands exit 127.
type FakeHost struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]*FakeSession
	scripts  map[string]Script
	handlers map[string]func(args []string) ssh.Result
	commands []string
	launches []Launch
	gen      int
	failRun  error
}

// NewFakeHost returns a host with no tmux server running.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		now:      time.Now,
		sessions: make(map[string]*FakeSession),
		scripts:  make(map[string]Script),
		handlers: make(map[string]func([]string) ssh.Result),
	}
}

// AddScript registers the behaviour of a script path.
func (h *FakeHost) AddScript(path string, s Script) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts[path] = s
}

// Handle registers a handler for commands whose first word is name.
func (h *FakeHost) Handle(name string, fn func(args []string) ssh.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[name] = fn
}

// FailRuns makes every Run on live connections return err until cleared
// with FailRuns(nil).
func (h *FakeHost) FailRuns(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failRun = err
}

// BreakConnections makes every connection dialed so far fail with
// ErrConnectionBroken. New connections work normally.
func (h *FakeHost) BreakConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
}

// CreateSession creates a session directly, as if another client did.
func (h *FakeHost) CreateSession(name string) *FakeSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.createLocked(name, "")
}

// KillSession removes a session directly.
func (h *FakeHost) KillSession(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, name)
}

// Session returns a copy of the named session.
func (h *FakeHost) Session(name string) (FakeSession, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[name]
	if !ok {
		return FakeSession{}, false
	}
	c := *s
	c.Lines = append([]string(nil), s.Lines...)
	return c, true
}

// AppendOutput writes lines to the session's pane.
func (h *FakeHost) AppendOutput(name, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[name]; ok {
		s.Lines = append(s.Lines, splitLines(text)...)
	}
}

// FinishScript prints the completion marker of the script pending in the
// named session.
func (h *FakeHost) FinishScript(name string, exitCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[name]
	if !ok || s.pendingNonce == "" {
		return
	}
	s.Lines = append(s.Lines, markerLine(s.pendingNonce, exitCode))
	s.pendingNonce = ""
}

// Commands returns every command run so far.
func (h *FakeHost) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.commands...)
}

// CountCommands returns how many commands started with prefix.
func (h *FakeHost) CountCommands(prefix string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Launches returns every script launch seen so far.
func (h *FakeHost) Launches() []Launch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Launch(nil), h.launches...)
}

// NewConn returns a connection to the host.
func (h *FakeHost) NewConn() *FakeConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &FakeConn{host: h, gen: h.gen}
}

func (h *FakeHost) run(gen int, cmd string) (ssh.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen {
		return ssh.Result{}, ErrConnectionBroken
	}
	if h.failRun != nil {
		return ssh.Result{}, h.failRun
	}
	h.commands = append(h.commands, cmd)

	args, err := SplitShellWords(cmd)
	if err != nil {
		return exit(2, err.Error()), nil
	}
	if len(args) == 0 {
		return ssh.Result{}, nil
	}
	if fn, ok := h.handlers[args[0]]; ok {
		return fn(args), nil
	}
	switch args[0] {
	case "true":
		return ssh.Result{}, nil
	case "false":
		return ssh.Result{ExitCode: 1}, nil
	case "echo":
		return ssh.Result{Stdout: strings.Join(args[1:], " ") + "\n"}, nil
	case "tmux":
		if len(args) < 2 {
			return exit(1, "usage: tmux command"), nil
		}
		return h.tmux(args[1], args[2:]), nil
	}
	return exit(127, fmt.Sprintf("bash: %s: command not found", args[0])), nil
}

func (h *FakeHost) tmux(sub string, args []string) ssh.Result {
	flags, rest := parseFlags(args)
	switch sub {
	case "has-session":
		if _, res, ok := h.target(flags["-t"]); !ok {
			return res
		}
		return ssh.Result{}
	case "new-session":
		name := flags["-s"]
		if _, ok := h.sessions[name]; ok {
			return exit(1, "duplicate session: "+name)
		}
		h.createLocked(name, flags["-c"])
		return ssh.Result{}
	case "set-option":
		s, res, ok := h.target(flags["-t"])
		if !ok {
			return res
		}
		if len(rest) == 2 && rest[0] == "history-limit" {
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return exit(1, "invalid history-limit")
			}
			s.HistoryLimit = n
		}
		return ssh.Result{}
	case "send-keys":
		s, res, ok := h.target(flags["-t"])
		if !ok {
			return res
		}
		if len(rest) == 0 || rest[len(rest)-1] != "C-m" {
			return ssh.Result{}
		}
		for _, line := range rest[:len(rest)-1] {
			h.typeLine(s, line)
		}
		return ssh.Result{}
	case "capture-pane":
		s, res, ok := h.target(flags["-t"])
		if !ok {
			return res
		}
		lines := s.Lines
		if start := flags["-S"]; start != "-" && start != "" {
			if n, err := strconv.Atoi(strings.TrimPrefix(start, "-")); err == nil && n < len(lines) {
				lines = lines[len(lines)-n:]
			}
		}
		if len(lines) == 0 {
			return ssh.Result{Stdout: "\n"}
		}
		return ssh.Result{Stdout: strings.Join(lines, "\n") + "\n"}
	case "kill-session":
		s, res, ok := h.target(flags["-t"])
		if !ok {
			return res
		}
		delete(h.sessions, s.Name)
		return ssh.Result{}
	case "list-sessions":
		if len(h.sessions) == 0 {
			return exit(1, "no server running on /tmp/tmux-1000/default")
		}
		names := make([]string, 0, len(h.sessions))
		for n := range h.sessions {
			names = append(names, n)
		}
		sort.Strings(names)
		var b strings.Builder
		for _, n := range names {
			s := h.sessions[n]
			b.WriteString(strings.NewReplacer(
				"#{session_name}", s.Name,
				"#{session_created}", strconv.FormatInt(s.Created.Unix(), 10),
				"#{session_attached}", strconv.Itoa(s.Attached),
				"#{session_windows}", strconv.Itoa(s.Windows),
			).Replace(flags["-F"]))
			b.WriteString("\n")
		}
		return ssh.Result{Stdout: b.String()}
	}
	return exit(1, "unknown command: "+sub)
}

// target resolves "=name" or "=name:" the way tmux does for exact matches.
func (h *FakeHost) target(t string) (*FakeSession, ssh.Result, bool) {
	if len(h.sessions) == 0 {
		return nil, exit(1, "no server running on /tmp/tmux-1000/default"), false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(t, "="), ":")
	s, ok := h.sessions[name]
	if !ok {
		return nil, exit(1, "can't find session: "+name), false
	}
	return s, ssh.Result{}, true
}

func (h *FakeHost) createLocked(name, dir string) *FakeSession {
	s := &FakeSession{
		Name:         name,
		Dir:          dir,
		Created:      h.now(),
		Windows:      1,
		HistoryLimit: 2000,
	}
	h.sessions[name] = s
	return s
}

// typeLine echoes line into the pane and, when it launches a known
// script, appends its output and completion marker.
func (h *FakeHost) typeLine(s *FakeSession, line string) {
	s.Lines = append(s.Lines, "$ "+line)

	launch, ok := parseLaunch(line)
	if !ok {
		return
	}
	launch.Session = s.Name
	if launch.Dir == "" {
		launch.Dir = s.Dir
	}
	h.launches = append(h.launches, launch)

	script, known := h.scripts[launch.Script]
	if !known {
		s.Lines = append(s.Lines, "bash: "+launch.Script+": No such file or directory")
		script = Script{ExitCode: 127}
	}
	s.Lines = append(s.Lines, splitLines(script.Output)...)
	if launch.Nonce == "" {
		return
	}
	if script.Hang {
		s.pendingNonce = launch.Nonce
		return
	}
	s.Lines = append(s.Lines, markerLine(launch.Nonce, script.ExitCode))
}

func parseLaunch(line string) (Launch, bool) {
	l := Launch{Line: line, Env: map[string]string{}}
	if m := nonceRe.FindStringSubmatch(line); m != nil {
		l.Nonce = m[1]
	}
	words, err := SplitShellWords(line)
	if err != nil {
		return l, false
	}
	i := 0
	if len(words) >= 3 && words[0] == "cd" && words[2] == "&&" {
		l.Dir = words[1]
		i = 3
	}
	for ; i < len(words); i++ {
		w := words[i]
		if w == "bash" {
			if i+1 < len(words) {
				l.Script = words[i+1]
				return l, true
			}
			return l, false
		}
		k, v, ok := strings.Cut(w, "=")
		if !ok {
			return l, false
		}
		l.Env[k] = v
	}
	return l, false
}

func markerLine(nonce string, code int) string {
	if code == 0 {
		return "__TNR_OK_" + nonce + "__"
	}
	return fmt.Sprintf("__TNR_FAIL_%s__:%d", nonce, code)
}

func parseFlags(args []string) (map[string]string, []string) {
	flags := map[string]string{}
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "-t", "-s", "-c", "-S", "-F":
			if i+1 < len(args) {
				flags[a] = args[i+1]
				i++
			}
		case "-d", "-p", "-J":
			flags[a] = "true"
		default:
			rest = append(rest, a)
		}
	}
	return flags, rest
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func exit(code int, stderr string) ssh.Result {
	return ssh.Result{ExitCode: code, Stderr: stderr + "\n"}
}

// FakeConn is a connection to a FakeHost.
type FakeConn struct {
	host   *FakeHost
	gen    int
	closed atomic.Bool
}

// Run executes cmd on the host.
func (c *FakeConn) Run(ctx context.Context, cmd string) (ssh.Result, error) {
	if err := ctx.Err(); err != nil {
		return ssh.Result{}, err
	}
	if c.closed.Load() {
		return ssh.Result{}, io.EOF
	}
	return c.host.run(c.gen, cmd)
}

// Close marks the connection closed. A second Close returns net.ErrClosed.
func (c *FakeConn) Close() error {
	if c.closed.Swap(true) {
		return net.ErrClosed
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *FakeConn) Closed() bool { return c.closed.Load() }

// FakeDialer dials a FakeHost.
type FakeDialer struct {
	host *FakeHost

	mu      sync.Mutex
	err     error
	gate    chan struct{}
	dials   int
	targets []ssh.Target
	conns   []*FakeConn
}

// NewFakeDialer returns a dialer that connects to host.
func NewFakeDialer(host *FakeHost) *FakeDialer {
	return &FakeDialer{host: host}
}

// FailWith makes subsequent dials return err. nil restores success.
func (d *FakeDialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Gate makes dials block until the returned function is called.
func (d *FakeDialer) Gate() (release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g := make(chan struct{})
	d.gate = g
	var once sync.Once
	return func() { once.Do(func() { close(g) }) }
}

// Dial implements ssh.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, target ssh.Target) (ssh.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.targets = append(d.targets, target)
	gate, err := d.gate, d.err
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	conn := d.host.NewConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

// Dials returns the number of Dial calls.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Targets returns every dial target.
func (d *FakeDialer) Targets() []ssh.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ssh.Target(nil), d.targets...)
}

// Conns returns every connection handed out.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeConn(nil), d.conns...)
}
