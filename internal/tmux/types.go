package tmux

import (
	"time"

	"github.com/imamik/tnrctl/internal/instance"
)

// Defaults for script runs.
const (
	DefaultHistoryLimit   = 100000
	DefaultWaitTimeout    = 120 * time.Second
	DefaultPollInterval   = time.Second
	DefaultCommandTimeout = 60 * time.Second
)

// State is the observed state of a named session.
type State int

const (
	// Absent means the session does not exist on the instance.
	Absent State = iota
	// Running means the session exists and the awaited run has not
	// printed a marker (or no run was given).
	Running
	// Completed means the run's completion marker is in the pane.
	Completed
	// Unknown means the remote host could not be queried.
	Unknown
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Session names a tmux session on an instance. Sessions are not tracked
// locally; the remote tmux server is authoritative.
type Session struct {
	Instance instance.ID
	Name     string
}

// SessionInfo is one row of list-sessions.
type SessionInfo struct {
	Name     string
	Created  time.Time
	Attached bool
	Windows  int
}

// SessionOptions configures StartSession.
type SessionOptions struct {
	// Dir is the session's starting directory.
	Dir string
}

// RunOptions configures RunScript. Start from DefaultRunOptions.
type RunOptions struct {
	// Env is exported to the script only.
	Env map[string]string
	// Dir is changed into before the script runs.
	Dir string
	// Markers appends the completion marker suffix. Implied by Wait.
	Markers bool
	// Wait blocks until a marker appears or Timeout passes.
	Wait         bool
	Timeout      time.Duration
	PollInterval time.Duration
	// CreateIfMissing starts the session when it does not exist.
	CreateIfMissing bool
}

// DefaultRunOptions returns fire-and-forget options with markers enabled.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Markers:         true,
		Timeout:         DefaultWaitTimeout,
		PollInterval:    DefaultPollInterval,
		CreateIfMissing: true,
	}
}

// WaitOptions bounds a wait. Zero values use the driver defaults.
type WaitOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Run is the handle of a dispatched script.
type Run struct {
	Session   Session
	Nonce     string
	Command   string
	StartedAt time.Time

	// Completion is set once a wait observed a marker.
	Completion *Completion
}

// Completion is the outcome of a finished run.
type Completion struct {
	ExitCode int
	Elapsed  time.Duration
}
