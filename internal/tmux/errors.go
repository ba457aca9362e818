package tmux

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/tnrctl/internal/instance"
)

var (
	// ErrSessionNotFound matches any *SessionNotFoundError.
	ErrSessionNotFound = errors.New("tmux session not found")

	// ErrInvalidSessionName is returned for names outside [A-Za-z0-9_-].
	ErrInvalidSessionName = errors.New("invalid tmux session name")

	// ErrInvalidEnvName is returned for environment keys that are not
	// shell identifiers.
	ErrInvalidEnvName = errors.New("invalid environment variable name")

	// ErrNoMarkers is returned when waiting on a run dispatched without
	// completion markers.
	ErrNoMarkers = errors.New("run has no completion markers")
)

// SessionNotFoundError reports an operation on an absent session.
type SessionNotFoundError struct {
	Instance instance.ID
	Session  string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("tmux session %q not found on instance %s", e.Session, e.Instance)
}

// Is makes errors.Is(err, ErrSessionNotFound) true for any SessionNotFoundError.
func (e *SessionNotFoundError) Is(target error) bool {
	return target == ErrSessionNotFound
}

// ScriptError reports that a waited-for script printed its failure marker.
type ScriptError struct {
	Instance instance.ID
	Session  string
	ExitCode int
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script in tmux session %q on instance %s exited with status %d",
		e.Session, e.Instance, e.ExitCode)
}

// CommandError is a tmux command that exited non-zero for a reason other
// than a missing session.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, msg)
}

// transportError wraps a failure of the SSH transport itself, as opposed
// to a tmux command exiting non-zero.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

// isSessionNotFound checks tmux stderr for the messages printed when the
// session or the whole server is absent.
func isSessionNotFound(stderr string) bool {
	msg := strings.ToLower(stderr)
	return strings.Contains(msg, "can't find session") ||
		strings.Contains(msg, "can't find pane") ||
		strings.Contains(msg, "can't find window") ||
		strings.Contains(msg, "session not found") ||
		isNoServer(msg)
}

func isNoServer(stderr string) bool {
	msg := strings.ToLower(stderr)
	return strings.Contains(msg, "no server running") ||
		strings.Contains(msg, "error connecting to")
}

func isDuplicateSession(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "duplicate session")
}
