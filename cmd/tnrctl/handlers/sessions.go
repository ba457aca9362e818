package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/imamik/tnrctl/internal/orchestration"
	"github.com/imamik/tnrctl/internal/tmux"
	"github.com/imamik/tnrctl/internal/util/retry"
)

// SessionView is the JSON shape of a tmux session.
type SessionView struct {
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Attached bool      `json:"attached"`
	Windows  int       `json:"windows"`
}

func sessionViewOf(s tmux.SessionInfo) SessionView {
	return SessionView{Name: s.Name, Created: s.Created, Attached: s.Attached, Windows: s.Windows}
}

// RunArgs carries the session run flags.
type RunArgs struct {
	Env       []string
	Dir       string
	Wait      bool
	Timeout   time.Duration
	Poll      time.Duration
	NoCreate  bool
	NoMarkers bool
}

// runOptions converts flags into driver options. Env entries must be
// KEY=VALUE; the value may contain further '=' characters.
func (a RunArgs) runOptions() (tmux.RunOptions, error) {
	ro := tmux.DefaultRunOptions()
	ro.Dir = a.Dir
	ro.Wait = a.Wait
	ro.CreateIfMissing = !a.NoCreate
	ro.Markers = !a.NoMarkers
	if a.Timeout > 0 {
		ro.Timeout = a.Timeout
	}
	if a.Poll > 0 {
		ro.PollInterval = a.Poll
	}
	if a.Wait && a.NoMarkers {
		return ro, errors.New("--wait needs completion markers; drop --no-markers")
	}
	if len(a.Env) > 0 {
		ro.Env = make(map[string]string, len(a.Env))
		for _, kv := range a.Env {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return ro, fmt.Errorf("invalid --env %q: expected KEY=VALUE", kv)
			}
			ro.Env[k] = v
		}
	}
	return ro, nil
}

// SessionStart handles session start.
func SessionStart(ctx context.Context, opts Options, rawID, name, dir string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		created, err := m.Sessions().StartSession(ctx, id, name, tmux.SessionOptions{Dir: dir})
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("%s session %s on instance %s\n", style(successStyle, "Created"), name, id)
		} else {
			fmt.Printf("Session %s already exists on instance %s\n", name, id)
		}
		return nil
	})
}

// SessionRun handles session run.
func SessionRun(ctx context.Context, opts Options, rawID, name, script string, args RunArgs) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	ro, err := args.runOptions()
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		run, err := m.Sessions().RunScript(ctx, id, name, script, ro)
		if !ro.Wait {
			if err != nil {
				return err
			}
			fmt.Printf("Started %s in session %s on instance %s\n", script, name, id)
			fmt.Printf("  Follow with: tnrctl session output %s %s\n", id, name)
			return nil
		}

		var scriptErr *tmux.ScriptError
		switch {
		case err == nil, errors.As(err, &scriptErr):
			out, oerr := m.Sessions().GetOutput(ctx, id, name, 0)
			if oerr == nil && out != "" {
				fmt.Println(out)
			}
			fmt.Printf("%s exit code %d after %s\n",
				checkMark(err == nil), run.Completion.ExitCode, run.Completion.Elapsed.Round(time.Millisecond))
			if scriptErr != nil {
				return &ExitCodeError{Code: scriptErr.ExitCode}
			}
			return nil
		case errors.Is(err, retry.ErrTimeout):
			fmt.Printf("%s the script is still running in session %s\n", style(warnStyle, "Timed out:"), name)
			fmt.Printf("  Check later with: tnrctl session output %s %s\n", id, name)
			return err
		default:
			return err
		}
	})
}

// SessionWait handles session wait.
func SessionWait(ctx context.Context, opts Options, rawID, name, pattern string, timeout time.Duration) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid --for pattern: %w", err)
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		match, err := m.Sessions().WaitForOutput(ctx, id, name, re, tmux.WaitOptions{Timeout: timeout})
		if err != nil {
			return err
		}
		fmt.Println(match[0])
		return nil
	})
}

// SessionOutput handles session output.
func SessionOutput(ctx context.Context, opts Options, rawID, name string, lines int) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		out, err := m.Sessions().GetOutput(ctx, id, name, lines)
		if err != nil {
			return err
		}
		fmt.Print(out)
		if out != "" && !strings.HasSuffix(out, "\n") {
			fmt.Println()
		}
		return nil
	})
}

// SessionKill handles session kill.
func SessionKill(ctx context.Context, opts Options, rawID, name string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		if err := m.Sessions().KillSession(ctx, id, name); err != nil {
			return err
		}
		fmt.Printf("Session %s on instance %s is gone\n", name, id)
		return nil
	})
}

// SessionList handles session list.
func SessionList(ctx context.Context, opts Options, rawID string, jsonOutput bool) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		list, err := m.Sessions().ListSessions(ctx, id)
		if err != nil {
			return err
		}
		if jsonOutput {
			views := make([]SessionView, 0, len(list))
			for _, s := range list {
				views = append(views, sessionViewOf(s))
			}
			return printJSON(views)
		}
		if len(list) == 0 {
			fmt.Printf("No sessions on instance %s.\n", id)
			return nil
		}
		fmt.Printf("%-24s %-20s %-8s %s\n", "NAME", "CREATED", "WINDOWS", "ATTACHED")
		for _, s := range list {
			fmt.Printf("%-24s %-20s %-8d %t\n", s.Name, s.Created.Format(time.DateTime), s.Windows, s.Attached)
		}
		return nil
	})
}
