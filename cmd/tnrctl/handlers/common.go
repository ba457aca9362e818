// Package handlers implements the business logic behind each CLI command.
//
// Handlers load the configuration, build an orchestration.Manager and render
// results for a human or as JSON. Collaborators are reached through package
// level factory variables so tests can substitute them.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/keys"
	"github.com/imamik/tnrctl/internal/logging"
	"github.com/imamik/tnrctl/internal/orchestration"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath  string
	Verbosity   int
	JSONLogs    bool
	MetricsFile string
}

// ExitCodeError makes the process exit with Code. Err, if set, is printed
// first.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error { return e.Err }

// Factory functions for dependency injection in tests.
var (
	// loadConfig builds the effective configuration.
	loadConfig = config.Load

	// newManager builds the orchestration manager for a command.
	newManager = func(cfg *config.Config, log logr.Logger) (*orchestration.Manager, error) {
		return orchestration.New(cfg, orchestration.WithLogger(log))
	}

	// confirm asks a yes/no question on the terminal.
	confirm = func(ctx context.Context, title, description string) (bool, error) {
		var ok bool
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(title).
					Description(description).
					Affirmative("Yes").
					Negative("No").
					Value(&ok),
			),
		).RunWithContext(ctx)
		return ok, err
	}

	// isTerminal reports whether stdout is attached to a terminal.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
)

func newLogger(opts Options) logr.Logger {
	return logging.New(logging.Options{
		Verbosity: opts.Verbosity,
		JSON:      opts.JSONLogs,
		Writer:    os.Stderr,
	})
}

// withManager runs fn with a Manager and tears it down afterwards. Pooled
// connections are closed and metrics are written even when fn fails.
// overrides are applied to the loaded configuration first.
func withManager(opts Options, fn func(m *orchestration.Manager) error, overrides ...func(*config.Config)) (err error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		o(cfg)
	}
	m, err := newManager(cfg, newLogger(opts))
	if err != nil {
		return err
	}
	defer func() {
		var errs []error
		if opts.MetricsFile != "" {
			if werr := m.WriteMetrics(opts.MetricsFile); werr != nil {
				errs = append(errs, fmt.Errorf("write metrics: %w", werr))
			}
		}
		if cerr := m.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close connections: %w", cerr))
		}
		if len(errs) > 0 && err == nil {
			err = errors.Join(errs...)
		}
	}()
	return fn(m)
}

// withStore runs fn against the key store without talking to the API.
func withStore(opts Options, fn func(s *keys.Store) error) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	return fn(keys.NewStore(cfg.SecretsDir, newLogger(opts)))
}

func parseID(s string) (instance.ID, error) {
	id, err := instance.ParseID(s)
	if err != nil {
		return "", fmt.Errorf("invalid instance id %q: %w", s, err)
	}
	return id, nil
}
