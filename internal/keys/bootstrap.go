package keys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/util/prerequisites"
)

// Bootstrapper provisions SSH access for an instance out of band so that a
// subsequent SSH config lookup can succeed.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, id instance.ID) error
}

// NoBootstrap is the strategy used when automatic key setup is disabled.
type NoBootstrap struct{}

// Bootstrap always returns ErrAutoSetupDisabled.
func (NoBootstrap) Bootstrap(context.Context, instance.ID) error {
	return ErrAutoSetupDisabled
}

// CLIError is a non-zero exit from the external CLI.
type CLIError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CLIError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 512 {
		out = out[len(out)-512:]
	}
	if out == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, out)
}

const defaultBootstrapTimeout = 60 * time.Second

// CLIBootstrapper runs `tnr connect <id>` with stdin detached, which makes
// the CLI write the instance key and a Host entry to ~/.ssh/config.
type CLIBootstrapper struct {
	cliPath string
	timeout time.Duration
	log     logr.Logger

	lookup  func(prerequisites.Tool) (string, error)
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewCLIBootstrapper returns a bootstrapper for the CLI at cliPath (a name
// looked up in PATH or an absolute path).
func NewCLIBootstrapper(cliPath string, timeout time.Duration, log logr.Logger) *CLIBootstrapper {
	if timeout <= 0 {
		timeout = defaultBootstrapTimeout
	}
	return &CLIBootstrapper{
		cliPath: cliPath,
		timeout: timeout,
		log:     log,
		lookup:  prerequisites.Lookup,
		command: exec.CommandContext,
	}
}

// Bootstrap runs the CLI. A missing CLI is a *config.ConfigurationError;
// a non-zero exit is a *CLIError.
func (b *CLIBootstrapper) Bootstrap(ctx context.Context, id instance.ID) error {
	tool := prerequisites.TnrCLI(b.cliPath)
	path, err := b.lookup(tool)
	if err != nil {
		return config.NewConfigurationError("cli_path",
			"install the Thunder Compute CLI: "+tool.InstallURL, err)
	}

	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	display := fmt.Sprintf("%s connect %s", tool.Name, id)
	b.log.Info("Bootstrapping SSH key via CLI", "instance", id, "command", display)

	var out bytes.Buffer
	cmd := b.command(cctx, path, "connect", id.String())
	cmd.Stdin = nil
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Bounds the wait for output pipes held open by grandchildren after a kill.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	if cctx.Err() != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s timed out after %s", display, b.timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CLIError{Command: display, ExitCode: exitErr.ExitCode(), Output: out.String()}
		}
		return fmt.Errorf("run %s: %w", display, err)
	}
	b.log.V(1).Info("CLI bootstrap finished", "instance", id, "elapsed", time.Since(start))
	return nil
}
