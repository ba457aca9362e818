package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/imamik/tnrctl/internal/orchestration"
)

// remoteCommand turns CLI arguments into one shell command. A single
// argument is passed through so shell syntax like pipes keeps working.
func remoteCommand(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return shellescape.QuoteCommand(args)
}

// Exec handles the exec command.
func Exec(ctx context.Context, opts Options, rawID string, args []string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		res, err := m.Exec(ctx, id, remoteCommand(args))
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, res.Stdout)
		fmt.Fprint(os.Stderr, res.Stderr)
		if !res.OK() {
			return &ExitCodeError{Code: res.ExitCode}
		}
		return nil
	})
}

// SSHCheck handles the ssh-check command.
func SSHCheck(ctx context.Context, opts Options, rawID string, attempts int, delay time.Duration) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		if err := m.WaitForSSH(ctx, id, attempts, delay); err != nil {
			return err
		}
		fmt.Printf("%s instance %s accepts SSH\n", checkMark(true), id)
		return nil
	})
}
