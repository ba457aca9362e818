// Package main is the entry point for the tnrctl CLI.
//
// tnrctl manages Thunder Compute instances and runs long-lived scripts on
// them inside tmux sessions that survive SSH disconnects.
//
// Commands: instances, session, exec, ssh-check, tunnel, keys, doctor,
// version.
//
// For detailed usage information, run:
//
//	tnrctl --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/tnrctl/cmd/tnrctl/commands"
	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *handlers.ExitCodeError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintln(os.Stderr, exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
