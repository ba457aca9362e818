// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// Root returns the root command for the tnrctl CLI.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "tnrctl",
		Short:         "Manage Thunder Compute instances and remote tmux jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: ~/.config/tnrctl/config.yaml)")
	cmd.PersistentFlags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&opts.JSONLogs, "log-json", false, "Emit logs as JSON")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	// Instance lifecycle
	cmd.AddCommand(Instances(opts))

	// Remote execution
	cmd.AddCommand(Session(opts))
	cmd.AddCommand(Exec(opts))
	cmd.AddCommand(SSHCheck(opts))
	cmd.AddCommand(Tunnel(opts))

	// Utility commands
	cmd.AddCommand(Keys(opts))
	cmd.AddCommand(Doctor(opts))
	cmd.AddCommand(Version())

	return cmd
}
