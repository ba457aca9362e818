package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// Exec returns the command running a one-off remote command.
func Exec(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <instance-id> -- <command> [args...]",
		Short: "Run a command on an instance over SSH",
		Long: `Run a command on an instance and print its output.

The remote exit status becomes the exit status of tnrctl. Use tmux
sessions for anything that should outlive the SSH connection.

Example:
  tnrctl exec 42 -- nvidia-smi`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Exec(cmd.Context(), *opts, args[0], args[1:])
		},
	}
}
