package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// SSHCheck returns the command waiting for an instance to accept SSH.
func SSHCheck(opts *handlers.Options) *cobra.Command {
	var (
		attempts int
		delay    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ssh-check <instance-id>",
		Short: "Wait until an instance accepts SSH connections",
		Long: `Connect to the instance and run a trivial command, retrying with
exponential backoff. Key resolution problems fail immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SSHCheck(cmd.Context(), *opts, args[0], attempts, delay)
		},
	}

	cmd.Flags().IntVar(&attempts, "attempts", 12, "Number of connection attempts")
	cmd.Flags().DurationVar(&delay, "delay", 10*time.Second, "Delay before the second attempt")
	return cmd
}
