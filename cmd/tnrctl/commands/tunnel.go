package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
	"github.com/imamik/tnrctl/internal/orchestration"
)

// Tunnel returns the command exposing an instance port publicly.
func Tunnel(opts *handlers.Options) *cobra.Command {
	var args orchestration.TunnelOptions

	cmd := &cobra.Command{
		Use:   "tunnel <instance-id>",
		Short: "Expose an instance port through a cloudflared quick tunnel",
		Long: `Start cloudflared in a tmux session on the instance and print the
public trycloudflare.com URL.

cloudflared must be installed on the instance. An existing tunnel session
is reused.

Example:
  tnrctl tunnel 42 --port 8188`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			return handlers.Tunnel(cmd.Context(), *opts, a[0], args)
		},
	}

	cmd.Flags().IntVarP(&args.Port, "port", "p", 8188, "Local port on the instance")
	cmd.Flags().StringVar(&args.Session, "session", orchestration.DefaultTunnelSession, "tmux session name")
	cmd.Flags().BoolVar(&args.WaitForURL, "wait-for-url", true, "Wait for the public URL")
	cmd.Flags().DurationVar(&args.Timeout, "timeout", 30*time.Second, "Maximum time to wait for the URL")
	return cmd
}
