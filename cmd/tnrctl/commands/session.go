package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// Session returns the parent command for tmux session operations.
func Session(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions", "tmux"},
		Short:   "Manage tmux sessions on an instance",
		Long: `Manage tmux sessions on an instance.

Scripts started in a session keep running when the SSH connection drops.
Completion is detected through markers printed after the script exits.`,
	}

	cmd.AddCommand(sessionStart(opts))
	cmd.AddCommand(sessionRun(opts))
	cmd.AddCommand(sessionWait(opts))
	cmd.AddCommand(sessionOutput(opts))
	cmd.AddCommand(sessionKill(opts))
	cmd.AddCommand(sessionList(opts))
	return cmd
}

func sessionStart(opts *handlers.Options) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "start <instance-id> <session>",
		Short: "Create a detached session (no-op if it exists)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SessionStart(cmd.Context(), *opts, args[0], args[1], dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Working directory of the session")
	return cmd
}

func sessionRun(opts *handlers.Options) *cobra.Command {
	var args handlers.RunArgs

	cmd := &cobra.Command{
		Use:   "run <instance-id> <session> <script>",
		Short: "Run a script inside a session",
		Long: `Run a remote script with bash inside a tmux session.

Without --wait the command returns as soon as the script was typed into
the session. With --wait it blocks until the completion marker appears,
prints the session output and exits with the script's exit code.

Examples:
  tnrctl session run 42 train /home/ubuntu/train.sh --env EPOCHS=3 --wait
  tnrctl session run 42 build ./build.sh --dir /srv/app --no-markers`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, a []string) error {
			return handlers.SessionRun(cmd.Context(), *opts, a[0], a[1], a[2], args)
		},
	}

	cmd.Flags().StringArrayVarP(&args.Env, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&args.Dir, "dir", "", "Working directory for the script")
	cmd.Flags().BoolVar(&args.Wait, "wait", false, "Block until the script finishes")
	cmd.Flags().DurationVar(&args.Timeout, "timeout", 0, "Maximum time to wait (default from config)")
	cmd.Flags().DurationVar(&args.Poll, "poll-interval", 0, "Completion poll interval (default from config)")
	cmd.Flags().BoolVar(&args.NoCreate, "no-create", false, "Fail instead of creating a missing session")
	cmd.Flags().BoolVar(&args.NoMarkers, "no-markers", false, "Do not append completion markers")
	return cmd
}

func sessionWait(opts *handlers.Options) *cobra.Command {
	var (
		pattern string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait <instance-id> <session>",
		Short: "Wait until the session output matches a pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SessionWait(cmd.Context(), *opts, args[0], args[1], pattern, timeout)
		},
	}

	cmd.Flags().StringVar(&pattern, "for", "", "Regular expression to wait for (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Maximum time to wait (default from config)")
	_ = cmd.MarkFlagRequired("for")
	return cmd
}

func sessionOutput(opts *handlers.Options) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "output <instance-id> <session>",
		Short: "Print the session scrollback",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SessionOutput(cmd.Context(), *opts, args[0], args[1], lines)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Only the last N lines (0 for full history)")
	return cmd
}

func sessionKill(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <instance-id> <session>",
		Short: "Kill a session (no-op if absent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SessionKill(cmd.Context(), *opts, args[0], args[1])
		},
	}
}

func sessionList(opts *handlers.Options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list <instance-id>",
		Aliases: []string{"ls"},
		Short:   "List sessions on an instance",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SessionList(cmd.Context(), *opts, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}
