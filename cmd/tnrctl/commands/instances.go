package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// Instances returns the parent command for instance lifecycle operations.
func Instances(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance", "i"},
		Short:   "Create, inspect and control instances",
	}

	cmd.AddCommand(instancesList(opts))
	cmd.AddCommand(instancesStatus(opts))
	cmd.AddCommand(instancesCreate(opts))
	cmd.AddCommand(instancesStart(opts))
	cmd.AddCommand(instancesStop(opts))
	cmd.AddCommand(instancesModify(opts))
	cmd.AddCommand(instancesClone(opts))
	cmd.AddCommand(instancesDelete(opts))
	return cmd
}

func instancesList(opts *handlers.Options) *cobra.Command {
	var args handlers.ListArgs

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List instances",
		Long: `List all Thunder Compute instances with their status and address.

With --sessions, every running instance is also asked for its tmux sessions
over SSH.

Examples:
  tnrctl instances list
  tnrctl instances list --status running --sessions --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), *opts, args)
		},
	}

	cmd.Flags().StringVar(&args.Status, "status", "", "Only show instances in this status")
	cmd.Flags().BoolVar(&args.Refresh, "refresh", false, "Bypass the instance list cache")
	cmd.Flags().BoolVar(&args.Sessions, "sessions", false, "Also list tmux sessions of running instances")
	cmd.Flags().BoolVar(&args.JSON, "json", false, "Output in JSON format")
	return cmd
}

func instancesStatus(opts *handlers.Options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <instance-id>...",
		Short: "Show the status of one or more instances",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Status(cmd.Context(), *opts, args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func instancesCreate(opts *handlers.Options) *cobra.Command {
	var args handlers.CreateArgs

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an instance",
		Long: `Create a new instance and store its SSH key in the secrets directory.

Examples:
  # One A100 with 8 cores, wait until SSH answers
  tnrctl instances create --cpu-cores 8 --gpu-type a100xl --disk-size 200 --wait-ssh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Create(cmd.Context(), *opts, args)
		},
	}

	cmd.Flags().IntVar(&args.CPUCores, "cpu-cores", 8, "Number of vCPUs")
	cmd.Flags().StringVar(&args.GPUType, "gpu-type", "a100xl", "GPU type")
	cmd.Flags().IntVar(&args.NumGPUs, "num-gpus", 1, "Number of GPUs")
	cmd.Flags().IntVar(&args.DiskSizeGB, "disk-size", 200, "Disk size in GB")
	cmd.Flags().StringVar(&args.Template, "template", "", "Instance template")
	cmd.Flags().StringVar(&args.Name, "name", "", "Instance name")
	cmd.Flags().BoolVar(&args.Wait, "wait", false, "Wait for the instance to be RUNNING")
	cmd.Flags().BoolVar(&args.WaitSSH, "wait-ssh", false, "Wait until SSH accepts connections (implies --wait)")
	cmd.Flags().DurationVar(&args.Timeout, "timeout", 0, "Status wait timeout (default from config)")
	cmd.Flags().IntVar(&args.SSHAttempts, "ssh-attempts", 12, "SSH readiness attempts with --wait-ssh")
	return cmd
}

func instancesStart(opts *handlers.Options) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start <instance-id>",
		Short: "Start a stopped instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Start(cmd.Context(), *opts, args[0], wait, timeout)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the instance to be RUNNING")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Status wait timeout")
	return cmd
}

func instancesStop(opts *handlers.Options) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stop <instance-id>",
		Short: "Stop a running instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Stop(cmd.Context(), *opts, args[0], wait, timeout)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the instance to be STOPPED")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Status wait timeout")
	return cmd
}

func instancesModify(opts *handlers.Options) *cobra.Command {
	var args handlers.ModifyArgs

	cmd := &cobra.Command{
		Use:   "modify <instance-id>",
		Short: "Change CPU, GPU or disk of a stopped instance",
		Long: `Change the shape of an instance. Only flags that are given are sent.

Example:
  tnrctl instances modify 42 --gpu-type a100xl --num-gpus 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			return handlers.Modify(cmd.Context(), *opts, a[0], args)
		},
	}

	cmd.Flags().IntVar(&args.CPUCores, "cpu-cores", 0, "Number of vCPUs")
	cmd.Flags().StringVar(&args.GPUType, "gpu-type", "", "GPU type")
	cmd.Flags().IntVar(&args.NumGPUs, "num-gpus", 0, "Number of GPUs")
	cmd.Flags().IntVar(&args.DiskSizeGB, "disk-size", 0, "Disk size in GB")
	return cmd
}

func instancesClone(opts *handlers.Options) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "clone <instance-id>",
		Short: "Clone an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Clone(cmd.Context(), *opts, args[0], name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name of the clone")
	return cmd
}

func instancesDelete(opts *handlers.Options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <instance-id>",
		Short: "Delete an instance",
		Long: `Delete an instance permanently.

An interactive confirmation is shown unless --yes is given. Without a
terminal, --yes is required.

WARNING: This operation is irreversible. The instance disk is destroyed.
The stored SSH key is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Delete(cmd.Context(), *opts, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
