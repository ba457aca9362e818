package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// Doctor returns the command for diagnosing the local setup.
func Doctor(opts *handlers.Options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check local tools, configuration and credentials",
		Long: `Check that tnrctl can talk to Thunder Compute.

Checks:
  - configuration file loads and validates
  - an API key is available
  - the secrets directory exists
  - the tnr CLI is installed (needed for auto key setup)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), *opts, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}
