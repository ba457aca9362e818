package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/tnrctl/cmd/tnrctl/handlers"
)

// Keys returns the parent command for SSH key operations.
func Keys(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect, import and generate instance SSH keys",
	}

	cmd.AddCommand(keysResolve(opts))
	cmd.AddCommand(keysImport(opts))
	cmd.AddCommand(keysGenerate(opts))
	return cmd
}

func keysResolve(opts *handlers.Options) *cobra.Command {
	var autoSetup bool

	cmd := &cobra.Command{
		Use:   "resolve <instance-id>",
		Short: "Show which private key would be used for an instance",
		Long: `Resolve the private key for an instance.

Lookup order: the secrets directory, then the IdentityFile of the
matching ~/.ssh/config host entry, then (with --auto-setup or
auto_setup_keys) 'tnr connect' followed by another ssh config lookup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.KeysResolve(cmd.Context(), *opts, args[0], autoSetup)
		},
	}

	cmd.Flags().BoolVar(&autoSetup, "auto-setup", false, "Run 'tnr connect' if no key is found locally")
	return cmd
}

func keysImport(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <instance-id> <private-key-file>",
		Short: "Copy a private key into the secrets directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.KeysImport(cmd.Context(), *opts, args[0], args[1])
		},
	}
}

func keysGenerate(opts *handlers.Options) *cobra.Command {
	var (
		algorithm string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "generate <instance-id>",
		Short: "Generate a key pair for an instance",
		Long: `Generate a new key pair, store the private key in the secrets directory
and print the public key in authorized_keys format.

Install the printed line on the instance yourself, for example through
the Thunder Compute console.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.KeysGenerate(cmd.Context(), *opts, args[0], algorithm, force)
		},
	}

	cmd.Flags().StringVar(&algorithm, "type", "ed25519", "Key type: ed25519, ecdsa or rsa")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing stored key")
	return cmd
}
