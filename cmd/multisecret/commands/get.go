package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	dserrors "github.com/systmms/multisecret/internal/errors"
	"github.com/systmms/multisecret/pkg/secretspec"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		keyName    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read one value back from the secret",
		Long: `Read the current value of one key from the configured store.

By default only the raw value is printed, making it suitable for scripting.
Template keys print their JSON object.

Examples:
  multisecret get --key apiKey
  export DB_PASSWORD=$(multisecret get --key dbPassword)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyName == "" {
				return dserrors.UserError{
					Message:    "Key name is required",
					Suggestion: "Use --key <name> to specify which value to read",
				}
			}

			ms, err := loadSecret(cfg, nil)
			if err != nil {
				return err
			}

			ctx, cancel := storeContext(cfg)
			defer cancel()
			value, err := ms.Resolve(ctx, keyName)
			if err != nil {
				if secretspec.IsAccessLookupError(err) {
					return err
				}
				return storeFailure(cfg, ms, "get", err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(map[string]string{
					"secret": ms.SecretID(),
					"key":    keyName,
					"store":  ms.StoreName(),
					"value":  string(value),
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode output: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			fmt.Fprint(cmd.OutOrStdout(), string(value))
			return nil
		},
	}

	cmd.Flags().StringVar(&keyName, "key", "", "Key name")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output with metadata as JSON")
	_ = cmd.RegisterFlagCompletionFunc("key", completeKeyNames(cfg))

	return cmd
}
