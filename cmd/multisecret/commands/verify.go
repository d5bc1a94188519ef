package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	dserrors "github.com/systmms/multisecret/internal/errors"
)

func NewVerifyCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the stored secret against the key list",
		Long: `Read the secret from the store and check that every configured key is
present with a value its settings could have produced.

Use it to detect a key list that changed without a new provision, or a secret
edited by hand. Values are never printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := loadSecret(cfg, nil)
			if err != nil {
				return err
			}

			ctx, cancel := storeContext(cfg)
			defer cancel()
			result, err := ms.Verify(ctx)
			if err != nil {
				return storeFailure(cfg, ms, "verify", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode result: %w", err)
				}
				fmt.Fprintln(out, string(data))
			} else {
				for _, e := range result.Errors {
					fmt.Fprintf(out, "✗ %s\n", e)
				}
				for _, w := range result.Warnings {
					fmt.Fprintf(out, "⚠ %s\n", w)
				}
			}

			if !result.Valid {
				return dserrors.UserError{
					Message:    fmt.Sprintf("%s does not match the configured keys", ms.SecretID()),
					Suggestion: "Run 'multisecret provision --force' to regenerate the secret",
				}
			}
			cfg.Logger.Info("%s matches %d configured keys", ms.SecretID(), result.Checked)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}
