package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	dserrors "github.com/systmms/multisecret/internal/errors"
	"github.com/systmms/multisecret/pkg/secretspec"
	"github.com/systmms/multisecret/pkg/store"
)

func NewGrantCommand(cfg *config.Config) *cobra.Command {
	var (
		principal string
		access    string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a principal access to the secret",
		Long: `Grant read, write or read/write access on the secret to a principal.

The principal format depends on the store:
  aws.secretsmanager  IAM ARN, e.g. arn:aws:iam::123456789012:role/app
  gcp.secretmanager   IAM member, e.g. serviceAccount:app@proj.iam.gserviceaccount.com

Stores without resource policies (aws.ssm, azure.keyvault, keychain) report
an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := store.ParseAccess(access)
			if err != nil {
				return dserrors.UserError{
					Message:    err.Error(),
					Suggestion: "Use --access read, write or readwrite",
				}
			}

			ms, err := loadSecret(cfg, nil)
			if err != nil {
				return err
			}

			ctx, cancel := storeContext(cfg)
			defer cancel()
			if err := ms.Grant(ctx, principal, level); err != nil {
				if secretspec.IsConfigurationError(err) {
					return err
				}
				return storeFailure(cfg, ms, "grant", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "", "Principal to grant access to")
	cmd.Flags().StringVar(&access, "access", string(store.AccessRead), "Access level (read, write, readwrite)")
	_ = cmd.MarkFlagRequired("principal")

	return cmd
}
