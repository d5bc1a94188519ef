package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	"github.com/systmms/multisecret/internal/metrics"
	"github.com/systmms/multisecret/pkg/multisecret"
	"github.com/systmms/multisecret/pkg/secretspec"
	"github.com/systmms/multisecret/pkg/store"
)

func NewProvisionCommand(cfg *config.Config) *cobra.Command {
	var (
		previous    string
		force       bool
		dryRun      bool
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Generate all values and write them to the secret",
		Long: `Generate every configured value and write the document to the configured
secret in a single write.

With --previous, the write is skipped when the fingerprint of the key list is
unchanged. The new fingerprint is printed on stdout so it can be kept for the
next run.

Examples:
  # First run
  multisecret provision > .multisecret-fingerprint

  # Later runs only regenerate when the key list changed
  multisecret provision --previous "$(cat .multisecret-fingerprint)"

  # Check configuration and generation without touching the store
  multisecret provision --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsFile != "" {
				metrics.InitMetrics()
			}

			var dryRunStore *store.Memory
			var target store.Store
			if dryRun {
				dryRunStore = store.NewMemory()
				target = dryRunStore
			}

			ms, err := loadSecret(cfg, target)
			if err != nil {
				return err
			}
			if dryRunStore != nil {
				dryRunStore.Create(ms.SecretID())
			}

			ctx, cancel := storeContext(cfg)
			defer cancel()
			var res multisecret.Result
			if force {
				res, err = ms.Regenerate(ctx)
			} else {
				res, err = ms.Provision(ctx, previous)
			}
			if err != nil {
				if secretspec.IsConfigurationError(err) || secretspec.IsGenerationError(err) {
					return err
				}
				return storeFailure(cfg, ms, "provision", err)
			}

			switch {
			case dryRunStore != nil:
				cfg.Logger.Info("Dry run: generated keys %v, nothing written to %s", res.KeyNames, cfg.Definition.Store.Type)
			case res.Regenerated:
				cfg.Logger.Info("Provisioned %s with keys %v (version %s)", ms.SecretID(), res.KeyNames, res.Version)
			default:
				cfg.Logger.Info("Key list unchanged; %s left as is", ms.SecretID())
			}

			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(metricsFile, prometheus.DefaultGatherer); err != nil {
					cfg.Logger.Warn("Failed to write metrics to %s: %v", metricsFile, err)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Fingerprint)
			return nil
		},
	}

	cmd.Flags().StringVar(&previous, "previous", "", "Fingerprint of the last provisioned key list")
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate even when the fingerprint is unchanged")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate into an in-memory store instead of the configured one")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file (textfile collector format)")
	cmd.MarkFlagsMutuallyExclusive("previous", "force")

	return cmd
}
