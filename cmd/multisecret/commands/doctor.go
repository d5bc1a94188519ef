package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	dserrors "github.com/systmms/multisecret/internal/errors"
	"github.com/systmms/multisecret/pkg/generator"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var (
		verbose   bool
		skipStore bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and store connectivity",
		Long: `Verify that multisecret is ready to provision.

This command checks:
- Configuration file validity
- That every key can be generated with its settings
- Store authentication and connectivity

Use --skip-store to check the configuration offline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking multisecret configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			def := cfg.Definition

			var results []CheckResult
			for _, spec := range def.Specs() {
				r := CheckResult{Name: "key " + spec.Name, Kind: "key"}
				err := generator.Check(spec)
				alphabet, _ := generator.NewAlphabet(spec)
				if err != nil {
					r.Status = statusError
					r.Message = err.Error()
				} else {
					r.Status = statusHealthy
					r.Message = fmt.Sprintf("%d characters from %d symbols", spec.Length(), alphabet.Size())
				}
				results = append(results, r)
			}

			if !skipStore {
				r := CheckResult{Name: def.Store.Type, Kind: "store"}
				s, err := openStore(cfg)
				if err == nil {
					ctx, cancel := storeContext(cfg)
					err = s.Validate(ctx)
					cancel()
				}
				if err != nil {
					r.Status = statusError
					r.Message = err.Error()
					if simplified, ok := dserrors.StoreError(def.Store.Type, "validate", err).(dserrors.UserError); ok && simplified.Suggestion != "" {
						r.Suggestions = append(r.Suggestions, simplified.Suggestion)
					}
				} else {
					r.Status = statusHealthy
					r.Message = "Store is reachable"
				}
				results = append(results, r)
			}

			out := cmd.OutOrStdout()
			displayCheckResults(out, results, verbose)

			healthy := 0
			for _, r := range results {
				if r.Status == statusHealthy {
					healthy++
				}
			}
			fmt.Fprintf(out, "\nSummary: %d/%d checks passed for %s\n", healthy, len(results), def.Secret)
			if healthy < len(results) {
				return fmt.Errorf("some checks failed")
			}

			cfg.Logger.Info("Ready to provision")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")
	cmd.Flags().BoolVar(&skipStore, "skip-store", false, "Do not contact the store")

	return cmd
}

const (
	statusHealthy = "healthy"
	statusError   = "error"
)

// CheckResult is one row of the doctor report.
type CheckResult struct {
	Name        string
	Kind        string
	Status      string
	Message     string
	Suggestions []string
}

// displayCheckResults shows check results in a formatted table
func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tKIND\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t----\t------\t-------\n")

	for _, r := range results {
		status := r.Status
		switch r.Status {
		case statusHealthy:
			status = "✓ " + status
		case statusError:
			status = "✗ " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Kind, status, r.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, r := range results {
		if r.Status == statusError && len(r.Suggestions) > 0 {
			_, _ = fmt.Fprintf(out, "\n%s suggestions:\n", r.Name)
			for _, s := range r.Suggestions {
				_, _ = fmt.Fprintf(out, "  • %s\n", s)
			}
		}
	}
}
