package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	"github.com/systmms/multisecret/pkg/populator"
	"github.com/systmms/multisecret/pkg/secretspec"
)

// loadSpecs returns the key list from keysFile when set, otherwise from the
// configuration.
func loadSpecs(cfg *config.Config, keysFile string) (secretspec.List, error) {
	if keysFile != "" {
		return secretspec.LoadFile(keysFile)
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg.Definition.Specs(), nil
}

func NewGenerateCommand(cfg *config.Config) *cobra.Command {
	var (
		keysFile string
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a secret document locally",
		Long: `Generate every configured value and print the resulting JSON document.

Nothing is written to a store. The output contains live credentials; redirect
it with care.

Examples:
  # Generate from multisecret.yaml
  multisecret generate

  # Generate from a standalone key list
  multisecret generate --keys keys.yaml --pretty`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := loadSpecs(cfg, keysFile)
			if err != nil {
				return err
			}

			p := populator.New(populator.WithLogger(cfg.Logger))
			doc, err := p.Populate(context.Background(), specs)
			if err != nil {
				return err
			}

			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, data, "", "  "); err != nil {
					return fmt.Errorf("failed to format document: %w", err)
				}
				data = buf.Bytes()
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&keysFile, "keys", "", "Read the key list from this YAML or JSON file instead of the config")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")

	return cmd
}

func NewFingerprintCommand(cfg *config.Config) *cobra.Command {
	var keysFile string

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the fingerprint of the key list",
		Long: `Print the fingerprint of the configured key list.

The fingerprint changes whenever a key is added, removed, renamed, reordered
or reconfigured. Pass it to 'provision --previous' to skip regeneration when
nothing changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := loadSpecs(cfg, keysFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secretspec.Fingerprint(specs.WithDefaults()))
			return nil
		},
	}

	cmd.Flags().StringVar(&keysFile, "keys", "", "Read the key list from this YAML or JSON file instead of the config")

	return cmd
}
