package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	dserrors "github.com/systmms/multisecret/internal/errors"
	"github.com/systmms/multisecret/pkg/multisecret"
)

func NewRefCommand(cfg *config.Config) *cobra.Command {
	var (
		keyName string
		format  string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "ref",
		Short: "Print references to values of the secret",
		Long: `Print a reference that resolves to one value of the secret without
exposing it.

Formats:
  dynamic   CloudFormation dynamic reference (default)
  jsonpath  secret#.key, as understood by secret resolvers that extract JSON fields

Examples:
  multisecret ref --key dbPassword
  multisecret ref --all --format jsonpath`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyName == "" && !all {
				return dserrors.UserError{
					Message:    "Key name is required",
					Suggestion: "Use --key <name> or --all",
				}
			}
			if format != "dynamic" && format != "jsonpath" {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Unknown reference format %q", format),
					Suggestion: "Use --format dynamic or --format jsonpath",
				}
			}

			if err := cfg.Load(); err != nil {
				return err
			}
			ms, err := multisecret.New(cfg.Definition.Secret, cfg.Definition.Specs())
			if err != nil {
				return err
			}

			names := []string{keyName}
			if all {
				names = ms.KeyNames()
			}
			for _, name := range names {
				ref, err := ms.SecretValueFromKey(name)
				if err != nil {
					return err
				}
				out := ref.String()
				if format == "jsonpath" {
					out = ref.JSONPath()
				}
				if all {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, out)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), out)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyName, "key", "", "Key name")
	cmd.Flags().StringVar(&format, "format", "dynamic", "Reference format (dynamic, jsonpath)")
	cmd.Flags().BoolVar(&all, "all", false, "Print a reference for every key")
	cmd.MarkFlagsMutuallyExclusive("key", "all")
	_ = cmd.RegisterFlagCompletionFunc("key", completeKeyNames(cfg))

	return cmd
}

// completeKeyNames completes --key from the configured key list.
func completeKeyNames(cfg *config.Config) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if cfg.Load() != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return cfg.Definition.Specs().Names(), cobra.ShellCompDirectiveNoFileComp
	}
}
