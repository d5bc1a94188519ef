package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/multisecret/internal/config"
	"github.com/systmms/multisecret/internal/execenv"
	"github.com/systmms/multisecret/internal/logging"
)

func NewExecCommand(cfg *config.Config) *cobra.Command {
	var (
		prefix        string
		allowOverride bool
		printVars     bool
		workingDir    string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Run a command with the secret's values in its environment",
		Long: `Read every value of the secret and run a command with them as environment
variables. Key names become upper snake case: dbPassword is exposed as
DB_PASSWORD. Values only live in the child process environment.

Examples:
  multisecret exec -- npm start
  multisecret exec --prefix APP_ -- ./server
  multisecret exec --print -- env`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := loadSecret(cfg, nil)
			if err != nil {
				return err
			}

			ctx, cancel := storeContext(cfg)
			values, err := ms.ResolveAll(ctx)
			cancel()
			if err != nil {
				return storeFailure(cfg, ms, "exec", err)
			}

			env := make(map[string]logging.Secret, len(values))
			for name, value := range values {
				env[execenv.EnvName(prefix, name)] = value
			}

			executor := execenv.New(cfg.Logger,
				execenv.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
			return executor.Exec(context.Background(), execenv.ExecOptions{
				Command:       args,
				Environment:   env,
				AllowOverride: allowOverride,
				PrintVars:     printVars,
				WorkingDir:    workingDir,
				Timeout:       timeout,
			})
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix for the variable names")
	cmd.Flags().BoolVar(&allowOverride, "allow-override", false, "Keep variables already set in the environment")
	cmd.Flags().BoolVar(&printVars, "print", false, "Print the variable names with masked values")
	cmd.Flags().StringVar(&workingDir, "working-dir", "", "Working directory for the command")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Kill the command after this duration")

	return cmd
}
