// Package execenv runs a child process with secret values injected as
// environment variables.
package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
	"unicode"

	dserrors "github.com/systmms/multisecret/internal/errors"
	"github.com/systmms/multisecret/internal/logging"
)

// Executor handles running commands with ephemeral environment variables
type Executor struct {
	logger *logging.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	env    func() []string
}

// Option configures an Executor.
type Option func(*Executor)

// WithIO replaces the standard streams of the child process.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdin = stdin
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithBaseEnvironment replaces os.Environ as the starting environment.
func WithBaseEnvironment(env func() []string) Option {
	return func(e *Executor) {
		e.env = env
	}
}

// New creates a new executor
func New(logger *logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger: logger,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		env:    os.Environ,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecOptions configures command execution
type ExecOptions struct {
	Command       []string                  // Command and arguments to run
	Environment   map[string]logging.Secret // Variables to set
	AllowOverride bool                      // Existing variables win over injected ones
	PrintVars     bool                      // Print variable names with masked values
	WorkingDir    string
	Timeout       time.Duration // Zero for no timeout
}

// ExitError carries the exit code of a child process that ran and failed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// Exec runs a command with the provided environment variables. A command
// that runs and exits non-zero yields an *ExitError so the caller can
// propagate the code.
func (e *Executor) Exec(ctx context.Context, options ExecOptions) error {
	if len(options.Command) == 0 {
		return dserrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., multisecret exec -- npm start)",
		}
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	cmdName := options.Command[0]
	if _, err := exec.LookPath(cmdName); err != nil {
		return dserrors.WrapCommandNotFound(cmdName, err)
	}

	if options.PrintVars {
		e.printEnvironment(options.Environment)
	}

	cmd := exec.CommandContext(ctx, cmdName, options.Command[1:]...)
	cmd.Env = e.buildEnvironment(options.Environment, options.AllowOverride)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	e.logger.Debug("Executing command: %s", strings.Join(options.Command, " "))
	e.logger.Debug("Environment variables set: %d", len(options.Environment))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return dserrors.CommandError{
			Command:    strings.Join(options.Command, " "),
			Message:    err.Error(),
			Suggestion: "Check the command output above for details",
		}
	}
	return nil
}

// buildEnvironment creates the environment slice for the child process
func (e *Executor) buildEnvironment(vars map[string]logging.Secret, allowOverride bool) []string {
	envMap := make(map[string]string)
	for _, kv := range e.env() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}

	for key, value := range vars {
		if _, exists := envMap[key]; exists && allowOverride {
			continue
		}
		envMap[key] = string(value)
	}

	result := make([]string, 0, len(envMap))
	for key, value := range envMap {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)
	return result
}

// printEnvironment lists the injected variables with masked values
func (e *Executor) printEnvironment(environment map[string]logging.Secret) {
	if len(environment) == 0 {
		fmt.Fprintln(e.stderr, "No environment variables set")
		return
	}

	keys := make([]string, 0, len(environment))
	for key := range environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(e.stderr, "Setting %d environment variables:\n", len(environment))
	for _, key := range keys {
		fmt.Fprintf(e.stderr, "  %s=%s\n", key, maskValue(string(environment[key])))
	}
	fmt.Fprintln(e.stderr)
}

// maskValue masks a secret value for display
func maskValue(value string) string {
	if len(value) == 0 {
		return "(empty)"
	}
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:2] + strings.Repeat("*", 8)
}

// EnvName converts a key name into an environment variable name:
// dbPassword becomes DB_PASSWORD, api-key becomes API_KEY. The prefix is
// prepended as is.
func EnvName(prefix, key string) string {
	var b strings.Builder
	b.WriteString(prefix)

	runes := []rune(key)
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		case unicode.IsLower(r):
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsDigit(r):
			if i == 0 && prefix == "" {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
