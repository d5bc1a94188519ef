package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	dserrors "github.com/systmms/multisecret/internal/errors"
)

// DefaultTimeoutMs bounds one store operation unless timeout_ms is set in the
// store configuration.
const DefaultTimeoutMs = 30000

// TimeoutMs returns the configured operation timeout in milliseconds.
func TimeoutMs(configMap map[string]interface{}) int {
	if ms, ok := intSetting(configMap, "timeout_ms"); ok && ms > 0 {
		return ms
	}
	return DefaultTimeoutMs
}

func intSetting(configMap map[string]interface{}, key string) (int, bool) {
	switch v := configMap[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// WithTimeout derives a context bounded by the store's operation timeout.
func WithTimeout(ctx context.Context, timeoutMs int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
}

// TimeoutError turns a deadline error into a user facing error with a
// suggestion for the store. Other errors are returned unchanged.
func TimeoutError(err error, storeType string, timeoutMs int) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dserrors.UserError{
		Message:    "Store operation timed out",
		Details:    fmt.Sprintf("Operation exceeded %dms timeout", timeoutMs),
		Suggestion: timeoutSuggestion(storeType, timeoutMs),
		Err:        err,
	}
}

func timeoutSuggestion(storeType string, timeoutMs int) string {
	slow := timeoutMs < 10000

	switch storeType {
	case TypeAWSSecretsManager, TypeAWSSSM:
		if slow {
			return "AWS API can be slow. Try increasing timeout_ms to 10000"
		}
		return "Check AWS connectivity and credentials. Verify region is correct"
	case TypeGCPSecretManager:
		if slow {
			return "Google Cloud API can be slow. Try increasing timeout_ms to 10000"
		}
		return "Check Google Cloud connectivity and authentication"
	case TypeAzureKeyVault:
		if slow {
			return "Azure API can be slow. Try increasing timeout_ms to 10000"
		}
		return "Check Azure connectivity and authentication"
	case TypeKeychain:
		return "The keychain may be waiting for an unlock prompt. Unlock it and try again"
	}

	return "Check network connectivity and store authentication. Consider increasing timeout_ms"
}
