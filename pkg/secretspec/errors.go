package secretspec

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports an invalid key specification. It is raised before
// any value is generated and is never retried.
type ConfigurationError struct {
	// Key is the key name the error refers to, empty for list-level errors.
	Key string

	// Field is the offending spec field, if any.
	Field string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Key != "" {
		fmt.Fprintf(&b, " for key '%s'", e.Key)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " in field '%s'", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// GenerationError reports a failure while drawing a value, typically an
// unavailable randomness source. The whole document is discarded.
type GenerationError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate value for key '%s': %v", e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// AccessLookupError is returned when a caller asks for a key that is not part
// of the configured list.
type AccessLookupError struct {
	Name      string
	Available []string
}

// Error implements the error interface.
func (e *AccessLookupError) Error() string {
	return fmt.Sprintf("secret key '%s' is not configured; available keys: %s",
		e.Name, strings.Join(e.Available, ", "))
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsGenerationError reports whether err is or wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var target *GenerationError
	return errors.As(err, &target)
}

// IsAccessLookupError reports whether err is or wraps an *AccessLookupError.
func IsAccessLookupError(err error) bool {
	var target *AccessLookupError
	return errors.As(err, &target)
}
