package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "secret is redacted",
			input:    "my-secret-password",
			expected: "[REDACTED]",
		},
		{
			name:     "empty secret is still redacted",
			input:    "",
			expected: "[REDACTED]",
		},
		{
			name:     "generated value with punctuation is redacted",
			input:    `p@ss"w0rd{}\`,
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Secret(tt.input).String())
			assert.Equal(t, tt.expected, fmt.Sprintf("%#v", Secret(tt.input)))
		})
	}
}

func TestLoggerRedactsGeneratedValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	value := "Zq7!generated-value-1234"
	logger.Info("generated key %s: %s", "apiKey", Secret(value))
	logger.Debug("debug %v", Secret(value))

	out := buf.String()
	assert.Contains(t, out, "✓ generated key apiKey: [REDACTED]")
	assert.Contains(t, out, "[DEBUG] debug [REDACTED]")
	assert.NotContains(t, out, value)
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Debug("debug message")

	out := buf.String()
	assert.Contains(t, out, "✓ info message\n")
	assert.Contains(t, out, "⚠ warn message\n")
	assert.Contains(t, out, "✗ error message\n")
	assert.NotContains(t, out, "debug message", "debug is disabled")
	assert.False(t, logger.IsDebug())
}

func TestLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, false, false).Error("boom")

	assert.Equal(t, "\033[31m✗\033[0m boom\n", buf.String())
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.Info("nothing") })
}

func TestRedact(t *testing.T) {
	out := Redact("token=abcd1234 short=ab", []string{"abcd1234", "ab", ""})
	assert.Equal(t, "token=[REDACTED] short=ab", out)
}
