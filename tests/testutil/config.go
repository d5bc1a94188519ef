// Package testutil provides test helpers shared by multisecret packages.
//
// It contains a configuration builder that writes multisecret.yaml files to a
// temporary directory and a logger that captures output for redaction checks.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/systmms/multisecret/internal/config"
	"github.com/systmms/multisecret/pkg/secretspec"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// Example usage:
//
//	cfg := testutil.NewTestConfig(t).
//	    WithStore("memory", nil).
//	    WithKey(secretspec.Spec{Name: "apiKey", PasswordLength: 20}).
//	    Config(logger)
type TestConfigBuilder struct {
	t       *testing.T
	tempDir string

	secret   string
	store    map[string]any
	keys     []map[string]any
	keysFile string
}

// NewTestConfig creates a builder for secret "app/credentials" on the memory
// store with no keys.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		t:       t,
		tempDir: t.TempDir(),
		secret:  "app/credentials",
		store:   map[string]any{"type": "memory"},
	}
}

// WithSecret sets the identifier of the target secret.
func (b *TestConfigBuilder) WithSecret(secretID string) *TestConfigBuilder {
	b.secret = secretID
	return b
}

// WithStore selects the store type and its settings.
func (b *TestConfigBuilder) WithStore(storeType string, settings map[string]any) *TestConfigBuilder {
	b.store = map[string]any{"type": storeType}
	for k, v := range settings {
		b.store[k] = v
	}
	return b
}

// WithKey appends a key to the inline key list.
func (b *TestConfigBuilder) WithKey(spec secretspec.Spec) *TestConfigBuilder {
	b.t.Helper()

	data, err := yaml.Marshal(spec)
	if err != nil {
		b.t.Fatalf("Failed to encode key %s: %v", spec.Name, err)
	}
	var fields map[string]any
	if err := yaml.Unmarshal(data, &fields); err != nil {
		b.t.Fatalf("Failed to encode key %s: %v", spec.Name, err)
	}
	b.keys = append(b.keys, fields)
	return b
}

// WithKeysFile writes specs to a separate file and references it through
// keysFile instead of an inline list.
func (b *TestConfigBuilder) WithKeysFile(name string, specs ...secretspec.Spec) *TestConfigBuilder {
	b.t.Helper()

	data, err := yaml.Marshal(specs)
	if err != nil {
		b.t.Fatalf("Failed to encode key list: %v", err)
	}
	if err := os.WriteFile(filepath.Join(b.tempDir, name), data, 0644); err != nil {
		b.t.Fatalf("Failed to write key list: %v", err)
	}
	b.keysFile = name
	return b
}

// Write writes multisecret.yaml to the temporary directory and returns its
// path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	doc := map[string]any{
		"version": 0,
		"secret":  b.secret,
		"store":   b.store,
	}
	if b.keysFile != "" {
		doc["keysFile"] = b.keysFile
	} else if len(b.keys) > 0 {
		doc["keys"] = b.keys
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		b.t.Fatalf("Failed to encode test config: %v", err)
	}
	path := filepath.Join(b.tempDir, config.DefaultPath)
	if err := os.WriteFile(path, data, 0644); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// Config writes the file and returns a runtime configuration pointing at it.
func (b *TestConfigBuilder) Config(logger *TestLogger) *config.Config {
	b.t.Helper()

	cfg := &config.Config{Path: b.Write()}
	if logger != nil {
		cfg.Logger = logger.Logger()
	}
	return cfg
}

// WriteTestConfig writes a hand-written YAML document to a temporary
// multisecret.yaml and returns its path.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultPath)
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
