package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	dserrors "github.com/systmms/multisecret/internal/errors"
	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/secretspec"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "multisecret.yaml"

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the multisecret.yaml structure
type Definition struct {
	Version int         `yaml:"version"`
	Secret  string      `yaml:"secret"`
	Store   StoreConfig `yaml:"store"`

	// Keys holds the key list inline. KeysFile points at a separate YAML or
	// JSON file instead; exactly one of them must be set.
	Keys     yaml.Node `yaml:"keys,omitempty"`
	KeysFile string    `yaml:"keysFile,omitempty"`

	specs secretspec.List
}

// StoreConfig selects the backend. Every field other than type is passed to
// the store factory.
type StoreConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:",inline"`
}

// Specs returns the decoded key list.
func (d *Definition) Specs() secretspec.List {
	return d.specs
}

// Load reads, parses and validates the multisecret.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create multisecret.yaml or pass --config with the path to your configuration",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data, filepath.Dir(c.Path))
	if err != nil {
		return err
	}
	c.Definition = def

	if c.Logger != nil {
		c.Logger.Debug("Loaded %s: secret %s, store %s, %d keys", c.Path, def.Secret, def.Store.Type, len(def.specs))
	}
	return nil
}

// Parse decodes a configuration document. Relative keysFile paths are
// resolved against baseDir.
func Parse(data []byte, baseDir string) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your multisecret.yaml file",
		}
	}

	if strings.TrimSpace(def.Secret) == "" {
		return nil, dserrors.ConfigError{
			Field:      "secret",
			Message:    "the identifier of the secret to populate is required",
			Suggestion: "Set 'secret:' to the ARN or name of an existing secret",
		}
	}

	registry := stores.NewRegistry()
	if def.Store.Type == "" {
		def.Store.Type = stores.TypeAWSSecretsManager
	}
	if !registry.IsSupported(def.Store.Type) {
		return nil, dserrors.ConfigError{
			Field:      "store.type",
			Value:      def.Store.Type,
			Message:    "unknown store type",
			Suggestion: "Supported types: " + strings.Join(registry.SupportedTypes(), ", "),
		}
	}

	specs, err := def.decodeKeys(baseDir)
	if err != nil {
		var cfgErr *secretspec.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, dserrors.ConfigError{
				Field:      "keys",
				Message:    cfgErr.Error(),
				Suggestion: "Each key needs a unique name; see 'multisecret generate --help' for the supported fields",
			}
		}
		return nil, err
	}
	def.specs = specs
	return &def, nil
}

func (d *Definition) decodeKeys(baseDir string) (secretspec.List, error) {
	hasInline := d.Keys.Kind != 0
	switch {
	case hasInline && d.KeysFile != "":
		return nil, dserrors.ConfigError{
			Field:      "keys",
			Message:    "keys and keysFile are mutually exclusive",
			Suggestion: "Keep the key list either inline or in a separate file",
		}
	case d.KeysFile != "":
		path := d.KeysFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return secretspec.LoadFile(path)
	case hasInline:
		var raw interface{}
		if err := d.Keys.Decode(&raw); err != nil {
			return nil, &secretspec.ConfigurationError{Field: "keys", Message: err.Error()}
		}
		return secretspec.DecodeProperties(raw)
	default:
		return nil, dserrors.ConfigError{
			Field:      "keys",
			Message:    "no keys configured",
			Suggestion: "Add a 'keys:' list with at least one entry, e.g. '- name: apiKey'",
		}
	}
}
