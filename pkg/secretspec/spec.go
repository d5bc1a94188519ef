package secretspec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultPasswordLength is used when a spec leaves PasswordLength unset.
const DefaultPasswordLength = 32

// MaxPasswordLength is the longest value that may be requested, the same
// limit as Secrets Manager GetRandomPassword.
const MaxPasswordLength = 4096

// Spec is the generation configuration of one named value.
type Spec struct {
	// Name is the key of the value in the generated document.
	Name string `json:"name" yaml:"name"`

	// PasswordLength is the number of characters to generate. Zero means
	// DefaultPasswordLength.
	PasswordLength int `json:"passwordLength,omitempty" yaml:"passwordLength,omitempty"`

	// ExcludeCharacters lists literal characters that must never appear.
	ExcludeCharacters string `json:"excludeCharacters,omitempty" yaml:"excludeCharacters,omitempty"`

	ExcludeLowercase   bool `json:"excludeLowercase,omitempty" yaml:"excludeLowercase,omitempty"`
	ExcludeUppercase   bool `json:"excludeUppercase,omitempty" yaml:"excludeUppercase,omitempty"`
	ExcludeNumbers     bool `json:"excludeNumbers,omitempty" yaml:"excludeNumbers,omitempty"`
	ExcludePunctuation bool `json:"excludePunctuation,omitempty" yaml:"excludePunctuation,omitempty"`

	// IncludeSpace adds the space character to the alphabet.
	IncludeSpace bool `json:"includeSpace,omitempty" yaml:"includeSpace,omitempty"`

	// RequireEachIncludedType forces at least one character of every enabled
	// class into the value.
	RequireEachIncludedType bool `json:"requireEachIncludedType,omitempty" yaml:"requireEachIncludedType,omitempty"`

	// SecretStringTemplate is an optional JSON object the value is merged into
	// under GenerateStringKey.
	SecretStringTemplate string `json:"secretStringTemplate,omitempty" yaml:"secretStringTemplate,omitempty"`
	GenerateStringKey    string `json:"generateStringKey,omitempty" yaml:"generateStringKey,omitempty"`
}

// ApplyDefaults fills unset fields with their defaults.
func (s *Spec) ApplyDefaults() {
	if s.PasswordLength == 0 {
		s.PasswordLength = DefaultPasswordLength
	}
}

// Length returns the effective password length.
func (s Spec) Length() int {
	if s.PasswordLength == 0 {
		return DefaultPasswordLength
	}
	return s.PasswordLength
}

// HasTemplate reports whether the value is embedded into a JSON template.
func (s Spec) HasTemplate() bool {
	return s.SecretStringTemplate != ""
}

// Validate checks the fields of a single spec. It does not check the alphabet;
// that is done by the generator, which knows the character classes.
func (s Spec) Validate() error {
	if s.Name == "" {
		return &ConfigurationError{Field: "name", Message: "name must not be empty"}
	}
	if s.Length() <= 0 {
		return &ConfigurationError{
			Key:     s.Name,
			Field:   "passwordLength",
			Message: fmt.Sprintf("length must be positive, got %d", s.PasswordLength),
		}
	}
	if s.Length() > MaxPasswordLength {
		return &ConfigurationError{
			Key:     s.Name,
			Field:   "passwordLength",
			Message: fmt.Sprintf("length %d exceeds the maximum of %d", s.PasswordLength, MaxPasswordLength),
		}
	}
	if s.HasTemplate() {
		if s.GenerateStringKey == "" {
			return &ConfigurationError{
				Key:     s.Name,
				Field:   "generateStringKey",
				Message: "generateStringKey is required when secretStringTemplate is set",
			}
		}
		trimmed := bytes.TrimSpace([]byte(s.SecretStringTemplate))
		if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
			return &ConfigurationError{
				Key:     s.Name,
				Field:   "secretStringTemplate",
				Message: "template must be a JSON object",
			}
		}
	}
	return nil
}

// List is the ordered set of specs of one secret.
type List []Spec

// Validate checks the list as a whole and every spec in it.
func (l List) Validate() error {
	if len(l) == 0 {
		return &ConfigurationError{Message: "at least one secret key must be configured"}
	}

	seen := make(map[string]int, len(l))
	for i, s := range l {
		if s.Name == "" {
			return &ConfigurationError{
				Field:   "name",
				Message: fmt.Sprintf("key at position %d has an empty name", i),
			}
		}
		if first, dup := seen[s.Name]; dup {
			return &ConfigurationError{
				Key:     s.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate key name at positions %d and %d", first, i),
			}
		}
		seen[s.Name] = i
	}

	for _, s := range l {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the key names in declared order.
func (l List) Names() []string {
	names := make([]string, len(l))
	for i, s := range l {
		names[i] = s.Name
	}
	return names
}

// WithDefaults returns a copy of the list with defaults applied.
func (l List) WithDefaults() List {
	out := make(List, len(l))
	copy(out, l)
	for i := range out {
		out[i].ApplyDefaults()
	}
	return out
}
