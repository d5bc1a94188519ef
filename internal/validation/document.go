// Package validation checks a stored secret document against the key list it
// was generated from.
package validation

import (
	"fmt"

	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/pkg/generator"
	"github.com/systmms/multisecret/pkg/secretdoc"
	"github.com/systmms/multisecret/pkg/secretspec"
)

// DocumentValidator validates stored documents against key specs
type DocumentValidator struct {
	logger *logging.Logger
}

// NewDocumentValidator creates a new document validator
func NewDocumentValidator(logger *logging.Logger) *DocumentValidator {
	return &DocumentValidator{logger: logger}
}

// ValidationResult contains the result of a validation. Messages never
// contain values.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Checked  int      `json:"checked"`
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// ValidateDocument checks that data holds every configured key with a value
// that the key's settings could have produced. Keys present in the document
// but not configured are reported as warnings.
func (v *DocumentValidator) ValidateDocument(specs secretspec.List, data []byte) *ValidationResult {
	result := &ValidationResult{Valid: true}

	doc, err := secretdoc.ParseDocument(data)
	if err != nil {
		result.fail("secret content is not a multisecret document: %v", err)
		return result
	}

	configured := make(map[string]bool, len(specs))
	for _, spec := range specs {
		configured[spec.Name] = true
		result.Checked++

		value, ok := doc.Get(spec.Name)
		if !ok {
			result.fail("key %s is missing", spec.Name)
			continue
		}

		generated := value.String()
		if spec.HasTemplate() {
			if !value.IsObject() {
				result.fail("key %s should hold a JSON object", spec.Name)
				continue
			}
			s, ok := value.Object().GetString(spec.GenerateStringKey)
			if !ok {
				result.fail("key %s has no string field %s", spec.Name, spec.GenerateStringKey)
				continue
			}
			generated = s
		} else if value.IsObject() {
			result.fail("key %s should hold a string", spec.Name)
			continue
		}

		v.validateValue(spec, generated, result)
	}

	for _, name := range doc.Keys() {
		if !configured[name] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("key %s is stored but not configured", name))
		}
	}

	return result
}

// validateValue checks length, alphabet and required classes of one value.
func (v *DocumentValidator) validateValue(spec secretspec.Spec, value string, result *ValidationResult) {
	v.logger.Debug("Validating %s: %s", spec.Name, logging.Secret(value))

	if len(value) != spec.Length() {
		result.fail("key %s has %d characters, expected %d", spec.Name, len(value), spec.Length())
	}

	alphabet, err := generator.NewAlphabet(spec)
	if err != nil {
		result.fail("key %s: %v", spec.Name, err)
		return
	}
	for i := 0; i < len(value); i++ {
		if !alphabet.Contains(value[i]) {
			result.fail("key %s contains a character outside its allowed set at position %d", spec.Name, i)
			break
		}
	}

	if spec.RequireEachIncludedType {
		present := generator.ClassesIn(value)
		for _, class := range alphabet.Classes() {
			if !present[class] {
				result.fail("key %s has no %s character", spec.Name, class)
			}
		}
	}
}
