package secretspec

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var listSchema []byte

// DecodeProperties converts an orchestration property bag into a List.
//
// Property bags are loosely typed: CloudFormation delivers every scalar as a
// string, so "32" and "true" are accepted wherever a number or boolean is
// expected. The bag may also be a JSON-encoded string. The legacy "length"
// field is accepted as an alias of "passwordLength".
//
// The bag is checked against the embedded JSON Schema and the resulting list is
// validated with List.Validate.
func DecodeProperties(raw any) (List, error) {
	if s, ok := raw.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, &ConfigurationError{Message: fmt.Sprintf("secret keys are not valid JSON: %v", err)}
		}
		raw = decoded
	}

	if raw == nil {
		return nil, &ConfigurationError{Message: "at least one secret key must be configured"}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, &ConfigurationError{Message: "secret keys must be a list"}
	}

	list := make(List, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, &ConfigurationError{Message: fmt.Sprintf("key at position %d must be an object", i)}
		}
		spec, err := decodeSpec(fields)
		if err != nil {
			return nil, err
		}
		list = append(list, spec)
	}

	if err := list.Validate(); err != nil {
		return nil, err
	}
	return list, nil
}

// Parse decodes a YAML or JSON document holding a list of specs.
func Parse(data []byte) (List, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("invalid key list: %v", err)}
	}
	return DecodeProperties(normalizeYAML(raw))
}

// LoadFile reads and parses a spec list from path.
func LoadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key list %s: %w", path, err)
	}
	return Parse(data)
}

func validateSchema(raw any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(listSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return &ConfigurationError{Message: fmt.Sprintf("schema validation error: %v", err)}
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return &ConfigurationError{
			Message: fmt.Sprintf("secret keys do not match the schema:\n  - %s", strings.Join(messages, "\n  - ")),
		}
	}
	return nil
}

func decodeSpec(fields map[string]any) (Spec, error) {
	var s Spec
	var err error

	s.Name, _ = fields["name"].(string)

	if _, both := fields["length"]; both {
		if _, ok := fields["passwordLength"]; ok {
			return s, &ConfigurationError{
				Key:     s.Name,
				Field:   "length",
				Message: "length is an alias of passwordLength; set only one of them",
			}
		}
	}

	lengthField := "passwordLength"
	lengthValue, present := fields[lengthField]
	if !present {
		lengthField = "length"
		lengthValue, present = fields[lengthField]
	}
	if present {
		if s.PasswordLength, err = toInt(lengthValue); err != nil {
			return s, &ConfigurationError{Key: s.Name, Field: lengthField, Message: err.Error()}
		}
		if s.PasswordLength <= 0 {
			return s, &ConfigurationError{
				Key:     s.Name,
				Field:   lengthField,
				Message: fmt.Sprintf("length must be positive, got %d", s.PasswordLength),
			}
		}
	}

	s.ExcludeCharacters, _ = fields["excludeCharacters"].(string)
	s.SecretStringTemplate, _ = fields["secretStringTemplate"].(string)
	s.GenerateStringKey, _ = fields["generateStringKey"].(string)

	flags := []struct {
		field string
		dst   *bool
	}{
		{"excludeLowercase", &s.ExcludeLowercase},
		{"excludeUppercase", &s.ExcludeUppercase},
		{"excludeNumbers", &s.ExcludeNumbers},
		{"excludePunctuation", &s.ExcludePunctuation},
		{"includeSpace", &s.IncludeSpace},
		{"requireEachIncludedType", &s.RequireEachIncludedType},
	}
	for _, f := range flags {
		v, ok := fields[f.field]
		if !ok {
			continue
		}
		if *f.dst, err = toBool(v); err != nil {
			return s, &ConfigurationError{Key: s.Name, Field: f.field, Message: err.Error()}
		}
	}

	s.ApplyDefaults()
	return s, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n.String())
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("expected a boolean, got %q", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
}

// normalizeYAML converts map[any]any nodes, which yaml can produce for
// non-string keys, into map[string]any so the schema loader accepts them.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
