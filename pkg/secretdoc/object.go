package secretdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type field struct {
	key string
	raw json.RawMessage
}

// Object is a JSON object that keeps its field order.
type Object struct {
	fields []field
}

// ParseObject decodes a JSON object. Duplicate keys are rejected.
func ParseObject(data []byte) (*Object, error) {
	fields, err := decodeOrderedObject(data)
	if err != nil {
		return nil, err
	}
	return &Object{fields: fields}, nil
}

// Set stores s under key, replacing an existing field in place or appending a
// new one.
func (o *Object) Set(key, s string) {
	raw, _ := json.Marshal(s)
	for i := range o.fields {
		if o.fields[i].key == key {
			o.fields[i].raw = raw
			return
		}
	}
	o.fields = append(o.fields, field{key: key, raw: raw})
}

// Get returns the raw JSON of a field.
func (o *Object) Get(key string) (json.RawMessage, bool) {
	for _, f := range o.fields {
		if f.key == key {
			return f.raw, true
		}
	}
	return nil, false
}

// GetString returns a field that holds a JSON string.
func (o *Object) GetString(key string) (string, bool) {
	raw, ok := o.Get(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Keys returns the field names in order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.fields))
	for i, f := range o.fields {
		keys[i] = f.key
	}
	return keys
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := json.Compact(&buf, f.raw); err != nil {
			return nil, fmt.Errorf("invalid value for field '%s': %w", f.key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeOrderedObject(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("invalid JSON object: expected '{'")
	}

	var fields []field
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("invalid JSON object: expected a field name")
		}
		if seen[key] {
			return nil, fmt.Errorf("invalid JSON object: duplicate field '%s'", key)
		}
		seen[key] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON object: field '%s': %w", key, err)
		}
		fields = append(fields, field{key: key, raw: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON object: unexpected data after object")
	}
	return fields, nil
}
