// Package secretdoc holds the JSON document written as the content of a
// multi-value secret.
//
// A Document maps key names to values in declaration order. A value is either a
// plain string or an Object, an ordered JSON object produced by merging a
// generated string into a template. Order is preserved on output so the stored
// secret reads the same way the keys were declared.
package secretdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is one entry of a Document: a string, or an object when a template was
// used.
type Value struct {
	str    string
	object *Object
}

// StringValue wraps a plain generated string.
func StringValue(s string) Value {
	return Value{str: s}
}

// ObjectValue wraps a template object.
func ObjectValue(o *Object) Value {
	return Value{object: o}
}

// IsObject reports whether the value is a template object.
func (v Value) IsObject() bool {
	return v.object != nil
}

// String returns the plain string, or the compact JSON of an object value.
func (v Value) String() string {
	if v.object == nil {
		return v.str
	}
	data, err := v.object.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// Object returns the template object, or nil for a plain string.
func (v Value) Object() *Object {
	return v.object
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.object != nil {
		return v.object.MarshalJSON()
	}
	return json.Marshal(v.str)
}

// Document is the generated secret content.
type Document struct {
	keys   []string
	values map[string]Value
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]Value)}
}

// Set adds or replaces a value. New keys are appended.
func (d *Document) Set(name string, v Value) {
	if _, ok := d.values[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.values[name] = v
}

// Get returns the value stored under name.
func (d *Document) Get(name string) (Value, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Keys returns the key names in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// MarshalJSON implements json.Marshaler, emitting keys in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := d.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode key '%s': %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseDocument decodes stored secret content. Object values keep their field
// order; other non-string values are rejected.
func ParseDocument(data []byte) (*Document, error) {
	fields, err := decodeOrderedObject(data)
	if err != nil {
		return nil, err
	}

	doc := NewDocument()
	for _, f := range fields {
		trimmed := bytes.TrimSpace(f.raw)
		switch {
		case len(trimmed) > 0 && trimmed[0] == '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return nil, fmt.Errorf("invalid value for key '%s': %w", f.key, err)
			}
			doc.Set(f.key, StringValue(s))
		case len(trimmed) > 0 && trimmed[0] == '{':
			obj, err := ParseObject(trimmed)
			if err != nil {
				return nil, fmt.Errorf("invalid value for key '%s': %w", f.key, err)
			}
			doc.Set(f.key, ObjectValue(obj))
		default:
			return nil, fmt.Errorf("key '%s' must hold a string or an object", f.key)
		}
	}
	return doc, nil
}
