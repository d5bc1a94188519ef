// Package generator produces random credential values from a key spec.
//
// Values are drawn uniformly, with replacement, from the key's alphabet using
// a cryptographically secure source (crypto/rand by default). When a key
// requires each included type, one character of every surviving class is
// placed first, the rest is filled from the whole alphabet and the result is
// shuffled, so the length is exact and the free positions stay uniform.
package generator

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/systmms/multisecret/pkg/secretdoc"
	"github.com/systmms/multisecret/pkg/secretspec"
)

// Generator draws values for specs.
type Generator struct {
	random io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithRandom replaces the randomness source. It must be cryptographically
// secure outside of tests.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		g.random = r
	}
}

// New creates a Generator backed by crypto/rand.
func New(opts ...Option) *Generator {
	g := &Generator{random: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check reports every configuration problem of spec that would otherwise only
// surface while generating: an empty alphabet, a length shorter than the
// classes that must be included, and a template that is not a JSON object
// with unique keys. It draws no randomness.
func Check(spec secretspec.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	alphabet, err := NewAlphabet(spec)
	if err != nil {
		return err
	}
	if err := checkRequiredClasses(spec, alphabet); err != nil {
		return err
	}
	if spec.HasTemplate() {
		if _, err := parseTemplate(spec); err != nil {
			return err
		}
	}
	return nil
}

// CheckList runs Check on every spec in list order.
func CheckList(specs secretspec.List) error {
	for _, spec := range specs {
		if err := Check(spec); err != nil {
			return err
		}
	}
	return nil
}

func checkRequiredClasses(spec secretspec.Spec, alphabet Alphabet) error {
	if !spec.RequireEachIncludedType || spec.Length() >= len(alphabet.classes) {
		return nil
	}
	return &secretspec.ConfigurationError{
		Key:   spec.Name,
		Field: "passwordLength",
		Message: fmt.Sprintf("length %d is shorter than the %d character classes that must be included",
			spec.Length(), len(alphabet.classes)),
	}
}

func parseTemplate(spec secretspec.Spec) (*secretdoc.Object, error) {
	obj, err := secretdoc.ParseObject([]byte(spec.SecretStringTemplate))
	if err != nil {
		return nil, &secretspec.ConfigurationError{
			Key:     spec.Name,
			Field:   "secretStringTemplate",
			Message: err.Error(),
		}
	}
	return obj, nil
}

// String generates the raw string for spec.
func (g *Generator) String(spec secretspec.Spec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	alphabet, err := NewAlphabet(spec)
	if err != nil {
		return "", err
	}

	if err := checkRequiredClasses(spec, alphabet); err != nil {
		return "", err
	}

	length := spec.Length()
	out := make([]byte, 0, length)

	if spec.RequireEachIncludedType {
		for _, cs := range alphabet.classes {
			c, err := g.pick(cs.chars)
			if err != nil {
				return "", &secretspec.GenerationError{Key: spec.Name, Err: err}
			}
			out = append(out, c)
		}
	}

	for len(out) < length {
		c, err := g.pick(alphabet.chars)
		if err != nil {
			return "", &secretspec.GenerationError{Key: spec.Name, Err: err}
		}
		out = append(out, c)
	}

	if spec.RequireEachIncludedType {
		if err := g.shuffle(out); err != nil {
			return "", &secretspec.GenerationError{Key: spec.Name, Err: err}
		}
	}

	return string(out), nil
}

// Value generates the document value for spec: the raw string, or the
// template object with the string stored under GenerateStringKey.
func (g *Generator) Value(spec secretspec.Spec) (secretdoc.Value, error) {
	s, err := g.String(spec)
	if err != nil {
		return secretdoc.Value{}, err
	}
	if !spec.HasTemplate() {
		return secretdoc.StringValue(s), nil
	}

	obj, err := parseTemplate(spec)
	if err != nil {
		return secretdoc.Value{}, err
	}
	obj.Set(spec.GenerateStringKey, s)
	return secretdoc.ObjectValue(obj), nil
}

// pick returns a uniformly chosen element of chars.
func (g *Generator) pick(chars []byte) (byte, error) {
	i, err := g.intn(len(chars))
	if err != nil {
		return 0, err
	}
	return chars[i], nil
}

// shuffle is a Fisher-Yates shuffle driven by the generator's source.
func (g *Generator) shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := g.intn(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}

func (g *Generator) intn(n int) (int, error) {
	v, err := rand.Int(g.random, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("randomness source unavailable: %w", err)
	}
	return int(v.Int64()), nil
}
