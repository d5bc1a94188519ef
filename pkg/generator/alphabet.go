package generator

import (
	"fmt"
	"strings"

	"github.com/systmms/multisecret/pkg/secretspec"
)

// Character classes. Punctuation is the printable ASCII punctuation set used
// by Secrets Manager GetRandomPassword.
const (
	Lowercase   = "abcdefghijklmnopqrstuvwxyz"
	Uppercase   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Numbers     = "0123456789"
	Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	Space       = " "
)

// Class identifies one character class.
type Class string

const (
	ClassLowercase   Class = "lowercase"
	ClassUppercase   Class = "uppercase"
	ClassNumbers     Class = "numbers"
	ClassPunctuation Class = "punctuation"
	ClassSpace       Class = "space"
)

// Alphabet is the set of characters a spec may draw from, together with the
// classes that survived exclusion.
type Alphabet struct {
	chars   []byte
	classes []classSet
}

type classSet struct {
	class Class
	chars []byte
}

// Chars returns the allowed characters.
func (a Alphabet) Chars() string {
	return string(a.chars)
}

// Size returns the number of allowed characters.
func (a Alphabet) Size() int {
	return len(a.chars)
}

// Classes returns the classes that still have at least one allowed character.
func (a Alphabet) Classes() []Class {
	out := make([]Class, len(a.classes))
	for i, c := range a.classes {
		out[i] = c.class
	}
	return out
}

// Contains reports whether c is an allowed character.
func (a Alphabet) Contains(c byte) bool {
	for _, x := range a.chars {
		if x == c {
			return true
		}
	}
	return false
}

// NewAlphabet builds the alphabet of a spec: enabled classes, plus space when
// requested, minus the excluded characters.
func NewAlphabet(spec secretspec.Spec) (Alphabet, error) {
	candidates := []struct {
		class    Class
		chars    string
		disabled bool
	}{
		{ClassLowercase, Lowercase, spec.ExcludeLowercase},
		{ClassUppercase, Uppercase, spec.ExcludeUppercase},
		{ClassNumbers, Numbers, spec.ExcludeNumbers},
		{ClassPunctuation, Punctuation, spec.ExcludePunctuation},
		{ClassSpace, Space, !spec.IncludeSpace},
	}

	var a Alphabet
	for _, c := range candidates {
		if c.disabled {
			continue
		}
		kept := filterExcluded(c.chars, spec.ExcludeCharacters)
		if len(kept) == 0 {
			continue
		}
		a.classes = append(a.classes, classSet{class: c.class, chars: kept})
		a.chars = append(a.chars, kept...)
	}

	if len(a.chars) == 0 {
		return Alphabet{}, &secretspec.ConfigurationError{
			Key:     spec.Name,
			Message: "no characters left to generate from after applying exclusions",
		}
	}
	return a, nil
}

func filterExcluded(chars, exclude string) []byte {
	kept := make([]byte, 0, len(chars))
	for i := 0; i < len(chars); i++ {
		if strings.IndexByte(exclude, chars[i]) >= 0 {
			continue
		}
		kept = append(kept, chars[i])
	}
	return kept
}

// classOf returns the class of c, used by tests and validation helpers.
func classOf(c byte) (Class, error) {
	switch {
	case strings.IndexByte(Lowercase, c) >= 0:
		return ClassLowercase, nil
	case strings.IndexByte(Uppercase, c) >= 0:
		return ClassUppercase, nil
	case strings.IndexByte(Numbers, c) >= 0:
		return ClassNumbers, nil
	case strings.IndexByte(Punctuation, c) >= 0:
		return ClassPunctuation, nil
	case c == ' ':
		return ClassSpace, nil
	default:
		return "", fmt.Errorf("character %q belongs to no class", c)
	}
}

// ClassesIn returns the set of classes present in s.
func ClassesIn(s string) map[Class]bool {
	out := make(map[Class]bool)
	for i := 0; i < len(s); i++ {
		if c, err := classOf(s[i]); err == nil {
			out[c] = true
		}
	}
	return out
}
