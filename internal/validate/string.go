// Package validate checks and normalises input at the edges of the system:
// request bodies accepted by the stub backend and URLs read from
// configuration.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors.
var (
	ErrEmpty             = errors.New("value is empty")
	ErrTooShort          = errors.New("value is too short")
	ErrTooLong           = errors.New("value is too long")
	ErrInvalidCharacters = errors.New("value contains invalid characters")
)

// MaxProductLength bounds a product search term, in characters.
const MaxProductLength = 100

// productPattern rejects control characters and markup brackets.
var productPattern = regexp.MustCompile(`^[^\p{Cc}<>]+$`)

// StringConstraints describes an acceptable string. Lengths count runes.
type StringConstraints struct {
	MinLength      int
	MaxLength      int
	AllowedPattern *regexp.Regexp
	AllowEmpty     bool
	TrimSpace      bool
}

// String checks s against c and returns it, trimmed when c.TrimSpace is set.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if c.AllowEmpty {
			return s, nil
		}
		return "", ErrEmpty
	}

	n := utf8.RuneCountInString(s)
	if c.MinLength > 0 && n < c.MinLength {
		return "", fmt.Errorf("%w: %d characters, need at least %d", ErrTooShort, n, c.MinLength)
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return "", fmt.Errorf("%w: %d characters, at most %d allowed", ErrTooLong, n, c.MaxLength)
	}
	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", ErrInvalidCharacters
	}
	return s, nil
}

// ProductQuery normalises a product search term: surrounding whitespace is
// dropped and inner runs of whitespace collapse to one space.
func ProductQuery(q string) (string, error) {
	return String(strings.Join(strings.Fields(q), " "), StringConstraints{
		MinLength:      1,
		MaxLength:      MaxProductLength,
		AllowedPattern: productPattern,
	})
}
