package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail is returned for an address that is not user@domain.tld.
var ErrInvalidEmail = errors.New("invalid email format")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// RFC 5321 limits.
const (
	maxEmailLength  = 254
	maxLocalLength  = 64
	maxDomainLength = 255
)

// Email returns the trimmed, lower-cased address or an error when it is not
// usable as an account identifier.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmpty
	}
	if len(email) > maxEmailLength {
		return "", ErrTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	local, domain, _ := strings.Cut(email, "@")
	if len(local) > maxLocalLength || len(domain) > maxDomainLength {
		return "", ErrTooLong
	}
	if strings.Contains(domain, "..") || strings.HasPrefix(domain, ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
