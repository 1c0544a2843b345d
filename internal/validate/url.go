package validate

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"slices"
	"strings"
)

// URL validation errors.
var (
	ErrInvalidURL       = errors.New("invalid URL")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrPrivateHost      = errors.New("URL points at a private or loopback host")
)

// URLConstraints describes an acceptable absolute URL.
type URLConstraints struct {
	AllowedSchemes []string
	// BlockPrivate rejects localhost and literal loopback, private, link-local
	// and unspecified addresses. Names are not resolved.
	BlockPrivate bool
	MaxLength    int
}

// ServiceURLConstraints accept any http(s) endpoint, local ones included.
var ServiceURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	MaxLength:      2048,
}

// PublicURLConstraints accept https links that are handed to the user.
var PublicURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// URL parses raw and checks it against c.
func URL(raw string, c URLConstraints) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmpty
	}
	if c.MaxLength > 0 && len(raw) > c.MaxLength {
		return nil, fmt.Errorf("%w: URL exceeds %d characters", ErrTooLong, c.MaxLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if len(c.AllowedSchemes) > 0 && !slices.Contains(c.AllowedSchemes, u.Scheme) {
		return nil, fmt.Errorf("%w: got %q, allowed %v", ErrDisallowedScheme, u.Scheme, c.AllowedSchemes)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if c.BlockPrivate && isPrivateHost(host) {
		return nil, fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}
	return u, nil
}

func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified()
}
