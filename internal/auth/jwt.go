// Package auth issues and validates the HS256 session tokens handed to the
// shop finder client at login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeSession is the typ claim of session tokens.
const TokenTypeSession = "session"

// DefaultSessionExpiry is the lifetime of a session token.
const DefaultSessionExpiry = 24 * time.Hour

// DefaultLeeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptyUserID is returned when userID is empty.
var ErrEmptyUserID = errors.New("userID cannot be empty")

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Type  string `json:"typ"`
}

// SessionService signs and validates session tokens. Tokens are signed with
// the current secret and accepted with either the current or the previous
// one, so the secret can be rotated without logging everyone out.
type SessionService struct {
	secrets [][]byte
	expiry  time.Duration
	leeway  time.Duration
	now     func() time.Time
}

// Option configures a SessionService.
type Option func(*SessionService)

// WithPreviousSecret accepts tokens signed with an older secret.
func WithPreviousSecret(secret string) Option {
	return func(s *SessionService) {
		if secret != "" {
			s.secrets = append(s.secrets, []byte(secret))
		}
	}
}

// WithExpiry overrides DefaultSessionExpiry.
func WithExpiry(d time.Duration) Option {
	return func(s *SessionService) { s.expiry = d }
}

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(s *SessionService) { s.leeway = d }
}

// NewSessionService creates a service signing with secret.
func NewSessionService(secret string, opts ...Option) *SessionService {
	s := &SessionService{
		secrets: [][]byte{[]byte(secret)},
		expiry:  DefaultSessionExpiry,
		leeway:  DefaultLeeway,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a session token for userID.
func (s *SessionService) Issue(userID, email string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		Email: email,
		Type:  TokenTypeSession,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secrets[0])
}

// Validate parses tokenString and returns its claims if it is a valid,
// unexpired session token.
func (s *SessionService) Validate(tokenString string) (*Claims, error) {
	var err error
	for _, secret := range s.secrets {
		var token *jwt.Token
		token, err = jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, ErrInvalidToken
			}
			return secret, nil
		}, jwt.WithLeeway(s.leeway), jwt.WithTimeFunc(s.now))
		if err != nil {
			continue
		}
		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid || claims.Type != TokenTypeSession {
			return nil, ErrInvalidToken
		}
		return claims, nil
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}
