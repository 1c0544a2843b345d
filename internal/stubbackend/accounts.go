package stubbackend

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/validate"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when an email is registered twice.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidSignup is returned for a malformed email or an empty password.
	ErrInvalidSignup = errors.New("invalid signup")
)

// Account is a registered user.
type Account struct {
	ID    string
	Email string
	hash  []byte
}

// Accounts holds users and the review settings each one remembered.
type Accounts struct {
	cost int

	mu       sync.RWMutex
	byEmail  map[string]Account
	settings map[string]settings.ReviewSettings
}

// NewAccounts creates an empty account set hashing passwords with the given
// bcrypt cost; values below bcrypt.MinCost select bcrypt.DefaultCost.
func NewAccounts(cost int) *Accounts {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{
		cost:     cost,
		byEmail:  make(map[string]Account),
		settings: make(map[string]settings.ReviewSettings),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register adds a user and returns it with a fresh id.
func (a *Accounts) Register(email, password string) (Account, error) {
	email, err := validate.Email(email)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrInvalidSignup, err)
	}
	if password == "" {
		return Account{}, fmt.Errorf("%w: password is required", ErrInvalidSignup)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return Account{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byEmail[email]; ok {
		return Account{}, ErrAccountExists
	}
	acc := Account{ID: uuid.NewString(), Email: email, hash: hash}
	a.byEmail[email] = acc
	return acc, nil
}

// Authenticate checks a password against the stored hash.
func (a *Accounts) Authenticate(email, password string) (Account, error) {
	a.mu.RLock()
	acc, ok := a.byEmail[normalizeEmail(email)]
	a.mu.RUnlock()
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return acc, nil
}

// Settings returns the settings userID saved, or settings.Defaults() with
// RememberSettings false when nothing was saved.
func (a *Accounts) Settings(userID string) settings.ReviewSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.settings[userID]; ok {
		return s
	}
	return settings.Defaults()
}

// SaveSettings replaces the settings of userID.
func (a *Accounts) SaveSettings(userID string, s settings.ReviewSettings) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings[userID] = s
}
