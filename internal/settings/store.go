package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store errors.
var (
	// ErrNoSession is returned when remembered settings would have to be
	// written without a confirmed session.
	ErrNoSession = errors.New("remembered settings require a valid session")
	// ErrHydrateFailed wraps a failure to read settings from the backend.
	ErrHydrateFailed = errors.New("failed to load review settings")
	// ErrPersistFailed wraps a failure to write settings to the backend.
	ErrPersistFailed = errors.New("failed to save review settings")
)

// Backend reads and writes remembered settings for a session.
type Backend interface {
	GetReviewSettings(ctx context.Context, token string) (ReviewSettings, error)
	UpdateReviewSettings(ctx context.Context, token string, s ReviewSettings) error
}

// Session is the read model of the session monitor.
type Session interface {
	Token() string
	IsValid() bool
}

// Store owns the current ReviewSettings. Settings change only through
// Confirm, Hydrate and Clear; writes are last-write-wins.
type Store struct {
	backend Backend
	session Session
	logger  *slog.Logger

	mu            sync.Mutex
	current       ReviewSettings
	known         bool
	version       uint64
	hydratedToken string
}

// NewStore creates a store holding Defaults().
func NewStore(backend Backend, session Session, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		session: session,
		logger:  logger,
		current: Defaults(),
	}
}

// Current returns the settings applied to searches.
func (s *Store) Current() ReviewSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Known reports whether review count and coverage came from a hydration or
// an explicit confirmation, meaning a search need not ask for them again.
func (s *Store) Known() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known
}

// Hydrate loads remembered settings for the current session. It runs at most
// once per session token and only while the session is confirmed valid; the
// first result reports whether a backend call was made. A confirmation that
// lands while the call is in flight wins over the hydrated values.
func (s *Store) Hydrate(ctx context.Context) (bool, error) {
	if !s.session.IsValid() {
		return false, nil
	}
	token := s.session.Token()

	s.mu.Lock()
	if token == "" || token == s.hydratedToken {
		s.mu.Unlock()
		return false, nil
	}
	s.hydratedToken = token
	startVersion := s.version
	s.mu.Unlock()

	got, err := s.backend.GetReviewSettings(ctx, token)
	if err != nil {
		s.logger.Warn("review settings hydration failed", "error", err)
		return true, fmt.Errorf("%w: %w", ErrHydrateFailed, err)
	}
	if err := got.Validate(); err != nil {
		s.logger.Warn("backend returned invalid review settings", "error", err)
		return true, fmt.Errorf("%w: %w", ErrHydrateFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != startVersion {
		s.logger.Debug("discarding hydrated settings superseded by a local change")
		return true, nil
	}
	s.current = got
	s.known = got.RememberSettings
	s.logger.Info("review settings hydrated",
		"review_count", got.ReviewCount.Count(),
		"coverage", got.Coverage.String(),
		"remember", got.RememberSettings)
	return true, nil
}

// Confirm adopts next as the current settings. Remembered settings are first
// written to the backend, which requires a valid session; on ErrNoSession or
// a failed write nothing changes locally.
func (s *Store) Confirm(ctx context.Context, next ReviewSettings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	if next.RememberSettings {
		if !s.session.IsValid() {
			return ErrNoSession
		}
		if err := s.backend.UpdateReviewSettings(ctx, s.session.Token(), next); err != nil {
			s.logger.Warn("review settings persist failed", "error", err)
			return fmt.Errorf("%w: %w", ErrPersistFailed, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
	s.known = true
	s.version++
	return nil
}

// Clear forgets confirmed settings so the next search asks again.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Defaults()
	s.known = false
	s.version++
}
