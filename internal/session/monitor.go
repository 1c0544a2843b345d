// Package session tracks the locally stored session token and keeps its
// validity confirmed against the identity backend.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/shopfinder/internal/tracing"
)

// State is the read model exposed to consumers. Valid starts optimistically
// true when a token appears; Confirmed becomes true only after the backend
// has answered for exactly this token.
type State struct {
	Token     string
	Valid     bool
	Confirmed bool
}

// Usable reports whether the state is a confirmed valid session.
func (s State) Usable() bool {
	return s.Token != "" && s.Valid && s.Confirmed
}

// Verifier asks the identity backend whether a token is still valid.
type Verifier interface {
	VerifySession(ctx context.Context, token string) (bool, error)
}

// DefaultPollInterval is how often the token store is re-read.
const DefaultPollInterval = time.Second

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Interval between token store reads.
	Interval time.Duration
	// Timeout bounds each verification call; zero leaves it to the transport.
	Timeout time.Duration
	// Logger for monitor activity.
	Logger *slog.Logger
	// Metrics for verification tracking (optional).
	Metrics *Metrics
	// OnChange is called after every state change. It runs on the checking
	// goroutine and must not call Check, Login or Logout.
	OnChange func(State)
}

// Monitor holds the session state. Only the monitor writes it; consumers read
// Snapshot, Token and IsValid.
type Monitor struct {
	config   MonitorConfig
	store    TokenStore
	verifier Verifier

	checkMu sync.Mutex

	mu          sync.Mutex
	state       State
	observed    string
	initialized bool

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor creates a monitor over store and verifier.
func NewMonitor(config MonitorConfig, store TokenStore, verifier Verifier) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Monitor{
		config:   config,
		store:    store,
		verifier: verifier,
	}
}

// Start reads and verifies the token immediately, then polls the store every
// Interval until Stop is called or ctx is cancelled. Returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	if m.running {
		m.runMu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.runMu.Unlock()

	go m.run(ctx)
}

// Stop ends polling and waits for the loop to exit. An in-flight
// verification is abandoned without changing state.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.runMu.Unlock()

	close(stopCh)
	<-doneCh

	m.runMu.Lock()
	m.running = false
	m.runMu.Unlock()
}

// IsRunning returns whether the poll loop is active.
func (m *Monitor) IsRunning() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

func (m *Monitor) run(parent context.Context) {
	defer close(m.doneCh)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			m.config.Logger.Info("session monitor stopping")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	if err := m.Check(ctx); err != nil {
		m.config.Logger.Warn("session token check failed", "error", err)
	}
}

// Check reads the token store once and verifies the token if it changed
// since the last read. Calls are serialized.
func (m *Monitor) Check(ctx context.Context) error {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	token, err := m.store.Load(ctx)
	if err != nil {
		// An unreadable store leaves the session in doubt: fail closed and
		// verify again once a read succeeds.
		m.mu.Lock()
		m.initialized = false
		m.observed = ""
		changed := m.setLocked(State{Confirmed: true})
		m.mu.Unlock()
		m.notify(changed)
		return fmt.Errorf("failed to read session token: %w", err)
	}

	m.mu.Lock()
	if m.initialized && token == m.observed {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.observed = token
	if token == "" {
		changed := m.setLocked(State{})
		m.mu.Unlock()
		m.notify(changed)
		return nil
	}
	changed := m.setLocked(State{Token: token, Valid: true})
	m.mu.Unlock()
	m.notify(changed)

	m.verify(ctx, token)
	return nil
}

// verify performs the round-trip for token and applies the answer if token
// is still current. Errors fail closed.
func (m *Monitor) verify(ctx context.Context, token string) {
	vctx := ctx
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	vctx, endSpan := tracing.StartSpan(vctx, "session.verify")
	ok, err := m.verifier.VerifySession(vctx, token)
	endSpan(err)
	if ctx.Err() != nil {
		// Shutting down; leave the stored token for the next run.
		return
	}

	result := ResultValid
	switch {
	case err != nil:
		result = ResultError
		m.config.Logger.Warn("session verification failed, treating session as invalid", "error", err)
	case !ok:
		result = ResultInvalid
		m.config.Logger.Info("session token rejected by identity backend")
	}

	cleared := true
	if result != ResultValid {
		if err := m.clearIfCurrent(ctx, token); err != nil {
			cleared = false
			m.config.Logger.Warn("failed to clear rejected session token", "error", err)
		}
	}

	m.mu.Lock()
	if m.state.Token != token {
		m.mu.Unlock()
		m.countVerification(ResultStale)
		return
	}
	var changed *State
	if result == ResultValid {
		changed = m.setLocked(State{Token: token, Valid: true, Confirmed: true})
	} else {
		// A token that could not be cleared stays observed, so it is not
		// verified again until its value changes.
		if cleared && m.observed == token {
			m.observed = ""
		}
		changed = m.setLocked(State{Confirmed: true})
	}
	m.mu.Unlock()

	m.countVerification(result)
	m.notify(changed)
}

// clearIfCurrent erases the stored token only if it is still the rejected
// one, so a login that happened meanwhile survives.
func (m *Monitor) clearIfCurrent(ctx context.Context, token string) error {
	current, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if current != token {
		return nil
	}
	return m.store.Clear(ctx)
}

// setLocked replaces the state and returns it when it differs. m.mu must be held.
func (m *Monitor) setLocked(next State) *State {
	if m.state == next {
		return nil
	}
	m.state = next
	if m.config.Metrics != nil {
		m.config.Metrics.SetValid(next.Usable())
	}
	return &next
}

func (m *Monitor) notify(changed *State) {
	if changed == nil || m.config.OnChange == nil {
		return
	}
	m.config.OnChange(*changed)
}

func (m *Monitor) countVerification(result string) {
	if m.config.Metrics != nil {
		m.config.Metrics.IncVerification(result)
	}
}

// Login stores a freshly issued token and verifies it right away.
func (m *Monitor) Login(ctx context.Context, token string) error {
	if err := m.store.Save(ctx, token); err != nil {
		return err
	}
	return m.Check(ctx)
}

// Logout removes the stored token.
func (m *Monitor) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	return m.Check(ctx)
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the current token, "" when absent.
func (m *Monitor) Token() string {
	return m.Snapshot().Token
}

// IsValid reports whether the current token has been confirmed by the
// backend since it last changed. Unconfirmed tokens read as invalid.
func (m *Monitor) IsValid() bool {
	return m.Snapshot().Usable()
}
