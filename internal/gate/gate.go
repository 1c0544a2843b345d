// Package gate decides, for each search trigger, whether the search can run
// now, must wait for the user to confirm review settings, or needs a login.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/pager"
	"github.com/onnwee/shopfinder/internal/settings"
)

var (
	// ErrInvalidTransition is returned for events the current state does not accept.
	ErrInvalidTransition = errors.New("event not allowed in current state")
	// ErrEmptyQuery is returned when a search is triggered without product text.
	ErrEmptyQuery = errors.New("search query is empty")
)

// State of the gate.
type State int

const (
	Idle State = iota
	AwaitingSettingsConfirmation
	AwaitingLogin
	Searching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSettingsConfirmation:
		return "awaiting_settings_confirmation"
	case AwaitingLogin:
		return "awaiting_login"
	case Searching:
		return "searching"
	default:
		return "unknown"
	}
}

// PendingAction records what happens after the settings dialog is confirmed.
type PendingAction int

const (
	PendingNone PendingAction = iota
	PendingSearch
)

func (p PendingAction) String() string {
	if p == PendingSearch {
		return "search"
	}
	return "none"
}

// SettingsStore is the subset of settings.Store the gate needs.
type SettingsStore interface {
	Current() settings.ReviewSettings
	Known() bool
	Confirm(ctx context.Context, next settings.ReviewSettings) error
}

// Session reports whether a confirmed valid session exists.
type Session interface {
	IsValid() bool
}

// Searcher starts a new search session.
type Searcher interface {
	InitialSearch(ctx context.Context, q pager.Query) (pager.Page, error)
}

// Locator supplies the device position when one is known.
type Locator interface {
	Location() (geo.Coordinate, bool)
}

// Navigator hands the user over to the authentication flow.
type Navigator interface {
	NavigateToLogin(ctx context.Context) error
}

// Outcome is the result of delivering one event to the gate.
type Outcome struct {
	State State
	// Page is set when the event ran a search.
	Page *pager.Page
	Err  error
}

// Config configures a Gate.
type Config struct {
	Logger    *slog.Logger
	Navigator Navigator
}

// Gate is the search gate state machine. Events may be delivered from any
// goroutine; searches and settings persistence run without the lock held.
type Gate struct {
	store     SettingsStore
	session   Session
	searcher  Searcher
	locator   Locator
	navigator Navigator
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	pending PendingAction
	query   string
	// searchSeq identifies the newest search; older ones do not touch state.
	searchSeq uint64
}

// New creates a gate in the Idle state. locator may be nil.
func New(store SettingsStore, session Session, searcher Searcher, locator Locator, config Config) *Gate {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Gate{
		store:     store,
		session:   session,
		searcher:  searcher,
		locator:   locator,
		navigator: config.Navigator,
		logger:    config.Logger,
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the pending action and the query it belongs to.
func (g *Gate) Pending() (PendingAction, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.query
}

// TriggerSearch handles the user pressing search. Searches with remembered
// settings need a valid session; searches with unknown settings wait for the
// settings dialog. A trigger while Searching supersedes the running search.
func (g *Gate) TriggerSearch(ctx context.Context, query string) Outcome {
	query = strings.TrimSpace(query)

	g.mu.Lock()
	if g.state != Idle && g.state != Searching {
		return g.rejectLocked("trigger_search")
	}
	if query == "" {
		state := g.state
		g.mu.Unlock()
		return Outcome{State: state, Err: ErrEmptyQuery}
	}

	current := g.store.Current()
	switch {
	case current.RememberSettings && !g.session.IsValid():
		g.moveLocked(AwaitingLogin, PendingSearch, query)
		g.mu.Unlock()
		g.logger.Info("search requires login", "query", query)
		return Outcome{State: AwaitingLogin}
	case g.store.Known():
		return g.searchLocked(ctx, query, current)
	default:
		g.moveLocked(AwaitingSettingsConfirmation, PendingSearch, query)
		g.mu.Unlock()
		return Outcome{State: AwaitingSettingsConfirmation}
	}
}

// OpenSettings opens the settings dialog without scheduling a search.
func (g *Gate) OpenSettings() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Idle && g.state != AwaitingSettingsConfirmation {
		return g.rejectHeldLocked("open_settings")
	}
	g.moveLocked(AwaitingSettingsConfirmation, PendingNone, "")
	return Outcome{State: g.state}
}

// ConfirmSettings applies the settings chosen in the dialog. Remembering
// settings without a valid session moves to AwaitingLogin and persists
// nothing. A failed persist leaves the dialog open. Otherwise the settings
// are adopted and the pending search, if any, runs.
func (g *Gate) ConfirmSettings(ctx context.Context, next settings.ReviewSettings) Outcome {
	g.mu.Lock()
	if g.state != AwaitingSettingsConfirmation {
		return g.rejectLocked("confirm_settings")
	}
	if err := next.Validate(); err != nil {
		g.mu.Unlock()
		return Outcome{State: AwaitingSettingsConfirmation, Err: err}
	}
	if next.RememberSettings && !g.session.IsValid() {
		g.moveLocked(AwaitingLogin, g.pending, g.query)
		g.mu.Unlock()
		g.logger.Info("remembered settings require login")
		return Outcome{State: AwaitingLogin}
	}
	g.mu.Unlock()

	err := g.store.Confirm(ctx, next)

	g.mu.Lock()
	if g.state != AwaitingSettingsConfirmation {
		// Cancelled while the settings were being persisted.
		state := g.state
		g.mu.Unlock()
		return Outcome{State: state, Err: err}
	}
	if errors.Is(err, settings.ErrNoSession) {
		g.moveLocked(AwaitingLogin, g.pending, g.query)
		g.mu.Unlock()
		return Outcome{State: AwaitingLogin}
	}
	if err != nil {
		g.mu.Unlock()
		g.logger.Warn("settings confirmation failed", "error", err)
		return Outcome{State: AwaitingSettingsConfirmation, Err: err}
	}

	if g.pending == PendingSearch {
		return g.searchLocked(ctx, g.query, g.store.Current())
	}
	g.moveLocked(Idle, PendingNone, "")
	g.mu.Unlock()
	return Outcome{State: Idle}
}

// CancelSettings closes the settings dialog and drops any pending search.
func (g *Gate) CancelSettings() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != AwaitingSettingsConfirmation {
		return g.rejectHeldLocked("cancel_settings")
	}
	g.moveLocked(Idle, PendingNone, "")
	return Outcome{State: Idle}
}

// DismissLogin closes the login prompt without searching.
func (g *Gate) DismissLogin() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != AwaitingLogin {
		return g.rejectHeldLocked("dismiss_login")
	}
	g.moveLocked(Idle, PendingNone, "")
	return Outcome{State: Idle}
}

// AcceptLogin hands over to the authentication flow and returns to Idle.
// The user re-initiates the search afterwards.
func (g *Gate) AcceptLogin(ctx context.Context) Outcome {
	g.mu.Lock()
	if g.state != AwaitingLogin {
		return g.rejectLocked("accept_login")
	}
	g.moveLocked(Idle, PendingNone, "")
	g.mu.Unlock()

	var err error
	if g.navigator != nil {
		err = g.navigator.NavigateToLogin(ctx)
	}
	return Outcome{State: Idle, Err: err}
}

// searchLocked moves to Searching and runs the search. It is entered with
// g.mu held and returns with it released.
func (g *Gate) searchLocked(ctx context.Context, query string, current settings.ReviewSettings) Outcome {
	g.searchSeq++
	seq := g.searchSeq
	g.moveLocked(Searching, PendingNone, "")
	g.mu.Unlock()

	q := pager.Query{
		Text:     query,
		Settings: current,
		Filter:   current.Opening,
	}
	if g.locator != nil {
		if loc, ok := g.locator.Location(); ok {
			q.Location = &loc
		}
	}

	page, err := g.searcher.InitialSearch(ctx, q)

	g.mu.Lock()
	if seq == g.searchSeq && g.state == Searching {
		g.state = Idle
	}
	state := g.state
	g.mu.Unlock()

	return Outcome{State: state, Page: &page, Err: err}
}

func (g *Gate) moveLocked(state State, pending PendingAction, query string) {
	if g.state != state {
		g.logger.Debug("gate transition", "from", g.state.String(), "to", state.String(), "pending", pending.String())
	}
	g.state = state
	g.pending = pending
	g.query = query
}

// rejectLocked releases g.mu.
func (g *Gate) rejectLocked(event string) Outcome {
	out := g.rejectHeldLocked(event)
	g.mu.Unlock()
	return out
}

func (g *Gate) rejectHeldLocked(event string) Outcome {
	g.logger.Debug("gate event rejected", "event", event, "state", g.state.String())
	return Outcome{State: g.state, Err: ErrInvalidTransition}
}
