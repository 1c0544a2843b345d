// Package finder is the shop-finder screen: it wires the location probe, the
// session monitor, review settings, the search gate, the result pager and the
// map view together and turns every failure into one dismissible notice.
package finder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/shopfinder/internal/gate"
	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/mapview"
	"github.com/onnwee/shopfinder/internal/pager"
	"github.com/onnwee/shopfinder/internal/session"
	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/shop"
)

// ErrNotStarted is returned by Stop before Start.
var ErrNotStarted = errors.New("finder not started")

// Backend is every backend call the screen makes.
type Backend interface {
	session.Verifier
	settings.Backend
	pager.Searcher
	Login(ctx context.Context, email, password string) (string, error)
	ExplainShop(ctx context.Context, placeID string) (shop.Explanation, error)
	ExplainReview(ctx context.Context, review string) (shop.Explanation, error)
}

// Publisher receives a View after every change (optional).
type Publisher interface {
	Publish(event any)
}

// Config configures a Finder.
type Config struct {
	// Backend is required.
	Backend Backend
	// TokenStore is required.
	TokenStore session.TokenStore
	// Locator defaults to geo.UnavailableLocator.
	Locator   geo.Locator
	Navigator gate.Navigator
	Publisher Publisher

	PollInterval  time.Duration
	VerifyTimeout time.Duration

	MapFallback       geo.Coordinate
	DirectionsBaseURL string

	Logger         *slog.Logger
	PagerMetrics   *pager.Metrics
	SessionMetrics *session.Metrics
}

// Finder is the screen's controller. Its methods may be called from any
// goroutine.
type Finder struct {
	backend   Backend
	publisher Publisher
	logger    *slog.Logger

	probe    *geo.Probe
	monitor  *session.Monitor
	settings *settings.Store
	pager    *pager.Pager
	gate     *gate.Gate
	view     *mapview.View

	mu         sync.Mutex
	notices    []Notice
	nextNotice uint64
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	wg         sync.WaitGroup
}

// New builds the screen. Nothing runs until Start.
func New(cfg Config) (*Finder, error) {
	if cfg.Backend == nil {
		return nil, errors.New("finder: backend is required")
	}
	if cfg.TokenStore == nil {
		return nil, errors.New("finder: token store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Finder{
		backend:   cfg.Backend,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		ctx:       context.Background(),
	}

	f.probe = geo.NewProbe(cfg.Locator, cfg.Logger.With("component", "geo"))
	f.monitor = session.NewMonitor(session.MonitorConfig{
		Interval: cfg.PollInterval,
		Timeout:  cfg.VerifyTimeout,
		Logger:   cfg.Logger.With("component", "session"),
		Metrics:  cfg.SessionMetrics,
		OnChange: f.onSessionChange,
	}, cfg.TokenStore, cfg.Backend)
	f.settings = settings.NewStore(cfg.Backend, f.monitor, cfg.Logger.With("component", "settings"))
	f.pager = pager.New(cfg.Backend, pager.Config{
		Logger:  cfg.Logger.With("component", "pager"),
		Metrics: cfg.PagerMetrics,
	})
	f.gate = gate.New(f.settings, f.monitor, f.pager, f.probe, gate.Config{
		Logger:    cfg.Logger.With("component", "gate"),
		Navigator: cfg.Navigator,
	})
	f.view = mapview.New(mapview.Config{
		Fallback:          cfg.MapFallback,
		DirectionsBaseURL: cfg.DirectionsBaseURL,
	})
	return f, nil
}

// Start requests the location once and starts the session monitor. The
// first confirmed valid session hydrates the review settings.
func (f *Finder) Start(ctx context.Context) {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return
	}
	f.started = true
	f.ctx, f.cancel = context.WithCancel(ctx)
	runCtx := f.ctx
	f.mu.Unlock()

	f.probe.Start(runCtx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		select {
		case <-f.probe.Done():
			if loc, ok := f.probe.Location(); ok {
				f.view.SetOrigin(loc)
				f.publish()
			}
		case <-runCtx.Done():
		}
	}()

	f.monitor.Start(runCtx)
}

// Stop tears the screen down: polling stops and background work is
// abandoned. Requests already sent are not cancelled on the wire; their
// results are simply ignored.
func (f *Finder) Stop() error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return ErrNotStarted
	}
	f.started = false
	cancel := f.cancel
	f.mu.Unlock()

	f.monitor.Stop()
	cancel()
	f.wg.Wait()
	return nil
}

func (f *Finder) runContext() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctx
}

// onSessionChange runs on the monitor's goroutine after every state change.
func (f *Finder) onSessionChange(state session.State) {
	f.logger.Debug("session state changed", "present", state.Token != "", "valid", state.Valid, "confirmed", state.Confirmed)
	if state.Usable() {
		called, err := f.settings.Hydrate(f.runContext())
		if err != nil {
			f.raise(NoticeSettingsLoadFailed, err)
		} else if called {
			f.logger.Info("review settings loaded for session")
		}
	}
	f.publish()
}

// Search triggers a search for query.
func (f *Finder) Search(ctx context.Context, query string) gate.Outcome {
	out := f.gate.TriggerSearch(ctx, query)
	f.afterSearch(out)
	return out
}

// OpenSettings opens the settings dialog.
func (f *Finder) OpenSettings() gate.Outcome {
	out := f.gate.OpenSettings()
	f.publish()
	return out
}

// ConfirmSettings confirms the dialog; a pending search runs with the new
// settings.
func (f *Finder) ConfirmSettings(ctx context.Context, next settings.ReviewSettings) gate.Outcome {
	out := f.gate.ConfirmSettings(ctx, next)
	if out.Page != nil {
		f.afterSearch(out)
		return out
	}
	switch {
	case out.Err == nil, errors.Is(out.Err, gate.ErrInvalidTransition):
	case errors.Is(out.Err, settings.ErrPersistFailed):
		f.raise(NoticeSettingsSaveFailed, out.Err)
	default:
		f.raise(NoticeInvalidInput, out.Err)
	}
	f.publish()
	return out
}

// CancelSettings closes the dialog and drops any pending search.
func (f *Finder) CancelSettings() gate.Outcome {
	out := f.gate.CancelSettings()
	f.publish()
	return out
}

// DismissLogin closes the login prompt.
func (f *Finder) DismissLogin() gate.Outcome {
	out := f.gate.DismissLogin()
	f.publish()
	return out
}

// AcceptLogin hands over to the login flow.
func (f *Finder) AcceptLogin(ctx context.Context) gate.Outcome {
	out := f.gate.AcceptLogin(ctx)
	if out.Err != nil && !errors.Is(out.Err, gate.ErrInvalidTransition) {
		f.raise(NoticeSessionFailed, out.Err)
	}
	f.publish()
	return out
}

func (f *Finder) afterSearch(out gate.Outcome) {
	switch {
	case out.Err == nil:
	case errors.Is(out.Err, pager.ErrStale), errors.Is(out.Err, gate.ErrInvalidTransition):
	case errors.Is(out.Err, gate.ErrEmptyQuery):
		f.raise(NoticeInvalidInput, out.Err)
	case errors.Is(out.Err, settings.ErrPersistFailed):
		f.raise(NoticeSettingsSaveFailed, out.Err)
	default:
		f.raise(NoticeSearchFailed, out.Err)
	}
	if out.Page != nil && !errors.Is(out.Err, pager.ErrStale) {
		f.view.Sync(f.pager.Snapshot().Shops)
	}
	f.publish()
}

// LoadMore fetches the next page. The second result is false when nothing
// was sent because the list is exhausted, empty or already loading.
func (f *Finder) LoadMore(ctx context.Context) (pager.Page, bool, error) {
	page, sent, err := f.pager.LoadMore(ctx)
	switch {
	case errors.Is(err, pager.ErrStale):
		return f.pager.Snapshot(), sent, nil
	case err != nil:
		f.raise(NoticeLoadMoreFailed, err)
	default:
		f.view.Sync(page.Shops)
	}
	f.publish()
	return page, sent, err
}

// Results returns the current result list.
func (f *Finder) Results() pager.Page {
	return f.pager.Snapshot()
}

// Select selects the i-th listed shop (zero based) and recentres the map.
func (f *Finder) Select(i int) (shop.Shop, error) {
	s, err := f.view.SelectIndex(i)
	if err != nil {
		return shop.Shop{}, err
	}
	f.publish()
	return s, nil
}

// Explain fetches the token weights behind a shop's predicted rating,
// strongest first.
func (f *Finder) Explain(ctx context.Context, s shop.Shop) (shop.Explanation, error) {
	e, err := f.backend.ExplainShop(ctx, s.PlaceID)
	if err != nil {
		f.raise(NoticeExplainFailed, err)
		f.publish()
		return nil, err
	}
	return e.Sorted(), nil
}

// ExplainReview explains an arbitrary review text.
func (f *Finder) ExplainReview(ctx context.Context, review string) (shop.Explanation, error) {
	e, err := f.backend.ExplainReview(ctx, review)
	if err != nil {
		f.raise(NoticeExplainFailed, err)
		f.publish()
		return nil, err
	}
	return e.Sorted(), nil
}

// Login stores an externally issued session token and verifies it.
func (f *Finder) Login(ctx context.Context, token string) error {
	if err := f.monitor.Login(ctx, token); err != nil {
		f.raise(NoticeSessionFailed, err)
		f.publish()
		return err
	}
	return nil
}

// LoginWithPassword signs in against the identity service and stores the
// issued token.
func (f *Finder) LoginWithPassword(ctx context.Context, email, password string) error {
	token, err := f.backend.Login(ctx, email, password)
	if err != nil {
		f.raise(NoticeSessionFailed, err)
		f.publish()
		return err
	}
	return f.Login(ctx, token)
}

// Logout removes the stored token. Review settings stay as they are until
// cleared.
func (f *Finder) Logout(ctx context.Context) error {
	if err := f.monitor.Logout(ctx); err != nil {
		f.raise(NoticeSessionFailed, err)
		f.publish()
		return err
	}
	return nil
}

// ClearSettings forgets confirmed settings.
func (f *Finder) ClearSettings() {
	f.settings.Clear()
	f.publish()
}

// Session returns the session read model.
func (f *Finder) Session() session.State {
	return f.monitor.Snapshot()
}

// Settings returns the current review settings and whether they are known.
func (f *Finder) Settings() (settings.ReviewSettings, bool) {
	return f.settings.Current(), f.settings.Known()
}

// GateState returns the search gate state.
func (f *Finder) GateState() gate.State {
	return f.gate.State()
}

// Location returns the user's position when it was acquired.
func (f *Finder) Location() (geo.Coordinate, bool) {
	return f.probe.Location()
}

// Map returns the map view model.
func (f *Finder) Map() *mapview.View {
	return f.view
}

// Notices returns the notices not yet dismissed, oldest first.
func (f *Finder) Notices() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notice(nil), f.notices...)
}

// DismissAll is the notice id that Dismiss treats as every notice.
const DismissAll uint64 = 0

// Dismiss removes the notice with id and reports whether it existed. With
// DismissAll it removes every notice and reports whether there were any.
func (f *Finder) Dismiss(id uint64) bool {
	f.mu.Lock()
	found := false
	if id == DismissAll {
		found = len(f.notices) > 0
		f.notices = nil
	}
	for i, n := range f.notices {
		if n.ID == id {
			f.notices = append(f.notices[:i], f.notices[i+1:]...)
			found = true
			break
		}
	}
	f.mu.Unlock()
	if found {
		f.publish()
	}
	return found
}

// raise records exactly one notice for a failed operation.
func (f *Finder) raise(kind NoticeKind, err error) {
	f.mu.Lock()
	f.nextNotice++
	n := Notice{
		ID:      f.nextNotice,
		Kind:    kind,
		Message: noticeMessage(kind, err),
		At:      time.Now(),
		Err:     err,
	}
	f.notices = append(f.notices, n)
	f.mu.Unlock()

	f.logger.Warn("operation failed", "notice", string(kind), "notice_id", n.ID, "error", err)
}
