package geo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrLocationUnavailable is returned by locators that cannot produce a
// position (permission denied, no fix, timeout).
var ErrLocationUnavailable = errors.New("location unavailable")

// Locator acquires the platform's current position.
type Locator interface {
	CurrentPosition(ctx context.Context) (Coordinate, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Coordinate, error)

// CurrentPosition calls f(ctx).
func (f LocatorFunc) CurrentPosition(ctx context.Context) (Coordinate, error) {
	return f(ctx)
}

// StaticLocator always reports the same coordinate.
type StaticLocator struct {
	Position Coordinate
}

// CurrentPosition returns the fixed position.
func (s StaticLocator) CurrentPosition(context.Context) (Coordinate, error) {
	return s.Position, nil
}

// UnavailableLocator always fails, modelling a denied permission.
type UnavailableLocator struct{}

// CurrentPosition returns ErrLocationUnavailable.
func (UnavailableLocator) CurrentPosition(context.Context) (Coordinate, error) {
	return Coordinate{}, ErrLocationUnavailable
}

// Probe requests the current position exactly once. Failure is recorded and
// never retried; callers keep working without a location.
type Probe struct {
	locator Locator
	logger  *slog.Logger

	once sync.Once
	done chan struct{}

	mu       sync.RWMutex
	location *Coordinate
	err      error
}

// NewProbe creates a probe around locator.
func NewProbe(locator Locator, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	if locator == nil {
		locator = UnavailableLocator{}
	}
	return &Probe{
		locator: locator,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start issues the position request in the background. Only the first call
// has any effect.
func (p *Probe) Start(ctx context.Context) {
	p.once.Do(func() {
		go p.acquire(ctx)
	})
}

func (p *Probe) acquire(ctx context.Context) {
	defer close(p.done)

	c, err := p.locator.CurrentPosition(ctx)
	if err == nil && !c.Valid() {
		err = ErrLocationUnavailable
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.err = err
		p.logger.Info("location unavailable, continuing without it", "error", err)
		return
	}
	p.location = &c
	p.logger.Debug("location acquired", "geohash", Encode(c, DefaultPrecision))
}

// Location returns the acquired coordinate. The second result is false while
// the request is pending or after it failed.
func (p *Probe) Location() (Coordinate, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.location == nil {
		return Coordinate{}, false
	}
	return *p.location, true
}

// Err returns the failure recorded by the request, if any.
func (p *Probe) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Done is closed once the request has resolved either way.
func (p *Probe) Done() <-chan struct{} {
	return p.done
}
