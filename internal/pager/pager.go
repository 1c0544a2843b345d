// Package pager issues searches against the ranking service and accumulates
// an ordered, deduplicated result list with an exclusion cursor.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/shop"
	"github.com/onnwee/shopfinder/internal/tracing"
)

var (
	// ErrSearchFailed wraps transport and backend failures.
	ErrSearchFailed = errors.New("search failed")
	// ErrStale is returned to a caller whose search was superseded by a newer
	// InitialSearch before its response arrived. The response is discarded.
	ErrStale = errors.New("search superseded")
)

// Searcher calls the ranking service.
type Searcher interface {
	SearchShops(ctx context.Context, req shop.SearchRequest) ([]shop.Shop, error)
}

// Query is everything an initial search needs; LoadMore reuses it.
type Query struct {
	Text     string
	Settings settings.ReviewSettings
	Location *geo.Coordinate
	Filter   shop.OpeningFilter
}

// Page is a snapshot of the pager state.
type Page struct {
	Generation uint64
	Query      string
	Shops      []shop.Shop
	Cursor     []string
	Exhausted  bool
	Loading    bool
}

// Config configures a Pager.
type Config struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

// Pager owns the result list of the active search session. Each request is
// tagged with the generation it was sent in; responses for an older
// generation are dropped.
type Pager struct {
	searcher Searcher
	logger   *slog.Logger
	metrics  *Metrics

	mu         sync.Mutex
	generation uint64
	query      *Query
	shops      []shop.Shop
	cursor     []string
	seen       map[string]struct{}
	exhausted  bool
	inFlight   bool
}

// New creates a pager with no active session.
func New(searcher Searcher, config Config) *Pager {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Pager{
		searcher: searcher,
		logger:   config.Logger,
		metrics:  config.Metrics,
		seen:     make(map[string]struct{}),
	}
}

// InitialSearch starts a new session: the list and cursor are cleared, any
// pending request is superseded and a search without exclusions is sent.
// An empty response marks the session exhausted.
func (p *Pager) InitialSearch(ctx context.Context, q Query) (page Page, err error) {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.query = &q
	p.shops = nil
	p.cursor = nil
	p.seen = make(map[string]struct{})
	p.exhausted = false
	p.inFlight = true
	p.mu.Unlock()

	ctx, endSpan := tracing.StartSpan(ctx, "pager.initial_search")
	defer func() { endSpan(ignoreStale(err)) }()
	tracing.SetAttributes(ctx,
		attribute.Int64("search.generation", int64(gen)),
		attribute.Int("search.review_count", q.Settings.ReviewCount.Count()),
		attribute.String("search.location", geo.Coarse(q.Location)),
	)

	req := buildRequest(q, nil)
	start := time.Now()
	results, err := p.searcher.SearchShops(ctx, req)
	elapsed := time.Since(start).Seconds()

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		p.discardLocked(KindInitial, gen, elapsed)
		return p.snapshotLocked(), ErrStale
	}
	p.inFlight = false

	if err != nil {
		// The failed query is not resumable; LoadMore stays a no-op until the
		// next InitialSearch.
		p.query = nil
		p.observe(KindInitial, OutcomeError, elapsed)
		p.logger.Warn("initial search failed", "query", q.Text, "generation", gen, "error", err)
		return p.snapshotLocked(), fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	fresh := p.acceptLocked(results)
	if len(fresh) == 0 {
		p.exhausted = true
		p.observe(KindInitial, OutcomeEmpty, elapsed)
		p.logger.Info("search returned no shops", "query", q.Text, "generation", gen)
		return p.snapshotLocked(), nil
	}

	p.shops = fresh
	p.cursor = shop.PlaceIDs(fresh)
	p.observe(KindInitial, OutcomeOK, elapsed)
	p.logger.Info("search completed",
		"query", q.Text,
		"generation", gen,
		"shops", len(fresh),
		"location", geo.Coarse(q.Location))
	return p.snapshotLocked(), nil
}

// LoadMore fetches the next page of the active session, excluding every
// place already returned. It is a no-op, reported by a false second result,
// when there is no session, the session is exhausted or a request is in
// flight. An empty response marks the session exhausted and leaves the list
// as it was.
func (p *Pager) LoadMore(ctx context.Context) (page Page, sent bool, err error) {
	p.mu.Lock()
	if p.query == nil || p.exhausted || p.inFlight {
		page = p.snapshotLocked()
		p.mu.Unlock()
		return page, false, nil
	}
	p.inFlight = true
	gen := p.generation
	q := *p.query
	exclude := append([]string(nil), p.cursor...)
	p.mu.Unlock()

	ctx, endSpan := tracing.StartSpan(ctx, "pager.load_more")
	defer func() { endSpan(ignoreStale(err)) }()
	tracing.SetAttributes(ctx,
		attribute.Int64("search.generation", int64(gen)),
		attribute.Int("search.excluded", len(exclude)),
	)

	req := buildRequest(q, exclude)
	start := time.Now()
	results, err := p.searcher.SearchShops(ctx, req)
	elapsed := time.Since(start).Seconds()

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		p.discardLocked(KindLoadMore, gen, elapsed)
		return p.snapshotLocked(), true, ErrStale
	}
	p.inFlight = false

	if err != nil {
		p.observe(KindLoadMore, OutcomeError, elapsed)
		p.logger.Warn("load more failed", "query", q.Text, "generation", gen, "error", err)
		return p.snapshotLocked(), true, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	fresh := p.acceptLocked(results)
	if len(fresh) == 0 {
		p.exhausted = true
		p.observe(KindLoadMore, OutcomeEmpty, elapsed)
		p.logger.Info("no more shops", "query", q.Text, "generation", gen, "total", len(p.shops))
		return p.snapshotLocked(), true, nil
	}

	p.shops = append(p.shops, fresh...)
	p.cursor = append(p.cursor, shop.PlaceIDs(fresh)...)
	p.observe(KindLoadMore, OutcomeOK, elapsed)
	p.logger.Info("loaded more shops", "query", q.Text, "generation", gen, "added", len(fresh), "total", len(p.shops))
	return p.snapshotLocked(), true, nil
}

// Reset ends the active session. Any response still in flight becomes stale.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.query = nil
	p.shops = nil
	p.cursor = nil
	p.seen = make(map[string]struct{})
	p.exhausted = false
	p.inFlight = false
}

// Snapshot returns a copy of the current state.
func (p *Pager) Snapshot() Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// acceptLocked filters out places already seen in this session, including
// repeats inside results, and records the rest as seen.
func (p *Pager) acceptLocked(results []shop.Shop) []shop.Shop {
	fresh := make([]shop.Shop, 0, len(results))
	for _, s := range results {
		if s.PlaceID == "" {
			continue
		}
		if _, dup := p.seen[s.PlaceID]; dup {
			continue
		}
		p.seen[s.PlaceID] = struct{}{}
		fresh = append(fresh, s)
	}
	return fresh
}

func (p *Pager) discardLocked(kind string, gen uint64, elapsed float64) {
	p.observe(kind, OutcomeStale, elapsed)
	p.logger.Debug("discarding stale search response",
		"kind", kind,
		"response_generation", gen,
		"current_generation", p.generation)
}

func (p *Pager) snapshotLocked() Page {
	page := Page{
		Generation: p.generation,
		Shops:      append([]shop.Shop(nil), p.shops...),
		Cursor:     append([]string(nil), p.cursor...),
		Exhausted:  p.exhausted,
		Loading:    p.inFlight,
	}
	if p.query != nil {
		page.Query = p.query.Text
	}
	return page
}

func (p *Pager) observe(kind, outcome string, seconds float64) {
	if p.metrics != nil {
		p.metrics.Observe(kind, outcome, seconds)
	}
}

func buildRequest(q Query, exclude []string) shop.SearchRequest {
	req := shop.SearchRequest{
		Query:           q.Text,
		Location:        q.Location,
		ExcludePlaceIDs: exclude,
	}
	q.Settings.Apply(&req)
	req.Opening = q.Filter
	return req
}

// ignoreStale keeps superseded searches from being recorded as span errors.
func ignoreStale(err error) error {
	if errors.Is(err, ErrStale) {
		return nil
	}
	return err
}
