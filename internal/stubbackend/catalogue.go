// Package stubbackend is an in-memory ranking and identity service speaking
// the same JSON protocol as the production backend. It serves local
// development and the integration tests of the client packages.
package stubbackend

import (
	"sort"
	"strings"
	"time"

	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/shop"
)

// Hours is the opening window of one weekday. A Close at or before Open
// means the shop stays open past midnight.
type Hours struct {
	Open  shop.Clock
	Close shop.Clock
}

// Listing is one catalogue entry.
type Listing struct {
	Shop     shop.Shop
	Products []string
	// Week holds the opening hours per weekday. A missing weekday is a
	// closing day; an empty Week means the shop never closes.
	Week map[time.Weekday]Hours
}

// OpenFor reports whether the listing is open on the filter's date and, for
// date-time filters, at its time of day.
func (l Listing) OpenFor(f shop.OpeningFilter) bool {
	if !f.Active() || len(l.Week) == 0 {
		return true
	}
	h, ok := l.Week[f.Date.Weekday()]
	if !ok {
		return false
	}
	if f.Kind != shop.FilterDateTime || f.Time == nil {
		return true
	}

	at := secondsOf(*f.Time)
	open, closing := secondsOf(h.Open), secondsOf(h.Close)
	if closing <= open {
		return at >= open || at < closing
	}
	return at >= open && at < closing
}

// Stocks reports whether any product name contains the query, or the query
// contains a product name. Matching ignores case.
func (l Listing) Stocks(product string) bool {
	product = strings.ToLower(strings.TrimSpace(product))
	if product == "" {
		return false
	}
	for _, p := range l.Products {
		p = strings.ToLower(p)
		if strings.Contains(p, product) || strings.Contains(product, p) {
			return true
		}
	}
	return false
}

func secondsOf(c shop.Clock) int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Query selects listings from the catalogue.
type Query struct {
	Product string
	// Origin is the searcher's position. Without it RadiusKm is ignored.
	Origin *geo.Coordinate
	// RadiusKm limits results around Origin; zero means no limit.
	RadiusKm float64
	Filter   shop.OpeningFilter
	Exclude  []string
	Limit    int
}

// Catalogue is an immutable set of listings.
type Catalogue struct {
	listings []Listing
	byID     map[string]int
}

// NewCatalogue indexes listings by place id. Later duplicates are dropped.
func NewCatalogue(listings []Listing) *Catalogue {
	c := &Catalogue{byID: make(map[string]int, len(listings))}
	for _, l := range listings {
		if _, dup := c.byID[l.Shop.PlaceID]; dup || l.Shop.PlaceID == "" {
			continue
		}
		c.byID[l.Shop.PlaceID] = len(c.listings)
		c.listings = append(c.listings, l)
	}
	return c
}

// Len returns the number of listings.
func (c *Catalogue) Len() int {
	return len(c.listings)
}

// Lookup returns the listing with the given place id.
func (c *Catalogue) Lookup(placeID string) (Listing, bool) {
	i, ok := c.byID[placeID]
	if !ok {
		return Listing{}, false
	}
	return c.listings[i], true
}

// Search returns the matching shops best first: by predicted rating, then by
// distance from the origin, then by place id. Excluded place ids never
// appear.
func (c *Catalogue) Search(q Query) []shop.Shop {
	exclude := make(map[string]struct{}, len(q.Exclude))
	for _, id := range q.Exclude {
		exclude[id] = struct{}{}
	}

	type hit struct {
		shop     shop.Shop
		distance float64
	}
	var hits []hit
	for _, l := range c.listings {
		if _, skip := exclude[l.Shop.PlaceID]; skip {
			continue
		}
		if !l.Stocks(q.Product) || !l.OpenFor(q.Filter) {
			continue
		}
		var d float64
		if q.Origin != nil {
			d = geo.DistanceKm(*q.Origin, l.Shop.Location)
			if q.RadiusKm > 0 && d > q.RadiusKm {
				continue
			}
		}
		hits = append(hits, hit{shop: l.Shop, distance: d})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.shop.PredictedRating != b.shop.PredictedRating {
			return a.shop.PredictedRating > b.shop.PredictedRating
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.shop.PlaceID < b.shop.PlaceID
	})

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]shop.Shop, len(hits))
	for i, h := range hits {
		out[i] = h.shop
	}
	return out
}
