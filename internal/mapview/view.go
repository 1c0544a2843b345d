// Package mapview keeps the map centre and the selected shop in step with
// the result list.
package mapview

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/shop"
)

// DefaultDirectionsBaseURL is the Google Maps directions endpoint.
const DefaultDirectionsBaseURL = "https://www.google.com/maps/dir/"

// Config configures a View.
type Config struct {
	// Fallback is the centre used when neither an origin nor any shop is known.
	Fallback          geo.Coordinate
	DirectionsBaseURL string
}

// View is the map/list view model. Its only own state is the selected shop;
// the centre follows the selection, the origin or the first listed shop.
type View struct {
	fallback       geo.Coordinate
	directionsBase string

	mu       sync.RWMutex
	origin   *geo.Coordinate
	shops    []shop.Shop
	selected *shop.Shop
}

// New creates an empty view.
func New(config Config) *View {
	if config.DirectionsBaseURL == "" {
		config.DirectionsBaseURL = DefaultDirectionsBaseURL
	}
	return &View{
		fallback:       config.Fallback,
		directionsBase: config.DirectionsBaseURL,
	}
}

// SetOrigin records the user's position.
func (v *View) SetOrigin(c geo.Coordinate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.origin = &c
}

// Origin returns the user's position if known.
func (v *View) Origin() (geo.Coordinate, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.origin == nil {
		return geo.Coordinate{}, false
	}
	return *v.origin, true
}

// Sync replaces the rendered list. The selection is dropped when its shop is
// no longer listed.
func (v *View) Sync(shops []shop.Shop) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shops = append([]shop.Shop(nil), shops...)
	if v.selected == nil {
		return
	}
	for _, s := range v.shops {
		if s.PlaceID == v.selected.PlaceID {
			return
		}
	}
	v.selected = nil
}

// Select marks s as selected and recentres on it.
func (v *View) Select(s shop.Shop) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = &s
}

// SelectIndex selects the i-th listed shop.
func (v *View) SelectIndex(i int) (shop.Shop, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i < 0 || i >= len(v.shops) {
		return shop.Shop{}, fmt.Errorf("no shop at position %d of %d", i+1, len(v.shops))
	}
	s := v.shops[i]
	v.selected = &s
	return s, nil
}

// Selected returns the selected shop, if any.
func (v *View) Selected() (shop.Shop, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.selected == nil {
		return shop.Shop{}, false
	}
	return *v.selected, true
}

// ClearSelection deselects.
func (v *View) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = nil
}

// Center returns the map centre: the selected shop, else the origin, else
// the first listed shop, else the configured fallback.
func (v *View) Center() geo.Coordinate {
	v.mu.RLock()
	defer v.mu.RUnlock()
	switch {
	case v.selected != nil:
		return v.selected.Location
	case v.origin != nil:
		return *v.origin
	case len(v.shops) > 0:
		return v.shops[0].Location
	default:
		return v.fallback
	}
}

// DistanceKm is the great-circle distance between a and b.
func (v *View) DistanceKm(a, b geo.Coordinate) float64 {
	return geo.DistanceKm(a, b)
}

// DistanceToSelected returns the distance from the origin to the selected
// shop. It reports false when either is missing.
func (v *View) DistanceToSelected() (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.origin == nil || v.selected == nil {
		return 0, false
	}
	return geo.DistanceKm(*v.origin, v.selected.Location), true
}

// DirectionsURL builds a navigation deep link from origin to the destination
// shop.
func (v *View) DirectionsURL(origin geo.Coordinate, dest shop.Shop) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", origin.String())
	q.Set("destination", dest.Location.String())
	if dest.PlaceID != "" {
		q.Set("destination_place_id", dest.PlaceID)
	}
	return v.directionsBase + "?" + q.Encode()
}

// DirectionsToSelected builds the directions link for the current selection.
// It reports false without an origin, since directions need a known position.
func (v *View) DirectionsToSelected() (string, bool) {
	origin, ok := v.Origin()
	if !ok {
		return "", false
	}
	dest, ok := v.Selected()
	if !ok {
		return "", false
	}
	return v.DirectionsURL(origin, dest), true
}
