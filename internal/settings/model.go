// Package settings holds the user's review-analysis preferences and the store
// that hydrates, confirms and persists them.
package settings

import (
	"errors"
	"fmt"
	"math"

	"github.com/onnwee/shopfinder/internal/shop"
)

// Validation errors.
var (
	ErrInvalidReviewCount = errors.New("invalid review count")
	ErrInvalidCoverage    = errors.New("invalid coverage")
	ErrInvalidFilter      = errors.New("invalid opening-hours filter")
)

// Review count bounds and presets offered by the settings dialog.
const (
	MinReviewCount = 1
	MaxReviewCount = 1000
)

// ReviewPresets are the review counts offered without typing a number.
var ReviewPresets = []int{10, 100, 500, 1000}

// Coverage bounds and presets in kilometres.
const (
	MinCoverageKm = 1
	MaxCoverageKm = 100
)

// CoveragePresets are the radii offered without typing a number.
var CoveragePresets = []float64{10, 20, 50, 100}

// ReviewCount is either a preset or a custom number of reviews to analyse.
// The zero value is unset.
type ReviewCount struct {
	n      int
	custom bool
}

// PresetReviews selects one of ReviewPresets.
func PresetReviews(n int) (ReviewCount, error) {
	for _, p := range ReviewPresets {
		if p == n {
			return ReviewCount{n: n}, nil
		}
	}
	return ReviewCount{}, fmt.Errorf("%w: %d is not a preset", ErrInvalidReviewCount, n)
}

// CustomReviews selects a typed review count.
func CustomReviews(n int) (ReviewCount, error) {
	if n < MinReviewCount || n > MaxReviewCount {
		return ReviewCount{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidReviewCount, n, MinReviewCount, MaxReviewCount)
	}
	return ReviewCount{n: n, custom: true}, nil
}

// ReviewCountOf classifies n as a preset when it matches one, custom
// otherwise. Used when values come back from the backend.
func ReviewCountOf(n int) (ReviewCount, error) {
	if rc, err := PresetReviews(n); err == nil {
		return rc, nil
	}
	return CustomReviews(n)
}

// Count returns the number of reviews, 0 when unset.
func (r ReviewCount) Count() int { return r.n }

// IsCustom reports whether the count was typed rather than picked.
func (r ReviewCount) IsCustom() bool { return r.custom }

// IsSet reports whether a count has been chosen.
func (r ReviewCount) IsSet() bool { return r.n > 0 }

// String renders the count for display.
func (r ReviewCount) String() string {
	if !r.IsSet() {
		return "unset"
	}
	if r.custom {
		return fmt.Sprintf("custom(%d)", r.n)
	}
	return fmt.Sprintf("%d", r.n)
}

// CoverageKind distinguishes the coverage variants.
type CoverageKind int

const (
	// CoverageUnset is the zero value.
	CoverageUnset CoverageKind = iota
	// CoveragePreset is one of CoveragePresets.
	CoveragePreset
	// CoverageCustom is a typed radius.
	CoverageCustom
	// CoverageAll lifts the radius limit.
	CoverageAll
)

// Coverage is the search radius: Preset(km) | Custom(km) | All.
type Coverage struct {
	kind CoverageKind
	km   float64
}

// PresetCoverage selects one of CoveragePresets.
func PresetCoverage(km float64) (Coverage, error) {
	for _, p := range CoveragePresets {
		if p == km {
			return Coverage{kind: CoveragePreset, km: km}, nil
		}
	}
	return Coverage{}, fmt.Errorf("%w: %g km is not a preset", ErrInvalidCoverage, km)
}

// CustomCoverage selects a typed radius in kilometres.
func CustomCoverage(km float64) (Coverage, error) {
	if math.IsNaN(km) || km < MinCoverageKm || km > MaxCoverageKm {
		return Coverage{}, fmt.Errorf("%w: %g km not in [%d, %d]", ErrInvalidCoverage, km, MinCoverageKm, MaxCoverageKm)
	}
	return Coverage{kind: CoverageCustom, km: km}, nil
}

// AllCoverage removes the radius limit.
func AllCoverage() Coverage {
	return Coverage{kind: CoverageAll}
}

// CoverageOf classifies km as preset or custom.
func CoverageOf(km float64) (Coverage, error) {
	if c, err := PresetCoverage(km); err == nil {
		return c, nil
	}
	return CustomCoverage(km)
}

// Kind returns the variant.
func (c Coverage) Kind() CoverageKind { return c.kind }

// Km returns the radius in kilometres; 0 for All and unset.
func (c Coverage) Km() float64 { return c.km }

// IsAll reports whether the radius is unlimited.
func (c Coverage) IsAll() bool { return c.kind == CoverageAll }

// IsSet reports whether a coverage has been chosen.
func (c Coverage) IsSet() bool { return c.kind != CoverageUnset }

// String renders the coverage for display.
func (c Coverage) String() string {
	switch c.kind {
	case CoveragePreset:
		return fmt.Sprintf("%g km", c.km)
	case CoverageCustom:
		return fmt.Sprintf("custom(%g km)", c.km)
	case CoverageAll:
		return "all"
	default:
		return "unset"
	}
}

// ReviewSettings are the preferences applied to every search.
type ReviewSettings struct {
	ReviewCount      ReviewCount
	Coverage         Coverage
	RememberSettings bool
	Opening          shop.OpeningFilter
}

// Defaults are the in-memory settings used before anything is confirmed.
func Defaults() ReviewSettings {
	return ReviewSettings{
		ReviewCount: ReviewCount{n: ReviewPresets[0]},
		Coverage:    Coverage{kind: CoveragePreset, km: CoveragePresets[0]},
	}
}

// Validate checks every field.
func (s ReviewSettings) Validate() error {
	if !s.ReviewCount.IsSet() {
		return fmt.Errorf("%w: not set", ErrInvalidReviewCount)
	}
	if !s.Coverage.IsSet() {
		return fmt.Errorf("%w: not set", ErrInvalidCoverage)
	}
	if err := s.Opening.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return nil
}

// Apply fills the settings-derived fields of a search request.
func (s ReviewSettings) Apply(req *shop.SearchRequest) {
	req.ReviewCount = s.ReviewCount.Count()
	req.CoverageKm = s.Coverage.Km()
	req.AllCoverage = s.Coverage.IsAll()
	req.Opening = s.Opening
}
