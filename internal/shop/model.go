// Package shop defines the shop records returned by the ranking service and
// the request shape used to search for them.
package shop

import (
	"github.com/onnwee/shopfinder/internal/geo"
)

// Shop is a single ranked result. Identity is PlaceID; shops are never
// mutated after they are received.
type Shop struct {
	PlaceID         string         `json:"place_id"`
	Name            string         `json:"name"`
	Address         string         `json:"address"`
	Location        geo.Coordinate `json:"location"`
	Rating          float64        `json:"rating"`
	PredictedRating float64        `json:"predicted_rating"`
	Summary         string         `json:"summary,omitempty"`
	Explanation     string         `json:"explanation,omitempty"`
	Reviews         []Review       `json:"reviews,omitempty"`
}

// Review is one customer review the rating was predicted from.
type Review struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Date   string `json:"date,omitempty"`
}

// ClampRating bounds r to the [0, 5] star range.
func ClampRating(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 5:
		return 5
	default:
		return r
	}
}

// SearchRequest is one call to the ranking service. ExcludePlaceIDs is empty
// for an initial search and carries the cursor for "load more".
type SearchRequest struct {
	Query           string
	ReviewCount     int
	CoverageKm      float64
	AllCoverage     bool
	Location        *geo.Coordinate
	Opening         OpeningFilter
	ExcludePlaceIDs []string
}

// PlaceIDs returns the identifiers of shops in order.
func PlaceIDs(shops []Shop) []string {
	ids := make([]string, len(shops))
	for i, s := range shops {
		ids[i] = s.PlaceID
	}
	return ids
}
