package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/shop"
)

// Backend routes.
const (
	PathLogin          = "/auth/login"
	PathVerify         = "/auth/verify"
	PathReviewSettings = "/profile/review-settings"
	PathSearch         = "/product/search_product"
	PathExplain        = "/explain_review"
)

// TokenRequest carries the session token in the body.
type TokenRequest struct {
	IDToken string `json:"id_token"`
}

// VerifyResponse is the answer of the verify call.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// LoginRequest authenticates against the identity service.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	IDToken string `json:"id_token"`
}

// MessageResponse acknowledges a write.
type MessageResponse struct {
	Message string `json:"message"`
}

// CoverageValue is a radius in km, or no limit. It is a JSON number or the
// string "all".
type CoverageValue struct {
	Km  float64
	All bool
}

// MarshalJSON implements json.Marshaler.
func (c CoverageValue) MarshalJSON() ([]byte, error) {
	if c.All {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.FormatFloat(c.Km, 'f', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler. Numeric strings are accepted.
func (c *CoverageValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "all" {
			*c = CoverageValue{All: true}
			return nil
		}
		km, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("coverage %q is neither a number nor \"all\"", s)
		}
		*c = CoverageValue{Km: km}
		return nil
	}
	var km float64
	if err := json.Unmarshal(data, &km); err != nil {
		return fmt.Errorf("coverage: %w", err)
	}
	*c = CoverageValue{Km: km}
	return nil
}

// OpeningFilterWire is the serialized opening-hours filter: a calendar date
// and, for "datetime", a 24-hour HH:MM:SS time.
type OpeningFilterWire struct {
	Type string `json:"type"`
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
}

// EncodeOpeningFilter returns nil for an inactive filter.
func EncodeOpeningFilter(f shop.OpeningFilter) *OpeningFilterWire {
	if !f.Active() {
		return nil
	}
	return &OpeningFilterWire{
		Type: f.Kind.String(),
		Date: f.DateString(),
		Time: f.TimeString(),
	}
}

// DecodeOpeningFilter is the inverse of EncodeOpeningFilter.
func DecodeOpeningFilter(w *OpeningFilterWire) (shop.OpeningFilter, error) {
	if w == nil {
		return shop.NoFilter(), nil
	}
	kind, err := shop.ParseFilterKind(w.Type)
	if err != nil {
		return shop.OpeningFilter{}, err
	}
	if kind == shop.FilterNone {
		return shop.NoFilter(), nil
	}

	date, err := time.Parse(shop.DateLayout, w.Date)
	if err != nil {
		return shop.OpeningFilter{}, fmt.Errorf("%w: %q", shop.ErrMissingDate, w.Date)
	}
	if kind == shop.FilterDate {
		if w.Time != "" {
			return shop.OpeningFilter{}, shop.ErrUnexpectedArg
		}
		return shop.OnDate(date), nil
	}
	if w.Time == "" {
		return shop.OpeningFilter{}, shop.ErrMissingClock
	}
	clock, err := shop.ParseClock24(w.Time)
	if err != nil {
		return shop.OpeningFilter{}, err
	}
	return shop.AtDateTime(date, clock), nil
}

// SettingsWire is the body of the review-settings calls.
type SettingsWire struct {
	IDToken          string             `json:"id_token,omitempty"`
	ReviewCount      int                `json:"reviewCount"`
	Coverage         CoverageValue      `json:"coverage"`
	RememberSettings bool               `json:"rememberSettings"`
	OpeningFilter    *OpeningFilterWire `json:"openingFilter,omitempty"`
}

// EncodeSettings converts settings to their wire form.
func EncodeSettings(token string, s settings.ReviewSettings) SettingsWire {
	return SettingsWire{
		IDToken:          token,
		ReviewCount:      s.ReviewCount.Count(),
		Coverage:         CoverageValue{Km: s.Coverage.Km(), All: s.Coverage.IsAll()},
		RememberSettings: s.RememberSettings,
		OpeningFilter:    EncodeOpeningFilter(s.Opening),
	}
}

// DecodeSettings validates a wire record into settings.
func DecodeSettings(w SettingsWire) (settings.ReviewSettings, error) {
	rc, err := settings.ReviewCountOf(w.ReviewCount)
	if err != nil {
		return settings.ReviewSettings{}, err
	}
	cov := settings.AllCoverage()
	if !w.Coverage.All {
		if cov, err = settings.CoverageOf(w.Coverage.Km); err != nil {
			return settings.ReviewSettings{}, err
		}
	}
	filter, err := DecodeOpeningFilter(w.OpeningFilter)
	if err != nil {
		return settings.ReviewSettings{}, fmt.Errorf("%w: %w", settings.ErrInvalidFilter, err)
	}
	return settings.ReviewSettings{
		ReviewCount:      rc,
		Coverage:         cov,
		RememberSettings: w.RememberSettings,
		Opening:          filter,
	}, nil
}

// SearchRequestWire is the body of the search call.
type SearchRequestWire struct {
	Product         string             `json:"product"`
	ReviewCount     int                `json:"reviewCount"`
	Coverage        CoverageValue      `json:"coverage"`
	Location        *geo.Coordinate    `json:"location,omitempty"`
	OpeningFilter   *OpeningFilterWire `json:"openingFilter,omitempty"`
	ExcludePlaceIDs []string           `json:"excludePlaceIds,omitempty"`
}

// EncodeSearch converts a search request to its wire form.
func EncodeSearch(req shop.SearchRequest) SearchRequestWire {
	return SearchRequestWire{
		Product:         req.Query,
		ReviewCount:     req.ReviewCount,
		Coverage:        CoverageValue{Km: req.CoverageKm, All: req.AllCoverage},
		Location:        req.Location,
		OpeningFilter:   EncodeOpeningFilter(req.Opening),
		ExcludePlaceIDs: req.ExcludePlaceIDs,
	}
}

// ShopWire is one shop in a search response.
type ShopWire struct {
	ShopName        string        `json:"shop_name"`
	Address         string        `json:"address"`
	Rating          float64       `json:"rating"`
	PlaceID         string        `json:"place_id"`
	Lat             float64       `json:"lat"`
	Lng             float64       `json:"lng"`
	Summary         string        `json:"summary,omitempty"`
	PredictedRating float64       `json:"predicted_rating"`
	Explanation     string        `json:"explanation,omitempty"`
	Reviews         []shop.Review `json:"reviews,omitempty"`
}

// ToShop converts a wire record, clamping ratings to [0, 5].
func (w ShopWire) ToShop() shop.Shop {
	return shop.Shop{
		PlaceID:         w.PlaceID,
		Name:            w.ShopName,
		Address:         w.Address,
		Location:        geo.Coordinate{Latitude: w.Lat, Longitude: w.Lng},
		Rating:          shop.ClampRating(w.Rating),
		PredictedRating: shop.ClampRating(w.PredictedRating),
		Summary:         w.Summary,
		Explanation:     w.Explanation,
		Reviews:         w.Reviews,
	}
}

// ShopToWire is the inverse of ShopWire.ToShop.
func ShopToWire(s shop.Shop) ShopWire {
	return ShopWire{
		ShopName:        s.Name,
		Address:         s.Address,
		Rating:          s.Rating,
		PlaceID:         s.PlaceID,
		Lat:             s.Location.Latitude,
		Lng:             s.Location.Longitude,
		Summary:         s.Summary,
		PredictedRating: s.PredictedRating,
		Explanation:     s.Explanation,
		Reviews:         s.Reviews,
	}
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Shops []ShopWire `json:"shops"`
}

// ExplainRequest asks for the breakdown of a review text or of a shop's
// combined reviews.
type ExplainRequest struct {
	Review  string `json:"review,omitempty"`
	PlaceID string `json:"place_id,omitempty"`
}

// ExplainResponse is the body of the explain call.
type ExplainResponse struct {
	Explanation shop.Explanation `json:"explanation"`
}
