package shop

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterKind selects how opening hours restrict the search.
type FilterKind int

const (
	// FilterNone applies no opening-hours restriction.
	FilterNone FilterKind = iota
	// FilterDate keeps shops open at some point on a calendar date.
	FilterDate
	// FilterDateTime keeps shops open at a date and time of day.
	FilterDateTime
)

// String returns the wire name of the kind.
func (k FilterKind) String() string {
	switch k {
	case FilterDate:
		return "date"
	case FilterDateTime:
		return "datetime"
	default:
		return "none"
	}
}

// ParseFilterKind is the inverse of FilterKind.String.
func ParseFilterKind(s string) (FilterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FilterNone, nil
	case "date":
		return FilterDate, nil
	case "datetime", "date+time":
		return FilterDateTime, nil
	}
	return FilterNone, fmt.Errorf("unknown opening filter %q", s)
}

// DateLayout is the wire layout of filter dates.
const DateLayout = "2006-01-02"

// Opening filter errors.
var (
	ErrInvalidClock  = errors.New("invalid time of day")
	ErrMissingDate   = errors.New("opening filter requires a date")
	ErrMissingClock  = errors.New("opening filter requires a time of day")
	ErrUnexpectedArg = errors.New("time of day set on a date-only filter")
)

// Clock is a 24-hour time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// Clock12 converts a 12-hour picker value into a Clock.
func Clock12(hour, minute int, pm bool) (Clock, error) {
	if hour < 1 || hour > 12 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %d:%02d", ErrInvalidClock, hour, minute)
	}
	h := hour % 12
	if pm {
		h += 12
	}
	return Clock{Hour: h, Minute: minute}, nil
}

// ParseClock12 parses picker text such as "9:30 PM" or "12:05am".
func ParseClock12(s string) (Clock, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	var pm bool
	switch {
	case strings.HasSuffix(s, "pm"):
		pm = true
	case strings.HasSuffix(s, "am"):
	default:
		return Clock{}, fmt.Errorf("%w: %q missing am/pm", ErrInvalidClock, s)
	}
	s = s[:len(s)-2]

	hh, mm, found := strings.Cut(s, ":")
	if !found {
		mm = "0"
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock12(h, m, pm)
}

// ParseClock24 parses the wire form HH:MM:SS (seconds optional).
func ParseClock24(s string) (Clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
}

// String returns the 24-hour wire form HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// OpeningFilter restricts results to shops open on Date (and at Time for
// FilterDateTime). The zero value applies no restriction.
type OpeningFilter struct {
	Kind FilterKind
	Date time.Time
	Time *Clock
}

// NoFilter returns the unrestricted filter.
func NoFilter() OpeningFilter {
	return OpeningFilter{}
}

// OnDate returns a date-only filter.
func OnDate(date time.Time) OpeningFilter {
	return OpeningFilter{Kind: FilterDate, Date: truncateDate(date)}
}

// AtDateTime returns a date and time-of-day filter.
func AtDateTime(date time.Time, at Clock) OpeningFilter {
	return OpeningFilter{Kind: FilterDateTime, Date: truncateDate(date), Time: &at}
}

// Validate checks that the fields required by Kind are present.
func (f OpeningFilter) Validate() error {
	switch f.Kind {
	case FilterNone:
		return nil
	case FilterDate:
		if f.Date.IsZero() {
			return ErrMissingDate
		}
		if f.Time != nil {
			return ErrUnexpectedArg
		}
	case FilterDateTime:
		if f.Date.IsZero() {
			return ErrMissingDate
		}
		if f.Time == nil {
			return ErrMissingClock
		}
	default:
		return fmt.Errorf("unknown opening filter kind %d", f.Kind)
	}
	return nil
}

// Active reports whether the filter restricts results.
func (f OpeningFilter) Active() bool {
	return f.Kind != FilterNone
}

// DateString returns the wire form of Date, or "" when inactive.
func (f OpeningFilter) DateString() string {
	if !f.Active() {
		return ""
	}
	return f.Date.Format(DateLayout)
}

// TimeString returns the wire form of Time, or "" when not set.
func (f OpeningFilter) TimeString() string {
	if f.Kind != FilterDateTime || f.Time == nil {
		return ""
	}
	return f.Time.String()
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
