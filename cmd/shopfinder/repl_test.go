package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/onnwee/shopfinder/internal/auth"
	"github.com/onnwee/shopfinder/internal/backend"
	"github.com/onnwee/shopfinder/internal/finder"
	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/session"
	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/shop"
	"github.com/onnwee/shopfinder/internal/stubbackend"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// startStub serves a stub backend with three shops per page and one user.
func startStub(t *testing.T) string {
	t.Helper()
	srv, err := stubbackend.New(stubbackend.Config{
		Sessions:         auth.NewSessionService("cli-test-secret"),
		Accounts:         stubbackend.NewAccounts(bcrypt.MinCost),
		PageSize:         3,
		Logger:           discard,
		DisableRateLimit: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Accounts().Register("ada@example.com", "s3cret"); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	client, err := backend.New(backend.Config{BaseURL: startStub(t), Logger: discard})
	if err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	f, err := finder.New(finder.Config{
		Backend:      client,
		TokenStore:   session.NewMemoryTokenStore(""),
		Locator:      geo.StaticLocator{Position: geo.Coordinate{Latitude: 52.52, Longitude: 13.405}},
		Navigator:    loginHint{out: out},
		PollInterval: 20 * time.Millisecond,
		Logger:       discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.Start(context.Background())
	t.Cleanup(func() { f.Stop() })

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, ok := f.Map().Origin(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("location was never acquired")
		}
		time.Sleep(10 * time.Millisecond)
	}

	r := newREPL(f, out)
	r.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return r, out
}

// script runs each line and returns the output it produced.
func script(t *testing.T, r *repl, out *bytes.Buffer, lines ...string) string {
	t.Helper()
	out.Reset()
	for _, line := range lines {
		if r.exec(context.Background(), line) {
			t.Fatalf("%q ended the session", line)
		}
	}
	return out.String()
}

func TestREPL_SearchAndPaging(t *testing.T) {
	r, out := newTestREPL(t)

	got := script(t, r, out, "search milk")
	if !strings.Contains(got, "confirm <reviews>") {
		t.Fatalf("search without settings should open the dialog, got:\n%s", got)
	}

	got = script(t, r, out, "confirm 10 10")
	if !strings.Contains(got, " 3. ") || strings.Contains(got, " 4. ") {
		t.Fatalf("first page should list 3 shops, got:\n%s", got)
	}

	got = script(t, r, out, "more")
	if !strings.Contains(got, " 5. ") {
		t.Fatalf("second page should list 5 shops, got:\n%s", got)
	}

	got = script(t, r, out, "more", "more")
	if !strings.Contains(got, "end of results") || !strings.Contains(got, "no more shops") {
		t.Errorf("paging past the end, got:\n%s", got)
	}

	got = script(t, r, out, "select 1")
	if !strings.Contains(got, "selected ") || !strings.Contains(got, "km away") || !strings.Contains(got, "directions: ") {
		t.Errorf("select output:\n%s", got)
	}

	got = script(t, r, out, "select 9")
	if !strings.Contains(got, "error: no shop 9 in a list of 5") {
		t.Errorf("select out of range:\n%s", got)
	}

	got = script(t, r, out, "state")
	for _, want := range []string{"gate: idle", `query: "milk", 5 shops, exhausted true`, "location: acquired", "known true"} {
		if !strings.Contains(got, want) {
			t.Errorf("state output missing %q:\n%s", want, got)
		}
	}
}

func TestREPL_Explain(t *testing.T) {
	r, out := newTestREPL(t)
	script(t, r, out, "search milk", "confirm 10 all")

	got := script(t, r, out, "explain 1")
	if !strings.Contains(got, "why ") && !strings.Contains(got, "no explanation for") {
		t.Errorf("explain output:\n%s", got)
	}
	got = script(t, r, out, "explain")
	if !strings.Contains(got, "error: usage") {
		t.Errorf("explain without index:\n%s", got)
	}
}

func TestREPL_RememberNeedsLogin(t *testing.T) {
	r, out := newTestREPL(t)

	got := script(t, r, out, "search milk", "confirm 100 20 remember")
	if !strings.Contains(got, `"login" to sign in`) {
		t.Fatalf("remembering without a session should prompt, got:\n%s", got)
	}

	got = script(t, r, out, "login")
	if !strings.Contains(got, "sign in with: login <email> <password>") {
		t.Fatalf("accepting the prompt should show the login hint, got:\n%s", got)
	}

	got = script(t, r, out, "login ada@example.com s3cret")
	if !strings.Contains(got, "signed in") {
		t.Fatalf("login output:\n%s", got)
	}

	got = script(t, r, out, "settings", "confirm 100 all remember", "state")
	if !strings.Contains(got, "100 reviews, coverage all, known true, remembered") {
		t.Errorf("remembered settings not adopted:\n%s", got)
	}

	got = script(t, r, out, "logout", "state")
	if !strings.Contains(got, "signed out") || !strings.Contains(got, "signed in false") {
		t.Errorf("logout output:\n%s", got)
	}
}

func TestREPL_NoticesAndDismiss(t *testing.T) {
	r, out := newTestREPL(t)

	got := script(t, r, out, "login ada@example.com wrong")
	if !strings.Contains(got, "! [1] Invalid credentials") {
		t.Fatalf("failed login should print one notice, got:\n%s", got)
	}

	got = script(t, r, out, "search   ")
	if !strings.Contains(got, "! [2] Product name is required.") {
		t.Errorf("empty search notice:\n%s", got)
	}

	got = script(t, r, out, "dismiss 1", "dismiss 1")
	if !strings.Contains(got, "error: no notice 1") {
		t.Errorf("second dismiss should fail:\n%s", got)
	}

	script(t, r, out, "dismiss")
	if n := len(r.f.Notices()); n != 0 {
		t.Errorf("notices after dismissing all = %d", n)
	}
}

func TestREPL_Commands(t *testing.T) {
	r, out := newTestREPL(t)

	tests := []struct {
		line string
		want string
	}{
		{"help", "Commands:"},
		{"frobnicate", `error: unknown command "frobnicate"`},
		{"cancel", "not now (idle)"},
		{"later", "not now (idle)"},
		{"more", "nothing to load; search first"},
		{"confirm 10", "error: usage"},
		{"login a b c", "error: usage"},
		{"dismiss x", "error: usage"},
		{"dismiss 0", "error: usage"},
		{"forget", "settings cleared"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := script(t, r, out, tt.line); !strings.Contains(got, tt.want) {
				t.Errorf("%q output = %q, want it to contain %q", tt.line, got, tt.want)
			}
		})
	}

	if !r.exec(context.Background(), "quit") {
		t.Error("quit should end the session")
	}
}

func TestREPL_RunEndsAtEOF(t *testing.T) {
	r, out := newTestREPL(t)
	if err := r.run(context.Background(), strings.NewReader("help\n")); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "shopfinder ready") {
		t.Errorf("missing banner:\n%s", out.String())
	}
}

func TestParseSettings(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		args       []string
		wantErr    error
		reviews    int
		custom     bool
		coverage   string
		remember   bool
		filterKind shop.FilterKind
		date       string
		clock      string
	}{
		{name: "presets", args: []string{"10", "10"}, reviews: 10, coverage: "10 km", filterKind: shop.FilterNone},
		{name: "custom values", args: []string{"42", "7.5km"}, reviews: 42, custom: true, coverage: "custom(7.5 km)", filterKind: shop.FilterNone},
		{name: "all coverage remembered", args: []string{"500", "ALL", "remember"}, reviews: 500, coverage: "all", remember: true, filterKind: shop.FilterNone},
		{name: "date only", args: []string{"10", "20", "2026-04-01"}, reviews: 10, coverage: "20 km", filterKind: shop.FilterDate, date: "2026-04-01"},
		{name: "today with time", args: []string{"10", "20", "remember", "today", "9:30", "pm"}, reviews: 10, coverage: "20 km", remember: true, filterKind: shop.FilterDateTime, date: "2026-03-14", clock: "21:30:00"},
		{name: "joined time", args: []string{"10", "20", "2026-04-01", "12:05am"}, reviews: 10, coverage: "20 km", filterKind: shop.FilterDateTime, date: "2026-04-01", clock: "00:05:00"},
		{name: "too few args", args: []string{"10"}, wantErr: errUsage},
		{name: "bad reviews", args: []string{"lots", "10"}, wantErr: settings.ErrInvalidReviewCount},
		{name: "reviews out of range", args: []string{"2000", "10"}, wantErr: settings.ErrInvalidReviewCount},
		{name: "bad coverage", args: []string{"10", "far"}, wantErr: settings.ErrInvalidCoverage},
		{name: "coverage out of range", args: []string{"10", "500"}, wantErr: settings.ErrInvalidCoverage},
		{name: "bad date", args: []string{"10", "10", "tomorrow"}, wantErr: settings.ErrInvalidFilter},
		{name: "bad time", args: []string{"10", "10", "today", "25:00", "pm"}, wantErr: settings.ErrInvalidFilter},
		{name: "trailing args", args: []string{"10", "10", "today", "9:30", "pm", "sharp"}, wantErr: errUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSettings(tt.args, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseSettings() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSettings() error = %v", err)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("parsed settings invalid: %v", err)
			}
			if got.ReviewCount.Count() != tt.reviews || got.ReviewCount.IsCustom() != tt.custom {
				t.Errorf("reviews = %v (custom %v), want %d (custom %v)", got.ReviewCount.Count(), got.ReviewCount.IsCustom(), tt.reviews, tt.custom)
			}
			if got.Coverage.String() != tt.coverage {
				t.Errorf("coverage = %s, want %s", got.Coverage, tt.coverage)
			}
			if got.RememberSettings != tt.remember {
				t.Errorf("remember = %v, want %v", got.RememberSettings, tt.remember)
			}
			if got.Opening.Kind != tt.filterKind {
				t.Errorf("filter kind = %v, want %v", got.Opening.Kind, tt.filterKind)
			}
			if got.Opening.DateString() != tt.date || got.Opening.TimeString() != tt.clock {
				t.Errorf("filter = %s %s, want %s %s", got.Opening.DateString(), got.Opening.TimeString(), tt.date, tt.clock)
			}
		})
	}
}
