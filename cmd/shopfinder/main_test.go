package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/shopfinder/internal/config"
	"github.com/onnwee/shopfinder/internal/events"
	"github.com/onnwee/shopfinder/internal/finder"
	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/session"
)

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		Env:               "test",
		BackendURL:        backendURL,
		TokenStore:        config.TokenStoreMemory,
		TokenPollInterval: 20 * time.Millisecond,
		TracingExporter:   config.DefaultTracingExporter,
		DefaultLocation:   &geo.Coordinate{Latitude: 52.52, Longitude: 13.405},
		MapFallback:       geo.Coordinate{Latitude: 52.52, Longitude: 13.405},
	}
}

func TestRun_ScriptedSession(t *testing.T) {
	cfg := testConfig(startStub(t))
	in := strings.NewReader("login ada@example.com s3cret\nstate\nquit\nstate\n")
	out := &bytes.Buffer{}

	if err := run(context.Background(), cfg, discard, in, out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "signed in\n") {
		t.Errorf("missing login confirmation:\n%s", got)
	}
	if n := strings.Count(got, "gate: "); n != 1 {
		t.Errorf("commands after quit ran: %d state blocks\n%s", n, got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(startStub(t))
	cfg.MetricsAddr = "127.0.0.1:0"

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, discard, pr, io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestRun_InvalidBackendURL(t *testing.T) {
	cfg := testConfig("ftp://example.com")
	if err := run(context.Background(), cfg, discard, strings.NewReader(""), io.Discard); err == nil {
		t.Error("expected an error for an unsupported backend scheme")
	}
}

func TestStatusHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		t.Fatal(err)
	}
	b := events.NewBroadcaster(discard)
	b.Publish(finder.View{Gate: "idle", Query: "milk"})

	ts := httptest.NewServer(statusHandler(reg, b, discard))
	defer ts.Close()

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(string(body), session.MetricSessionValid) {
			t.Errorf("metrics output missing %s", session.MetricSessionValid)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("events replay the last view", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var v finder.View
		if err := json.Unmarshal(data, &v); err != nil {
			t.Fatal(err)
		}
		if v.Gate != "idle" || v.Query != "milk" {
			t.Errorf("view = %+v", v)
		}
	})
}

func TestNewTokenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, closeStore, err := newTokenStore(&config.Config{TokenStore: config.TokenStoreMemory}, discard)
		if err != nil {
			t.Fatal(err)
		}
		defer closeStore()
		if _, ok := store.(*session.MemoryTokenStore); !ok {
			t.Errorf("store = %T", store)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.cbor")
		store, closeStore, err := newTokenStore(&config.Config{TokenStore: config.TokenStoreFile, TokenFile: path}, discard)
		if err != nil {
			t.Fatal(err)
		}
		defer closeStore()
		if err := store.Save(ctx, "abc"); err != nil {
			t.Fatal(err)
		}
		if got, _ := session.NewFileTokenStore(path).Load(ctx); got != "abc" {
			t.Errorf("token = %q", got)
		}
	})

	t.Run("redis with a bad url", func(t *testing.T) {
		_, _, err := newTokenStore(&config.Config{TokenStore: config.TokenStoreRedis, RedisURL: "mysql://nope"}, discard)
		if err == nil {
			t.Error("expected an error")
		}
	})
}

func TestLoginHint(t *testing.T) {
	out := &bytes.Buffer{}
	if err := (loginHint{out: out}).NavigateToLogin(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "login <email> <password>") {
		t.Errorf("hint = %q", out.String())
	}
}

