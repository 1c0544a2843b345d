// Package main is the interactive shop-finder client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/shopfinder/internal/backend"
	"github.com/onnwee/shopfinder/internal/config"
	"github.com/onnwee/shopfinder/internal/events"
	"github.com/onnwee/shopfinder/internal/finder"
	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/middleware"
	"github.com/onnwee/shopfinder/internal/pager"
	"github.com/onnwee/shopfinder/internal/session"
	"github.com/onnwee/shopfinder/internal/tracing"
)

const (
	serviceName     = "shopfinder"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Shopfinder")
		fmt.Println()
		fmt.Println("Usage: shopfinder [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println(helpText)
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		slog.Error("failed to load configuration", "errors", errs)
		os.Exit(1)
	}
	errs = append(errs, cfg.ValidateClient()...)

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	summary := cfg.LogSummary()
	logger.Info("configuration loaded",
		"env", summary["env"],
		"backend_url", summary["backend_url"],
		"token_store", summary["token_store"],
		"redis_url", summary["redis_url"],
		"default_location", summary["default_location"],
		"metrics_addr", summary["metrics_addr"])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error("shopfinder failed", "error", err)
		os.Exit(1)
	}
}

// run builds the finder screen and drives it from in until the user quits or
// ctx is cancelled. When metrics_addr is set, /metrics and the /events feed
// are served alongside.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	tp, err := tracing.NewProvider(cfg.TracingConfig(serviceName))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	store, closeStore, err := newTokenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendURL,
		IdentityURL: cfg.IdentityURL,
		Timeout:     cfg.RequestTimeout,
		Logger:      logger.With("component", "backend"),
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pagerMetrics := pager.NewMetrics()
	if err := pagerMetrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register pager metrics: %w", err)
	}
	sessionMetrics := session.NewMetrics()
	if err := sessionMetrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register session metrics: %w", err)
	}

	broadcaster := events.NewBroadcaster(logger.With("component", "events"))

	var locator geo.Locator = geo.UnavailableLocator{}
	if cfg.DefaultLocation != nil {
		locator = geo.StaticLocator{Position: *cfg.DefaultLocation}
	}

	f, err := finder.New(finder.Config{
		Backend:           client,
		TokenStore:        store,
		Locator:           locator,
		Navigator:         loginHint{out: out},
		Publisher:         broadcaster,
		PollInterval:      cfg.TokenPollInterval,
		VerifyTimeout:     cfg.RequestTimeout,
		MapFallback:       cfg.MapFallback,
		DirectionsBaseURL: cfg.DirectionsBaseURL,
		Logger:            logger,
		PagerMetrics:      pagerMetrics,
		SessionMetrics:    sessionMetrics,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.Start(ctx)
	defer func() {
		if err := f.Stop(); err != nil {
			logger.Warn("failed to stop finder", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on metrics address: %w", err)
		}
		server := &http.Server{
			Handler:     statusHandler(reg, broadcaster, logger),
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics and events", "addr", ln.Addr().String())
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// Ending the session stops the status server too.
		defer cancel()
		return newREPL(f, out).run(gctx, in)
	})

	return g.Wait()
}

// statusHandler serves Prometheus metrics and the live view feed.
func statusHandler(reg *prometheus.Registry, b *events.Broadcaster, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", middleware.Logging(logger)(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	// The upgrade needs the unwrapped writer.
	mux.Handle("/events", events.Handler(b, nil))
	return middleware.RequestID(mux)
}

// newTokenStore opens the configured token store. The returned func releases
// its resources.
func newTokenStore(cfg *config.Config, logger *slog.Logger) (session.TokenStore, func(), error) {
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return session.NewMemoryTokenStore(""), func() {}, nil
	case config.TokenStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		return session.NewRedisTokenStore(client, cfg.TokenProfile), func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}, nil
	default:
		path := cfg.TokenFile
		if path == "" {
			path = config.DefaultTokenFile()
		}
		return session.NewFileTokenStore(path), func() {}, nil
	}
}

// loginHint stands in for a browser login page.
type loginHint struct {
	out io.Writer
}

func (h loginHint) NavigateToLogin(context.Context) error {
	_, err := fmt.Fprintln(h.out, "sign in with: login <email> <password>")
	return err
}
