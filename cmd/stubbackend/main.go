// Package main is the entry point for the development backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/shopfinder/internal/auth"
	"github.com/onnwee/shopfinder/internal/config"
	"github.com/onnwee/shopfinder/internal/health"
	"github.com/onnwee/shopfinder/internal/middleware"
	"github.com/onnwee/shopfinder/internal/stubbackend"
	"github.com/onnwee/shopfinder/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Shopfinder Stub Backend")
		fmt.Println()
		fmt.Println("Usage: stubbackend [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		slog.Error("failed to load configuration", "errors", errs)
		os.Exit(1)
	}
	errs = append(errs, cfg.ValidateStub()...)

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
		"stub_port", summary["stub_port"],
		"stub_jwt_secret", summary["stub_jwt_secret"],
		"redis_url", summary["redis_url"],
		"stub_rate_limit", summary["stub_rate_limit"])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.StubPort))
	if err != nil {
		logger.Error("failed to listen", "port", cfg.StubPort, "error", err)
		os.Exit(1)
	}

	if err := serve(ctx, cfg, logger, ln); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// serve runs the stub backend on ln until ctx is cancelled, then shuts down
// gracefully.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	tp, err := tracing.NewProvider(cfg.TracingConfig(stubbackend.DefaultServiceName))
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

	handler, cleanup, err := buildHandler(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildHandler wires the stub server: metrics registry, optional Redis for
// rate limits and health, the seeded user and CORS. The returned cleanup
// closes the Redis client.
func buildHandler(cfg *config.Config, logger *slog.Logger) (http.Handler, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.StubCORSOrigins) > 0 {
		cors.AllowedOrigins = cfg.StubCORSOrigins
	}

	sc := stubbackend.Config{
		Sessions: auth.NewSessionService(cfg.StubJWTSecret),
		PageSize: cfg.StubPageSize,
		Logger:   logger,
		Metrics:  metrics,
		Gatherer: reg,
		CORS:     cors,
	}
	if cfg.StubRateLimit == 0 {
		sc.DisableRateLimit = true
	} else {
		sc.SearchLimit = middleware.RateLimitConfig{RequestsPerWindow: cfg.StubRateLimit, WindowDuration: time.Minute}
	}

	cleanup := func() {}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		sc.RateLimitStore = middleware.NewRedisRateLimitStore(client, metrics, logger)
		sc.Checkers = map[string]health.Checker{"redis": health.NewRedisChecker(client)}
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}
	}

	srv, err := stubbackend.New(sc)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if cfg.StubUserEmail != "" {
		acc, err := srv.Accounts().Register(cfg.StubUserEmail, cfg.StubUserPassword)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to seed user: %w", err)
		}
		logger.Info("seeded user", "email", acc.Email, "user_id", acc.ID)
	}

	return srv.Handler(), cleanup, nil
}
