// Package health provides health checks for the stub backend's dependencies
// and the handler that reports them.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/onnwee/shopfinder/internal/api"
)

// DefaultTimeout bounds a whole health report.
const DefaultTimeout = 2 * time.Second

// Checker is a dependency that can report whether it is usable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Report is the body served by Handler.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Check runs every checker and reports "healthy" only when all pass.
func Check(ctx context.Context, checkers map[string]Checker) Report {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{Status: "healthy"}
	for _, name := range names {
		status := "ok"
		if err := checkers[name].HealthCheck(ctx); err != nil {
			status = err.Error()
			report.Status = "unhealthy"
		}
		if report.Checks == nil {
			report.Checks = make(map[string]string, len(names))
		}
		report.Checks[name] = status
	}
	return report
}

// Handler serves the health report, answering 503 when a check fails.
func Handler(checkers map[string]Checker, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		report := Check(ctx, checkers)
		status := http.StatusOK
		if report.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		api.WriteJSON(w, r.Context(), status, report)
	})
}
