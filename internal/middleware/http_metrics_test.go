package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/auth/verify":             "/auth/verify",
		"/product/search_product":  "/product/search_product",
		"/profile/review-settings": "/profile/review-settings",
		"/wp-admin/login.php":      "other",
		"/":                        "other",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPMetrics(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/explain_review" {
			w.WriteHeader(http.StatusBadRequest)
		}
		_, _ = w.Write([]byte("{}"))
	}))

	for _, path := range []string{"/auth/verify", "/auth/verify", "/explain_review", "/health"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	if got := getCounterVecValue(metrics.httpRequestsTotal, "POST", "/auth/verify", "200"); got != 2 {
		t.Errorf("verify count = %v, want 2", got)
	}
	if got := getCounterVecValue(metrics.httpRequestsTotal, "POST", "/explain_review", "400"); got != 1 {
		t.Errorf("explain count = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != MetricHTTPRequestsTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" && l.GetValue() == "/health" {
					t.Error("/health must not be recorded")
				}
			}
		}
	}
}
