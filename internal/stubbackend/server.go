package stubbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/shopfinder/internal/api"
	"github.com/onnwee/shopfinder/internal/auth"
	"github.com/onnwee/shopfinder/internal/backend"
	"github.com/onnwee/shopfinder/internal/health"
	"github.com/onnwee/shopfinder/internal/middleware"
	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/validate"
)

// Routes served in addition to the client protocol.
const (
	PathSignup  = "/auth/signup"
	PathHealth  = "/health"
	PathMetrics = "/metrics"
)

// DefaultPageSize is how many shops one search returns.
const DefaultPageSize = 5

// DefaultServiceName names the server in traces.
const DefaultServiceName = "shopfinder-stub"

const maxBodyBytes = 1 << 20

// Config configures a Server.
type Config struct {
	// Sessions issues and validates session tokens. Required.
	Sessions *auth.SessionService
	// Catalogue defaults to DefaultCatalogue().
	Catalogue *Catalogue
	// Accounts defaults to an empty set.
	Accounts *Accounts
	// PageSize defaults to DefaultPageSize.
	PageSize    int
	ServiceName string
	Logger      *slog.Logger

	// Metrics records HTTP and rate limit metrics (optional).
	Metrics *middleware.Metrics
	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer

	// RateLimitStore defaults to an in-memory store.
	RateLimitStore   middleware.RateLimitStore
	SearchLimit      middleware.RateLimitConfig
	DisableRateLimit bool

	CORS     middleware.CORSConfig
	Checkers map[string]health.Checker
}

// Server implements the backend protocol over an in-memory catalogue.
type Server struct {
	sessions  *auth.SessionService
	catalogue *Catalogue
	accounts  *Accounts
	pageSize  int
	logger    *slog.Logger
	config    Config
}

// New validates cfg and creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("stubbackend: session service is required")
	}
	if cfg.Catalogue == nil {
		cfg.Catalogue = DefaultCatalogue()
	}
	if cfg.Accounts == nil {
		cfg.Accounts = NewAccounts(0)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.DisableRateLimit {
		if cfg.SearchLimit == (middleware.RateLimitConfig{}) {
			cfg.SearchLimit = middleware.DefaultSearchLimit()
		}
		if err := cfg.SearchLimit.Validate(); err != nil {
			return nil, fmt.Errorf("stubbackend: search limit: %w", err)
		}
		if cfg.RateLimitStore == nil {
			cfg.RateLimitStore = middleware.NewInMemoryRateLimitStore()
		}
	}

	return &Server{
		sessions:  cfg.Sessions,
		catalogue: cfg.Catalogue,
		accounts:  cfg.Accounts,
		pageSize:  cfg.PageSize,
		logger:    cfg.Logger,
		config:    cfg,
	}, nil
}

// Accounts returns the account set, for seeding users.
func (s *Server) Accounts() *Accounts {
	return s.accounts
}

// Handler returns the routes wrapped in the middleware chain:
// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(backend.PathLogin, s.handleLogin)
	mux.HandleFunc(PathSignup, s.handleSignup)
	mux.HandleFunc(backend.PathVerify, s.handleVerify)
	mux.HandleFunc(backend.PathReviewSettings, s.handleReviewSettings)
	mux.HandleFunc(backend.PathExplain, s.handleExplain)

	var search http.Handler = http.HandlerFunc(s.handleSearch)
	if !s.config.DisableRateLimit {
		search = middleware.RateLimiter(s.config.RateLimitStore, s.config.SearchLimit,
			middleware.UserKeyFunc(), s.config.Metrics, "search")(search)
	}
	mux.Handle(backend.PathSearch, search)

	mux.Handle(PathHealth, health.Handler(s.config.Checkers, health.DefaultTimeout))
	if s.config.Gatherer != nil {
		mux.Handle(PathMetrics, promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
	})

	var h http.Handler = mux
	h = middleware.CORS(s.config.CORS)(h)
	if s.config.Metrics != nil {
		h = middleware.HTTPMetrics(s.config.Metrics)(h)
	}
	h = middleware.Logging(s.logger)(h)
	h = middleware.Tracing(s.config.ServiceName)(h)
	return middleware.RequestID(h)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req backend.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Email and password are required")
		return
	}

	acc, err := s.accounts.Authenticate(req.Email, req.Password)
	if err != nil {
		api.WriteError(w, ctx, http.StatusUnauthorized, api.ErrCodeAuthFailed, "Invalid credentials")
		return
	}
	token, err := s.sessions.Issue(acc.ID, acc.Email)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue session token", "error", err)
		api.WriteError(w, ctx, http.StatusInternalServerError, api.ErrCodeInternal, "Failed to issue token")
		return
	}
	ctx = middleware.NoteUser(ctx, acc.ID)
	api.WriteJSON(w, ctx, http.StatusOK, backend.LoginResponse{IDToken: token})
}

// SignupResponse acknowledges a registration.
type SignupResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req backend.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Email and password are required")
		return
	}

	acc, err := s.accounts.Register(req.Email, req.Password)
	switch {
	case errors.Is(err, ErrInvalidSignup):
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Invalid email address")
		return
	case errors.Is(err, ErrAccountExists):
		api.WriteError(w, ctx, http.StatusConflict, api.ErrCodeValidation, "Account already exists")
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to register account", "error", err)
		api.WriteError(w, ctx, http.StatusInternalServerError, api.ErrCodeInternal, "Failed to register account")
		return
	}
	ctx = middleware.NoteUser(ctx, acc.ID)
	api.WriteJSON(w, ctx, http.StatusCreated, SignupResponse{Message: "User registered successfully", Email: acc.Email})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req backend.TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	if req.IDToken == "" {
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Token is missing")
		return
	}

	claims, err := s.sessions.Validate(req.IDToken)
	if err != nil {
		s.logger.DebugContext(ctx, "session token rejected", "error", err)
		api.WriteJSON(w, ctx, http.StatusOK, backend.VerifyResponse{Valid: false})
		return
	}
	ctx = middleware.NoteUser(ctx, claims.Subject)
	api.WriteJSON(w, ctx, http.StatusOK, backend.VerifyResponse{Valid: true})
}

// authorize validates token and writes the error response when it fails.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, token string) (*auth.Claims, bool) {
	ctx := r.Context()
	if token == "" {
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Token is missing")
		return nil, false
	}
	claims, err := s.sessions.Validate(token)
	if err != nil {
		api.WriteError(w, ctx, http.StatusUnauthorized, api.ErrCodeAuthFailed, "Invalid token")
		return nil, false
	}
	middleware.NoteUser(ctx, claims.Subject)
	return claims, true
}

func (s *Server) handleReviewSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.getReviewSettings(w, r)
	case http.MethodPut:
		s.putReviewSettings(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodPut)
	}
}

func (s *Server) getReviewSettings(w http.ResponseWriter, r *http.Request) {
	var req backend.TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims, ok := s.authorize(w, r, req.IDToken)
	if !ok {
		return
	}
	current := s.accounts.Settings(claims.Subject)
	api.WriteJSON(w, r.Context(), http.StatusOK, backend.EncodeSettings("", current))
}

func (s *Server) putReviewSettings(w http.ResponseWriter, r *http.Request) {
	var req backend.SettingsWire
	if !decodeBody(w, r, &req) {
		return
	}
	claims, ok := s.authorize(w, r, req.IDToken)
	if !ok {
		return
	}
	next, err := backend.DecodeSettings(req)
	if err != nil {
		api.WriteError(w, r.Context(), http.StatusBadRequest, api.ErrCodeValidation, err.Error())
		return
	}
	s.accounts.SaveSettings(claims.Subject, next)
	s.logger.InfoContext(r.Context(), "review settings saved",
		"review_count", next.ReviewCount.Count(),
		"coverage", next.Coverage.String(),
		"remember", next.RememberSettings)
	api.WriteJSON(w, r.Context(), http.StatusOK, backend.MessageResponse{Message: "Review settings updated"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req backend.SearchRequestWire
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	product, err := validate.ProductQuery(req.Product)
	switch {
	case errors.Is(err, validate.ErrEmpty):
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Product name is required")
		return
	case err != nil:
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Invalid product name")
		return
	}
	reviewCount := req.ReviewCount
	if reviewCount == 0 {
		reviewCount = settings.ReviewPresets[0]
	}
	if _, err := settings.ReviewCountOf(reviewCount); err != nil {
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, err.Error())
		return
	}
	var radius float64
	if !req.Coverage.All {
		if _, err := settings.CoverageOf(req.Coverage.Km); err != nil {
			api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, err.Error())
			return
		}
		radius = req.Coverage.Km
	}
	if req.Location != nil && !req.Location.Valid() {
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Invalid user location")
		return
	}
	filter, err := backend.DecodeOpeningFilter(req.OpeningFilter)
	if err != nil {
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, err.Error())
		return
	}

	shops := s.catalogue.Search(Query{
		Product:  product,
		Origin:   req.Location,
		RadiusKm: radius,
		Filter:   filter,
		Exclude:  req.ExcludePlaceIDs,
		Limit:    s.pageSize,
	})
	if len(shops) == 0 {
		api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNoShops, "No shops found")
		return
	}

	resp := backend.SearchResponse{Shops: make([]backend.ShopWire, 0, len(shops))}
	for _, sh := range shops {
		if len(sh.Reviews) > reviewCount {
			sh.Reviews = sh.Reviews[:reviewCount:reviewCount]
		}
		sh.Explanation = describe(Explain(combinedReviews(sh)))
		resp.Shops = append(resp.Shops, backend.ShopToWire(sh))
	}
	api.WriteJSON(w, ctx, http.StatusOK, resp)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req backend.ExplainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	var text string
	switch {
	case req.PlaceID != "":
		listing, ok := s.catalogue.Lookup(req.PlaceID)
		if !ok {
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Shop not found")
			return
		}
		text = combinedReviews(listing.Shop)
	case strings.TrimSpace(req.Review) != "":
		text = req.Review
	default:
		api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "Invalid review text")
		return
	}
	api.WriteJSON(w, ctx, http.StatusOK, backend.ExplainResponse{Explanation: Explain(text)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.WriteError(w, r.Context(), http.StatusBadRequest, api.ErrCodeBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	methodNotAllowed(w, r, method)
	return false
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	api.WriteError(w, r.Context(), http.StatusMethodNotAllowed, api.ErrCodeMethodNotAllowed, "Method not allowed")
}
