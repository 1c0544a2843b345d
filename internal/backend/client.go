// Package backend is the HTTP client for the ranking service and the
// identity service, plus the JSON wire types both sides share.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onnwee/shopfinder/internal/api"
	"github.com/onnwee/shopfinder/internal/middleware"
	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/shop"
	"github.com/onnwee/shopfinder/internal/tracing"
	"github.com/onnwee/shopfinder/internal/validate"
)

// ErrTransport wraps failures to reach the backend, including timeouts.
var ErrTransport = errors.New("backend unreachable")

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// StatusError is a non-2xx response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// Config configures a Client.
type Config struct {
	// BaseURL of the ranking service. Required.
	BaseURL string
	// IdentityURL serves login and token verification. Defaults to BaseURL.
	IdentityURL string
	// HTTPClient is wrapped with tracing, request-id and logging transports.
	HTTPClient *http.Client
	// Timeout per call. Zero keeps the HTTP client's own setting.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client calls the backend. Safe for concurrent use.
type Client struct {
	base     *url.URL
	identity *url.URL
	http     *http.Client
	logger   *slog.Logger
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	identity := base
	if cfg.IdentityURL != "" {
		if identity, err = parseBaseURL(cfg.IdentityURL); err != nil {
			return nil, fmt.Errorf("identity url: %w", err)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		*hc = *cfg.HTTPClient
	}
	hc.Transport = tracing.Transport(&middleware.RequestIDTransport{
		Base: &middleware.LoggingTransport{Base: hc.Transport, Logger: cfg.Logger},
	})
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}

	return &Client{base: base, identity: identity, http: hc, logger: cfg.Logger}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := validate.URL(raw, validate.ServiceURLConstraints)
	if err != nil {
		return nil, err
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp LoginResponse
	if err := c.do(ctx, c.identity, http.MethodPost, PathLogin, LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.IDToken == "" {
		return "", errors.New("login response carried no token")
	}
	return resp.IDToken, nil
}

// VerifySession asks the identity service whether token is valid.
func (c *Client) VerifySession(ctx context.Context, token string) (bool, error) {
	var resp VerifyResponse
	if err := c.do(ctx, c.identity, http.MethodPost, PathVerify, TokenRequest{IDToken: token}, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// GetReviewSettings loads the settings stored for the session's owner.
func (c *Client) GetReviewSettings(ctx context.Context, token string) (settings.ReviewSettings, error) {
	var resp SettingsWire
	if err := c.do(ctx, c.base, http.MethodPost, PathReviewSettings, TokenRequest{IDToken: token}, &resp); err != nil {
		return settings.ReviewSettings{}, err
	}
	s, err := DecodeSettings(resp)
	if err != nil {
		return settings.ReviewSettings{}, fmt.Errorf("decode review settings: %w", err)
	}
	return s, nil
}

// UpdateReviewSettings stores s for the session's owner.
func (c *Client) UpdateReviewSettings(ctx context.Context, token string, s settings.ReviewSettings) error {
	var resp MessageResponse
	return c.do(ctx, c.base, http.MethodPut, PathReviewSettings, EncodeSettings(token, s), &resp)
}

// SearchShops runs one search. A 404 means nothing matched and is returned
// as an empty result.
func (c *Client) SearchShops(ctx context.Context, req shop.SearchRequest) ([]shop.Shop, error) {
	var resp SearchResponse
	err := c.do(ctx, c.base, http.MethodPost, PathSearch, EncodeSearch(req), &resp)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	shops := make([]shop.Shop, 0, len(resp.Shops))
	for _, w := range resp.Shops {
		shops = append(shops, w.ToShop())
	}
	return shops, nil
}

// ExplainReview returns the token weights behind the rating predicted for
// a review text.
func (c *Client) ExplainReview(ctx context.Context, review string) (shop.Explanation, error) {
	return c.explain(ctx, ExplainRequest{Review: review})
}

// ExplainShop returns the token weights behind a shop's predicted rating.
func (c *Client) ExplainShop(ctx context.Context, placeID string) (shop.Explanation, error) {
	return c.explain(ctx, ExplainRequest{PlaceID: placeID})
}

func (c *Client) explain(ctx context.Context, req ExplainRequest) (shop.Explanation, error) {
	var resp ExplainResponse
	if err := c.do(ctx, c.base, http.MethodPost, PathExplain, req, &resp); err != nil {
		return nil, err
	}
	return resp.Explanation, nil
}

func (c *Client) do(ctx context.Context, base *url.URL, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	endpoint := *base
	endpoint.Path = base.Path + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{Status: resp.StatusCode}
		if detail, ok := api.ParseError(raw); ok {
			se.Code = detail.Code
			se.Message = detail.Message
		} else {
			se.Message = strings.TrimSpace(string(raw))
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
