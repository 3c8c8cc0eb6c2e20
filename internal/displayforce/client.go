// Package displayforce implements the HTTP client for the DisplayForce
// visitor-analytics API: paginated visitor queries plus the device-folder and
// device inventory listings used to mirror a client's store tree.
package displayforce

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultPageLimit is the page size used on every paginated request.
const DefaultPageLimit = 1000

// API paths.
const (
	VisitorListPath = "/public/v1/stats/visitor/list"
	FolderListPath  = "/public/v1/device-folder/list"
	DeviceListPath  = "/public/v1/device/list"
)

// ProviderHost is the analytics provider's public API host. Endpoints on this
// host are rewritten through the same-origin proxy prefix when one is
// configured, so browser-origin deployments avoid cross-origin restrictions.
const ProviderHost = "api.displayforce.ai"

// Config carries the per-client provider credentials and endpoint layout.
type Config struct {
	BaseURL           string
	AnalyticsPath     string // defaults to VisitorListPath
	APIToken          string
	CustomHeaderName  string
	CustomHeaderValue string
	ProxyPrefix       string // same-origin proxy mount, e.g. "/api-proxy"
	Timeout           time.Duration
}

// Client talks to the provider API. It is stateless across calls and safe to
// use from concurrent fetch cycles; the breaker and limiter are shared so all
// cycles observe the same provider health.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient builds a provider client from config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.AnalyticsPath == "" {
		cfg.AnalyticsPath = VisitorListPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "displayforce",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		// One request at a time with polite pacing between pages.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		logger:  logger,
	}
}

// EndpointURL resolves a provider path against the configured base,
// substituting the same-origin proxy prefix when the base points at the known
// provider host.
func (c *Client) EndpointURL(path string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.ProxyPrefix != "" {
		if parsed, err := url.Parse(base); err == nil && strings.EqualFold(parsed.Host, ProviderHost) {
			return strings.TrimRight(c.cfg.ProxyPrefix, "/") + path
		}
	}
	return base + path
}

// postJSON issues one POST with the provider headers and decodes the response
// body into out. Non-2xx statuses are returned as *StatusError.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EndpointURL(path), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Token", c.cfg.APIToken)
		if c.cfg.CustomHeaderName != "" {
			req.Header.Set(c.cfg.CustomHeaderName, c.cfg.CustomHeaderValue)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &StatusError{Path: path, StatusCode: resp.StatusCode}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return nil, nil
	})
	return err
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d for %s", e.StatusCode, e.Path)
}
