package schoolapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Failure is a typed fault from the school records service: a transport
// error, a non-2xx status, or an unparseable body.
type Failure struct {
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Status > 0 {
		return fmt.Sprintf("school api failed with status %d", f.Status)
	}
	return fmt.Sprintf("school api request failed: %v", f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// TokenProvider supplies the Access-Token header value per request.
type TokenProvider interface {
	Token() string
}

// StaticTokenProvider returns the same token for every request.
type StaticTokenProvider string

func (p StaticTokenProvider) Token() string { return string(p) }

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client performs authenticated GET requests against the school records
// service and hands back the raw JSON body.
type Client struct {
	cfg        Config
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, tokens TokenProvider, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.classpilot.example/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		logger: logger,
	}
}

// Get fetches path with the given query parameters and returns the raw JSON
// body. Every failure mode comes back as a *Failure so callers can decide how
// to render it.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Failure{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		// An empty token means no header at all, not an empty one.
		if token := strings.TrimSpace(c.tokens.Token()); token != "" {
			req.Header.Set("Access-Token", token)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("school api request failed", "path", path, "error", err)
		return nil, &Failure{Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, &Failure{Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("school api request rejected", "path", path, "status", res.StatusCode)
		return nil, &Failure{Status: res.StatusCode, Err: fmt.Errorf("unexpected status %d", res.StatusCode)}
	}
	if !json.Valid(body) {
		return nil, &Failure{Status: res.StatusCode, Err: fmt.Errorf("response body is not valid JSON")}
	}
	return json.RawMessage(body), nil
}
