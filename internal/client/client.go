// Package client talks to the thread and reference-data backend over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const maxErrorBody = 512

// Config configures the backend client.
type Config struct {
	BaseURL       string
	ReferencePath string
	ReportsPath   string
	// RetryMax bounds retries of idempotent requests. Uploads and pushes are
	// never retried.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Client implements the reference, upload and download operations.
type Client struct {
	base      *url.URL
	reference string
	reports   string
	read      *retryablehttp.Client
	write     *retryablehttp.Client
	logger    *slog.Logger
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	if cfg.ReferencePath == "" {
		cfg.ReferencePath = "/api/reference-data"
	}
	if cfg.ReportsPath == "" {
		cfg.ReportsPath = "/api/reports"
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		base:      base,
		reference: cfg.ReferencePath,
		reports:   cfg.ReportsPath,
		read:      newHTTPClient(cfg, cfg.RetryMax, logger),
		write:     newHTTPClient(cfg, 0, logger),
		logger:    logger,
	}, nil
}

func newHTTPClient(cfg Config, retryMax int, logger *slog.Logger) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.Logger = logger
	rc.RetryMax = retryMax
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.HTTPClient.Timeout = cfg.Timeout
	// Hand the final response back so callers can map the status themselves.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(c.read, req)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(c.write, req)
}

func (c *Client) do(rc *retryablehttp.Client, req *retryablehttp.Request) (int, []byte, error) {
	resp, err := rc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("backend response", "method", req.Method, "url", req.URL.Path, "status", resp.StatusCode, "bytes", len(body))
	return resp.StatusCode, body, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func statusError(sentinel error, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		return fmt.Errorf("%w: status %d", sentinel, status)
	}
	return fmt.Errorf("%w: status %d: %s", sentinel, status, text)
}
