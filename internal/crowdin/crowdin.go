// Package crowdin implements the typed HTTP client for the remote
// translation service (spec.md §4.K): storage upload, file/directory
// management, translation upload, build request/poll/download, and
// project metadata for health probes. Requests sent through doJSON
// retry transient failures (5xx, 429, timeouts) with exponential
// backoff up to a configured ceiling and surface permanent failures
// (other 4xx) immediately; UploadStorage makes a single attempt.
package crowdin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/proxyclient"
)

// Config holds everything the client needs to reach one Crowdin project.
type Config struct {
	BaseURL   string // default https://api.crowdin.com/api/v2
	ProjectID string
	Token     string

	SourceLanguage       string
	NamespaceDirectories map[string]string // ns -> directory override ("" | "group")
	LocaleMapping        map[string]string // remoteCode -> internalCode

	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles each subsequent
	// attempt. Defaults to 500ms; tests override it to keep runs fast.
	BaseBackoff time.Duration

	Proxy *proxyclient.ProxyConfig
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.crowdin.com/api/v2"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	return c
}

// Client is the typed Crowdin API client.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logging.Logger
}

// New builds a Client, wiring the proxy-aware HTTP client factory with
// a per-purpose timeout profile sized for Crowdin's build/poll cadence.
func New(cfg Config, log *logging.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	httpClient, err := proxyclient.New(cfg.Proxy, proxyclient.TimeoutConfig{
		TLSHandshake:   10 * time.Second,
		ResponseHeader: cfg.Timeout,
		IdleConnection: 90 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("building crowdin http client: %w", err)
	}
	return &Client{cfg: cfg, http: httpClient, log: log}, nil
}

// apiError carries the status code so callers and the retry loop can
// classify permanent vs transient failures.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("crowdin api returned %d: %s", e.StatusCode, e.Body)
}

func isTransient(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// doJSON issues one HTTP request, retrying transient failures with
// exponential backoff and jitter up to cfg.MaxRetries, and decodes a
// JSON response body into out (if non-nil). The retry/backoff shape
// generalizes the teacher's OAuth refresh's try-then-fallback flow
// (internal/oauth.RefreshToken) into a bounded retry loop.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var bodyBytes []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling crowdin request body: %w", err)
		}
		bodyBytes = encoded
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt, c.cfg.BaseBackoff); err != nil {
				return err
			}
		}

		resp, err := c.doOnce(ctx, method, path, bodyBytes)
		if err != nil {
			lastErr = apperr.IO("crowdin request failed", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = apperr.IO("reading crowdin response", readErr)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("decoding crowdin response: %w", err)
				}
			}
			return nil
		}

		apiErr := &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return apperr.Auth("crowdin authentication rejected: %s", apiErr.Body)
		}
		if !isTransient(resp.StatusCode) {
			return fmt.Errorf("crowdin request permanently failed: %w", apiErr)
		}
		lastErr = apiErr
		if c.log != nil {
			c.log.Warn("crowdin transient failure, retrying", logrus.Fields{"status": resp.StatusCode, "attempt": attempt})
		}
	}
	return fmt.Errorf("crowdin request exhausted %d retries: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func sleepBackoff(ctx context.Context, attempt int, baseBackoff time.Duration) error {
	delay := time.Duration(1<<uint(attempt-1)) * baseBackoff
	jitter := time.Duration(rand.Int63n(int64(delay/2 + 1)))
	select {
	case <-time.After(delay + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
