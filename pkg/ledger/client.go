// Package ledger provides a client for the GitHub Packages container
// version API, the system of record for which versions a package has.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/marmos91/regsweep/internal/logger"
)

// Client defaults. GitHub caps page sizes at 100.
const (
	DefaultBaseURL  = "https://api.github.com"
	DefaultPageSize = 100
	MaxPageSize     = 100
	DefaultRetryMax = 3
	DefaultTimeout  = 30 * time.Second

	apiVersion = "2022-11-28"
)

// OwnerKind selects between the user and organization package namespaces.
type OwnerKind string

const (
	OwnerUser OwnerKind = "user"
	OwnerOrg  OwnerKind = "org"
)

// ParseOwnerKind parses a configured owner kind.
func ParseOwnerKind(s string) (OwnerKind, error) {
	switch OwnerKind(strings.ToLower(strings.TrimSpace(s))) {
	case OwnerUser, "":
		return OwnerUser, nil
	case OwnerOrg:
		return OwnerOrg, nil
	}
	return "", fmt.Errorf("invalid owner kind %q: must be %q or %q", s, OwnerUser, OwnerOrg)
}

// Client is the GitHub Packages API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	ownerKind  OwnerKind
	pageSize   int
	retryMax   int
	timeout    time.Duration
	limiter    *rate.Limiter
}

// New creates a new ledger client against baseURL.
func New(baseURL string) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		ownerKind: OwnerUser,
		pageSize:  DefaultPageSize,
		retryMax:  DefaultRetryMax,
		timeout:   DefaultTimeout,
	}
	c.httpClient = c.buildHTTPClient()
	return c
}

// WithToken returns a new client with the given token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// WithOwnerKind returns a new client addressing the given namespace.
func (c *Client) WithOwnerKind(kind OwnerKind) *Client {
	cp := *c
	cp.ownerKind = kind
	return &cp
}

// WithPageSize returns a new client enumerating size versions per page.
func (c *Client) WithPageSize(size int) *Client {
	cp := *c
	switch {
	case size <= 0:
		cp.pageSize = DefaultPageSize
	case size > MaxPageSize:
		cp.pageSize = MaxPageSize
	default:
		cp.pageSize = size
	}
	return &cp
}

// WithRetryMax returns a new client retrying failed requests up to n times.
func (c *Client) WithRetryMax(n int) *Client {
	cp := *c
	cp.retryMax = n
	cp.httpClient = cp.buildHTTPClient()
	return &cp
}

// WithTimeout returns a new client with the given per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.timeout = timeout
	cp.httpClient = cp.buildHTTPClient()
	return &cp
}

// WithRateLimit returns a new client capped at rps requests per second,
// with a burst of the same size. Zero or negative disables the cap.
func (c *Client) WithRateLimit(rps int) *Client {
	cp := *c
	if rps <= 0 {
		cp.limiter = nil
		return &cp
	}
	cp.limiter = rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), rps)
	return &cp
}

func (c *Client) buildHTTPClient() *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = c.retryMax
	rc.HTTPClient.Timeout = c.timeout
	rc.Logger = retryLogger{}
	return rc.StandardClient()
}

// retryLogger forwards retryablehttp's internal logging to the shared
// logger. Per-request lines go to debug so normal runs stay quiet.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...any) { logger.Error(msg, keysAndValues...) }
func (retryLogger) Warn(msg string, keysAndValues ...any)  { logger.Warn(msg, keysAndValues...) }
func (retryLogger) Info(msg string, keysAndValues ...any)  { logger.Debug(msg, keysAndValues...) }
func (retryLogger) Debug(msg string, keysAndValues ...any) { logger.Debug(msg, keysAndValues...) }

// do performs an HTTP request and decodes the response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			apiErr.StatusCode = resp.StatusCode
			return &apiErr
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	return c.do(ctx, http.MethodGet, path, query, result)
}

// delete performs a DELETE request.
func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
