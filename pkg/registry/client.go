// Package registry provides a client for the OCI distribution API at
// ghcr.io, covering the manifest reads the reconciliation needs.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/time/rate"

	"github.com/marmos91/regsweep/internal/logger"
)

// Client defaults.
const (
	DefaultBaseURL  = "https://ghcr.io"
	DefaultRetryMax = 3
	DefaultTimeout  = 30 * time.Second
)

// Docker media types still served by ghcr.io for older images.
const (
	mediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	mediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
)

var acceptHeader = strings.Join([]string{
	ocispec.MediaTypeImageIndex,
	mediaTypeDockerManifestList,
	ocispec.MediaTypeImageManifest,
	mediaTypeDockerManifest,
}, ", ")

// Client is an OCI distribution API client bound to one registry host.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *tokenSource
	limiter    *rate.Limiter
	retryMax   int
	timeout    time.Duration
}

// New creates a new registry client against baseURL.
func New(baseURL string) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		retryMax: DefaultRetryMax,
		timeout:  DefaultTimeout,
	}
	c.httpClient = c.buildHTTPClient()
	c.tokens = newTokenSource(c.httpClient)
	return c
}

// WithToken returns a new client authenticating token exchanges with the
// given token (a GitHub PAT for ghcr.io). An empty token keeps exchanges
// anonymous, which public packages allow.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.tokens = newTokenSource(cp.httpClient)
	cp.tokens.setCredentials("token", token)
	return &cp
}

// WithRetryMax returns a new client retrying failed requests up to n times.
func (c *Client) WithRetryMax(n int) *Client {
	cp := *c
	cp.retryMax = n
	cp.httpClient = cp.buildHTTPClient()
	cp.tokens = cp.tokens.withHTTPClient(cp.httpClient)
	return &cp
}

// WithTimeout returns a new client with the given per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.timeout = timeout
	cp.httpClient = cp.buildHTTPClient()
	cp.tokens = cp.tokens.withHTTPClient(cp.httpClient)
	return &cp
}

// WithRateLimit returns a new client capped at rps requests per second.
// Zero or negative disables the cap.
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
	rc.Logger = registryRetryLogger{}
	return rc.StandardClient()
}

type registryRetryLogger struct{}

func (registryRetryLogger) Error(msg string, keysAndValues ...any) { logger.Error(msg, keysAndValues...) }
func (registryRetryLogger) Warn(msg string, keysAndValues ...any)  { logger.Warn(msg, keysAndValues...) }
func (registryRetryLogger) Info(msg string, keysAndValues ...any)  { logger.Debug(msg, keysAndValues...) }
func (registryRetryLogger) Debug(msg string, keysAndValues ...any) { logger.Debug(msg, keysAndValues...) }

// Ping checks that the registry speaks the distribution API and that the
// configured credentials, if any, are accepted.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, c.baseURL+"/v2/", "registry")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return newError(resp, "registry")
	}
	return nil
}

// ManifestDigests resolves reference within repo and returns the digests
// its manifest list names, in list order. Entries without a digest are
// logged and skipped. The list is returned as fetched: deciding whether an
// empty list is acceptable is the caller's call.
func (c *Client) ManifestDigests(ctx context.Context, repo, reference string) ([]digest.Digest, error) {
	index, err := c.getManifest(ctx, repo, reference)
	if err != nil {
		return nil, err
	}

	digests := make([]digest.Digest, 0, len(index.Manifests))
	for i, m := range index.Manifests {
		if m.Digest == "" {
			logger.Warn("manifest list entry without digest, skipping",
				logger.KeyReference, reference,
				"entry", i,
				logger.KeyMediaType, m.MediaType)
			continue
		}
		digests = append(digests, m.Digest)
	}
	return digests, nil
}

// getManifest fetches and decodes one manifest by tag or digest. Plain
// image manifests decode to an index with no entries, which callers treat
// the same as an empty manifest list.
func (c *Client) getManifest(ctx context.Context, repo, reference string) (*ocispec.Index, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", c.baseURL, repo, reference)

	resp, err := c.get(ctx, url, repo)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(resp, reference)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest body: %w", err)
	}

	var index ocispec.Index
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %q: %w", reference, err)
	}
	return &index, nil
}

// get performs one authenticated GET. On a 401 challenge it exchanges a
// bearer token for the repository scope and retries once.
func (c *Client) get(ctx context.Context, url, repo string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.doGet(ctx, url, c.tokens.cachedFor(repo))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	ch, chErr := parseChallenge(resp.Header.Get("WWW-Authenticate"))
	_ = resp.Body.Close()
	if chErr != nil {
		return nil, fmt.Errorf("registry auth: %w", chErr)
	}

	token, err := c.tokens.bearer(ctx, repo, ch)
	if err != nil {
		return nil, err
	}
	return c.doGet(ctx, url, token)
}

func (c *Client) doGet(ctx context.Context, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
