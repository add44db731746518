package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/regsweep/internal/logger"
)

const (
	// tokenRefreshMargin is how long before expiry a cached token stops
	// being handed out.
	tokenRefreshMargin = 30 * time.Second
	// defaultTokenTTL applies when the token carries no expiry at all,
	// which is what ghcr.io's opaque tokens do.
	defaultTokenTTL = 5 * time.Minute
)

// challenge is a parsed WWW-Authenticate bearer challenge.
type challenge struct {
	realm   string
	service string
	scope   string
}

// parseChallenge parses a header like
//
//	Bearer realm="https://ghcr.io/token",service="ghcr.io",scope="repository:pdcastro/oh_so_smart:pull"
func parseChallenge(header string) (challenge, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return challenge{}, fmt.Errorf("unsupported auth challenge %q", header)
	}

	var ch challenge
	for _, part := range strings.Split(header[len(prefix):], ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "realm":
			ch.realm = value
		case "service":
			ch.service = value
		case "scope":
			ch.scope = value
		}
	}
	if ch.realm == "" {
		return challenge{}, fmt.Errorf("auth challenge without realm: %q", header)
	}
	return ch, nil
}

// tokenResponse is the token endpoint's reply. ghcr.io sends only token;
// other registries add access_token, expires_in and issued_at.
type tokenResponse struct {
	Token       string    `json:"token"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresIn   int       `json:"expires_in,omitempty"`
	IssuedAt    time.Time `json:"issued_at,omitempty"`
}

type bearerToken struct {
	value     string
	expiresAt time.Time
}

// tokenSource exchanges and caches bearer tokens, one per repository
// scope. Exchanges carry the configured credentials as basic auth; without
// credentials the exchange is anonymous, which public packages allow.
type tokenSource struct {
	httpClient *http.Client
	username   string
	password   string

	mu    sync.Mutex
	cache map[string]bearerToken
}

func newTokenSource(httpClient *http.Client) *tokenSource {
	return &tokenSource{
		httpClient: httpClient,
		cache:      make(map[string]bearerToken),
	}
}

func (t *tokenSource) setCredentials(username, password string) {
	t.username = username
	t.password = password
}

// withHTTPClient returns a fresh source using httpClient, keeping the
// credentials and dropping the cache.
func (t *tokenSource) withHTTPClient(httpClient *http.Client) *tokenSource {
	ts := newTokenSource(httpClient)
	ts.username = t.username
	ts.password = t.password
	return ts
}

// cachedFor returns the cached token for repo, or "" when there is none or
// it is about to expire.
func (t *tokenSource) cachedFor(repo string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tok, ok := t.cache[repo]; ok && time.Now().Add(tokenRefreshMargin).Before(tok.expiresAt) {
		return tok.value
	}
	return ""
}

// bearer returns a valid token for repo, exchanging a new one through the
// challenge's realm when the cache cannot serve it.
func (t *tokenSource) bearer(ctx context.Context, repo string, ch challenge) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tok, ok := t.cache[repo]; ok && time.Now().Add(tokenRefreshMargin).Before(tok.expiresAt) {
		return tok.value, nil
	}

	u, err := url.Parse(ch.realm)
	if err != nil {
		return "", fmt.Errorf("invalid token realm %q: %w", ch.realm, err)
	}
	q := u.Query()
	if ch.service != "" {
		q.Set("service", ch.service)
	}
	if ch.scope != "" {
		q.Set("scope", ch.scope)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	if t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", newError(resp, repo)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	value := tr.Token
	if value == "" {
		value = tr.AccessToken
	}
	if value == "" {
		return "", fmt.Errorf("token endpoint %q returned no token", ch.realm)
	}

	expiresAt := tokenExpiry(value, tr, time.Now())
	t.cache[repo] = bearerToken{value: value, expiresAt: expiresAt}
	logger.Debug("bearer token exchanged",
		"scope", ch.scope,
		"expires_at", expiresAt.Format(time.RFC3339))
	return value, nil
}

// tokenExpiry resolves when a token stops being valid: the JWT exp claim
// when the token is a JWT, else issued_at plus expires_in, else a fixed
// TTL for opaque tokens.
func tokenExpiry(token string, tr tokenResponse, now time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	if tr.ExpiresIn > 0 {
		issued := tr.IssuedAt
		if issued.IsZero() {
			issued = now
		}
		return issued.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return now.Add(defaultTokenTTL)
}
