// Package auth implements credential acquisition and the bearer-token
// authenticated HTTP client handed to action handlers.
//
// Token acquisition is abstracted behind TokenSource so the HTTP layer can be
// exercised without a live identity provider. The concrete implementation
// performs the OAuth2 client-credentials flow against the Microsoft identity
// platform; tokens are cached per scope for their advertised lifetime minus a
// refresh margin, mirroring the early-refresh behavior of the upstream token
// endpoint contract (a token is never served within the margin of expiry).
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource supplies a bearer token for a scope. Implementations must be
// safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context, scope string) (string, error)
}

// Credentials configures the client-credentials flow.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// TokenURL overrides the derived endpoint; tests point it at a local server.
	TokenURL string
}

// Complete reports whether all required fields are present.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && (c.TenantID != "" || c.TokenURL != "")
}

// tokenURL derives the v2.0 token endpoint for the tenant unless overridden.
func (c Credentials) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.TenantID)
}

// ClientCredentialsSource acquires tokens via the OAuth2 client-credentials
// grant, one upstream fetch per distinct scope.
type ClientCredentialsSource struct {
	creds Credentials
}

// NewClientCredentialsSource constructs a source for the given credentials.
func NewClientCredentialsSource(creds Credentials) *ClientCredentialsSource {
	return &ClientCredentialsSource{creds: creds}
}

// Token fetches a bearer token for scope. Each call hits the identity
// provider; wrap the source in a Cache for reuse across requests.
func (s *ClientCredentialsSource) Token(ctx context.Context, scope string) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		TokenURL:     s.creds.tokenURL(),
		Scopes:       []string{scope},
	}
	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("token acquisition for scope %q: %w", scope, err)
	}
	return tok.AccessToken, nil
}

// cachedToken is one cache slot: the token value and the time after which it
// must not be served.
type cachedToken struct {
	value     string
	staleAt   time.Time
	fetchedAt time.Time
}

// Cache is a process-wide, concurrency-safe TTL cache over a TokenSource.
// Entries are keyed by scope, lazily populated, and refreshed once stale. The
// margin shortens the effective lifetime so callers never receive a token
// about to expire mid-flight.
type Cache struct {
	src    TokenSource
	ttl    time.Duration
	margin time.Duration

	mu     sync.Mutex
	tokens map[string]cachedToken

	now func() time.Time // test seam
}

// NewCache wraps src with a TTL cache. ttl is the assumed token lifetime
// (identity-platform tokens default to ~1h); margin is subtracted from it
// when computing staleness. A margin >= ttl degenerates to no caching.
func NewCache(src TokenSource, ttl, margin time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if margin < 0 {
		margin = 0
	}
	return &Cache{
		src:    src,
		ttl:    ttl,
		margin: margin,
		tokens: make(map[string]cachedToken),
		now:    time.Now,
	}
}

// Token returns the cached token for scope, fetching a fresh one when the
// slot is empty or stale. Concurrent callers for the same stale scope may
// both fetch; the last write wins, which is harmless for bearer tokens.
func (c *Cache) Token(ctx context.Context, scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	now := c.now()

	c.mu.Lock()
	if t, ok := c.tokens[scope]; ok && now.Before(t.staleAt) {
		c.mu.Unlock()
		return t.value, nil
	}
	c.mu.Unlock()

	value, err := c.src.Token(ctx, scope)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.tokens[scope] = cachedToken{
		value:     value,
		staleAt:   now.Add(c.ttl - c.margin),
		fetchedAt: now,
	}
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops the cached token for scope, forcing a refetch on next use.
func (c *Cache) Invalidate(scope string) {
	c.mu.Lock()
	delete(c.tokens, strings.TrimSpace(scope))
	c.mu.Unlock()
}
