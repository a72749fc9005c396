// Package credentials supplies the organization, tenant and bearer token
// used to reach the orchestrator.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"orchestrator-runner/pkg/models"
)

// DefaultTokenURL is the cloud identity endpoint for client credentials.
const DefaultTokenURL = "https://cloud.uipath.com/identity_/connect/token"

// TokenTimeout bounds a single token exchange.
const TokenTimeout = 30 * time.Second

// ErrIncomplete is returned when a provider cannot form the full triple.
var ErrIncomplete = errors.New("credentials are incomplete")

// Static hands out a fixed personal access token.
type Static struct {
	creds models.Credentials
}

// NewStatic creates a provider for a fixed organization, tenant and token.
func NewStatic(organization, tenant, token string) *Static {
	return &Static{creds: models.Credentials{
		Organization: organization,
		Tenant:       tenant,
		Token:        token,
	}}
}

// Credentials returns the configured triple.
func (s *Static) Credentials(context.Context) (models.Credentials, error) {
	if !s.creds.Valid() {
		return models.Credentials{}, fmt.Errorf("%w: organization, tenant and token are required", ErrIncomplete)
	}
	return s.creds, nil
}

// ClientCredentialsConfig configures an external application login.
type ClientCredentialsConfig struct {
	Organization string
	Tenant       string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// ClientCredentials exchanges an application's id and secret for access
// tokens. Tokens are cached and refreshed by oauth2 as they expire.
type ClientCredentials struct {
	organization string
	tenant       string
	config       clientcredentials.Config

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewClientCredentials creates a new ClientCredentials provider.
func NewClientCredentials(cfg ClientCredentialsConfig) (*ClientCredentials, error) {
	if cfg.Organization == "" || cfg.Tenant == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: organization, tenant, client id and secret are required", ErrIncomplete)
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &ClientCredentials{
		organization: cfg.Organization,
		tenant:       cfg.Tenant,
		config: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}, nil
}

// Credentials returns the triple with a currently valid access token. The
// caller's context bounds the wait; the exchange itself is bounded by
// TokenTimeout.
func (c *ClientCredentials) Credentials(ctx context.Context) (models.Credentials, error) {
	type result struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := c.tokenSource(ctx).Token()
		done <- result{token: token, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.Credentials{}, fmt.Errorf("failed to acquire access token: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return models.Credentials{}, fmt.Errorf("failed to acquire access token: %w", r.err)
		}
		return models.Credentials{
			Organization: c.organization,
			Tenant:       c.tenant,
			Token:        r.token.AccessToken,
		}, nil
	}
}

// tokenSource is built lazily so the first caller's context carries the
// HTTP client oauth2 should use. The source outlives that caller, so it
// gets the caller's values without its cancellation, and a client with a
// timeout.
func (c *ClientCredentials) tokenSource(ctx context.Context) oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		base := context.WithoutCancel(ctx)
		client := &http.Client{Timeout: TokenTimeout}
		if hc, ok := base.Value(oauth2.HTTPClient).(*http.Client); ok && hc != nil {
			bounded := *hc
			if bounded.Timeout == 0 {
				bounded.Timeout = TokenTimeout
			}
			client = &bounded
		}
		c.source = c.config.TokenSource(context.WithValue(base, oauth2.HTTPClient, client))
	}
	return c.source
}

// Scopes splits a space or comma separated scope list.
func Scopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
}
