// Package auth guards the HTTP surface with OpenID Connect bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"

	"orchestrator-runner/internal/config"
	"orchestrator-runner/internal/logging"
)

type contextKey struct{}

// Caller identifies the authenticated principal of a request.
type Caller struct {
	Subject string
	Email   string
	Scopes  []string
}

// HasScope reports whether the caller was granted scope.
func (c Caller) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, caller)
}

// CallerFrom returns the caller stored in ctx by RequireAuth.
func CallerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(contextKey{}).(Caller)
	return caller, ok
}

// devCaller is the identity every request gets when authentication is bypassed.
var devCaller = Caller{Subject: "dev", Email: "dev@localhost", Scopes: AllScopes}

// Auth verifies access tokens issued by the configured provider.
type Auth struct {
	apiVerifier *oidc.IDTokenVerifier
	logger      logging.Logger
	authBypass  bool
}

// New creates a new Auth object using values from the application
// configuration. It discovers the provider and prepares an access token
// verifier. In DEV with dev_mode_bypass set no provider is contacted.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Auth, error) {
	if logger == nil {
		logger = logging.Nop
	}
	if cfg.BypassAuth() {
		logger.Warn("authentication bypassed", "environment", cfg.Auth.Environment)
		return &Auth{logger: logger, authBypass: true}, nil
	}
	if cfg.Auth.Issuer == "" {
		return nil, errors.New("auth configuration is incomplete: issuer is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	// Access tokens usually carry an API audience rather than the client id.
	verifierConfig := &oidc.Config{ClientID: cfg.Auth.ClientID, SkipClientIDCheck: cfg.Auth.ClientID == ""}
	return &Auth{
		apiVerifier: provider.Verifier(verifierConfig),
		logger:      logger,
	}, nil
}

// RequireAuth is middleware that ensures a valid bearer token is present and
// stores the caller in the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.authBypass {
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), devCaller)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		token, err := a.apiVerifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			a.logger.Debug("token rejected", logging.KeyError, err)
			http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}

		var claims struct {
			Email string   `json:"email"`
			Scope string   `json:"scope"`
			Scp   []string `json:"scp"`
		}
		if err := token.Claims(&claims); err != nil {
			http.Error(w, "failed to parse token claims", http.StatusUnauthorized)
			return
		}

		caller := Caller{Subject: token.Subject, Email: claims.Email, Scopes: claims.Scp}
		if len(caller.Scopes) == 0 && claims.Scope != "" {
			caller.Scopes = strings.Fields(claims.Scope)
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// RequireScope returns middleware rejecting callers without scope. It must
// run after RequireAuth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r.Context())
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if !caller.HasScope(scope) {
				http.Error(w, "missing scope "+scope, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
