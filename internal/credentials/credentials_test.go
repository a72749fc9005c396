package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Credentials(t *testing.T) {
	t.Run("Should return the configured triple", func(t *testing.T) {
		creds, err := NewStatic("acme", "Default", "pat").Credentials(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "acme", creds.Organization)
		assert.Equal(t, "Default", creds.Tenant)
		assert.Equal(t, "pat", creds.Token)
	})

	t.Run("Should fail without a token", func(t *testing.T) {
		_, err := NewStatic("acme", "Default", "").Credentials(context.Background())
		assert.ErrorIs(t, err, ErrIncomplete)
	})
}

func TestClientCredentials_Credentials(t *testing.T) {
	t.Run("Should exchange the client secret once and cache the token", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			assert.Equal(t, "app-id", r.PostForm.Get("client_id"))
			assert.Equal(t, "app-secret", r.PostForm.Get("client_secret"))
			assert.Equal(t, "OR.Jobs OR.Folders.Read", r.PostForm.Get("scope"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
		}))
		defer srv.Close()

		p, err := NewClientCredentials(ClientCredentialsConfig{
			Organization: "acme",
			Tenant:       "Default",
			ClientID:     "app-id",
			ClientSecret: "app-secret",
			TokenURL:     srv.URL,
			Scopes:       Scopes("OR.Jobs,OR.Folders.Read"),
		})
		require.NoError(t, err)

		for range 2 {
			creds, err := p.Credentials(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "at-1", creds.Token)
			assert.Equal(t, "acme/Default", creds.String())
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should surface a rejected exchange", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		}))
		defer srv.Close()

		p, err := NewClientCredentials(ClientCredentialsConfig{
			Organization: "acme", Tenant: "Default", ClientID: "id", ClientSecret: "bad", TokenURL: srv.URL,
		})
		require.NoError(t, err)

		_, err = p.Credentials(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to acquire access token")
	})

	t.Run("Should stop waiting when the caller's context ends", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		p, err := NewClientCredentials(ClientCredentialsConfig{
			Organization: "acme", Tenant: "Default", ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = p.Credentials(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Should require the application identity", func(t *testing.T) {
		_, err := NewClientCredentials(ClientCredentialsConfig{Organization: "acme", Tenant: "Default"})
		assert.ErrorIs(t, err, ErrIncomplete)
	})
}

func TestScopes(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Scopes("a, b c"))
	assert.Empty(t, Scopes(""))
}
