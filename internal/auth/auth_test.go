package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/strumcli/strum/internal/shared"
	tu "github.com/strumcli/strum/internal/testing"
	"golang.org/x/oauth2"
)

// tokenEndpoint is a fake authorization server's token endpoint.
type tokenEndpoint struct {
	mu     sync.Mutex
	hits   int
	status int
	delay  time.Duration
}

func (e *tokenEndpoint) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.hits++
		status := e.status
		delay := e.delay
		e.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != 0 {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-token",
			"token_type":    "Bearer",
			"refresh_token": "fresh-refresh",
			"expires_in":    3600,
		})
	}
}

func (e *tokenEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits
}

func newTestStore(t *testing.T, endpoint *tokenEndpoint) (*Store, *tu.MemoryPersister) {
	t.Helper()
	server := httptest.NewServer(endpoint.handler())
	t.Cleanup(server.Close)

	config := NewConfig("client-id", "http://127.0.0.1:8888/callback")
	config.Endpoint.TokenURL = server.URL

	persister := &tu.MemoryPersister{}
	return NewStore(config, persister, nil), persister
}

func token(access, refresh string, expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
}

func TestStoreToken(t *testing.T) {
	t.Run("Fresh Token Is Returned Unchanged", func(t *testing.T) {
		endpoint := &tokenEndpoint{}
		store, _ := newTestStore(t, endpoint)

		if err := store.SetToken(context.Background(), token("cached", "refresh", time.Now().Add(time.Hour))); err != nil {
			t.Fatalf("failed to seed token: %v", err)
		}

		got, err := store.Token(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "cached" {
			t.Errorf("expected cached token, got %q", got)
		}
		if endpoint.count() != 0 {
			t.Errorf("fresh token must not trigger a refresh, endpoint hit %d times", endpoint.count())
		}
	})

	t.Run("Token Inside Expiry Margin Is Refreshed", func(t *testing.T) {
		endpoint := &tokenEndpoint{}
		store, persister := newTestStore(t, endpoint)

		// Expires in 30s, within the 60s margin.
		store.SetToken(context.Background(), token("stale", "refresh", time.Now().Add(30*time.Second)))

		got, err := store.Token(context.Background())
		if err != nil {
			t.Fatalf("expected refresh to succeed, got %v", err)
		}
		if got != "fresh-token" {
			t.Errorf("expected refreshed token, got %q", got)
		}
		if endpoint.count() != 1 {
			t.Errorf("expected exactly 1 refresh, got %d", endpoint.count())
		}
		if persister.Tok == nil || persister.Tok.AccessToken != "fresh-token" {
			t.Errorf("refreshed token was not persisted: %+v", persister.Tok)
		}
	})

	t.Run("Loads Persisted Token On First Use", func(t *testing.T) {
		endpoint := &tokenEndpoint{}
		store, persister := newTestStore(t, endpoint)

		persister.Save(context.Background(), token("persisted", "refresh", time.Now().Add(time.Hour)))

		got, err := store.Token(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "persisted" {
			t.Errorf("expected the persisted token, got %q", got)
		}
	})

	t.Run("No Credential Means Not Authorized", func(t *testing.T) {
		endpoint := &tokenEndpoint{}
		store, _ := newTestStore(t, endpoint)

		if _, err := store.Token(context.Background()); err == nil {
			t.Error("expected an error without a stored credential")
		}
	})

	t.Run("Missing Refresh Token", func(t *testing.T) {
		endpoint := &tokenEndpoint{}
		store, _ := newTestStore(t, endpoint)

		store.SetToken(context.Background(), token("stale", "", time.Now().Add(-time.Minute)))

		_, err := store.Token(context.Background())
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestStoreRefresh(t *testing.T) {
	t.Run("Denied Refresh Maps To Sentinel", func(t *testing.T) {
		endpoint := &tokenEndpoint{status: http.StatusBadRequest}
		store, _ := newTestStore(t, endpoint)

		store.SetToken(context.Background(), token("stale", "revoked", time.Now().Add(-time.Minute)))

		_, err := store.Token(context.Background())
		if !errors.Is(err, shared.ErrRefreshDenied) {
			t.Errorf("expected ErrRefreshDenied, got %v", err)
		}
	})

	t.Run("Transient Failure Is Not A Denial", func(t *testing.T) {
		endpoint := &tokenEndpoint{status: http.StatusInternalServerError}
		store, _ := newTestStore(t, endpoint)

		store.SetToken(context.Background(), token("stale", "refresh", time.Now().Add(-time.Minute)))

		_, err := store.Token(context.Background())
		if err == nil {
			t.Fatal("expected an error")
		}
		if errors.Is(err, shared.ErrRefreshDenied) {
			t.Error("a 500 from the token endpoint must not be treated as a revoked session")
		}
	})

	t.Run("Concurrent Callers Share One Refresh", func(t *testing.T) {
		endpoint := &tokenEndpoint{delay: 50 * time.Millisecond}
		store, _ := newTestStore(t, endpoint)

		store.SetToken(context.Background(), token("stale", "refresh", time.Now().Add(-time.Minute)))

		var wg sync.WaitGroup
		results := make([]string, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tok, err := store.Token(context.Background())
				if err != nil {
					t.Errorf("caller %d: %v", i, err)
					return
				}
				results[i] = tok
			}(i)
		}
		wg.Wait()

		if endpoint.count() != 1 {
			t.Errorf("expected a single shared refresh, endpoint hit %d times", endpoint.count())
		}
		for i, tok := range results {
			if tok != "fresh-token" {
				t.Errorf("caller %d got %q", i, tok)
			}
		}
	})

	t.Run("ForceRefresh Bypasses A Fresh Token", func(t *testing.T) {
		endpoint := &tokenEndpoint{}
		store, _ := newTestStore(t, endpoint)

		store.SetToken(context.Background(), token("looks-valid", "refresh", time.Now().Add(time.Hour)))

		got, err := store.ForceRefresh(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "fresh-token" {
			t.Errorf("expected a refreshed token, got %q", got)
		}
		if endpoint.count() != 1 {
			t.Errorf("expected 1 refresh, got %d", endpoint.count())
		}
	})
}

func TestNewConfig(t *testing.T) {
	config := NewConfig("client-id", "http://127.0.0.1:8888/callback")
	if config.ClientSecret != "" {
		t.Error("the authorization-code flow with PKCE must not carry a client secret")
	}
	if len(config.Scopes) != len(Scopes) {
		t.Errorf("expected %d scopes, got %d", len(Scopes), len(config.Scopes))
	}
}
