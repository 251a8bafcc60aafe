// Package auth owns the Spotify credential: it loads it at startup, hands out
// access tokens that are never within the expiry margin, refreshes them behind
// a single-flight lock, and persists every successful refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// ExpiryMargin is how early a token is treated as stale, so a credential
// handed to a caller cannot expire mid-request.
const ExpiryMargin = 60 * time.Second

// Scopes covers playback control, library access, and playlist reads.
var Scopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-library-read",
	"user-library-modify",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// Persister is the durable storage behind the token store.
type Persister interface {
	Save(ctx context.Context, tok *oauth2.Token) error
	Load(ctx context.Context) (*oauth2.Token, error)
}

// NewConfig builds the OAuth2 config for the PKCE flow (no client secret).
func NewConfig(clientID, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}
}

// Store is the process-wide token store.
//
// Refresh is mutually exclusive: when two callers race on a stale token the
// second blocks until the first's refresh lands, then reuses it.
type Store struct {
	config  *oauth2.Config
	persist Persister
	logger  *log.Logger
	margin  time.Duration
	now     func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

// NewStore creates a token store. The persister may be nil (tokens then live
// only in memory, which some tests rely on).
func NewStore(config *oauth2.Config, persist Persister, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Store{
		config:  config,
		persist: persist,
		logger:  logger,
		margin:  ExpiryMargin,
		now:     time.Now,
	}
}

// SetToken installs a freshly authorized token and persists it.
func (s *Store) SetToken(ctx context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = tok
	return s.save(ctx, tok)
}

// Token returns a valid access token, refreshing first when the cached one is
// inside the expiry margin. Blocks the caller for the duration of the refresh.
//
// Returns [shared.ErrRefreshDenied] when the remote service rejects the
// refresh token (session revoked); the engine must then suspend until a fresh
// authorization completes.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return "", err
	}

	if s.freshLocked() {
		return s.token.AccessToken, nil
	}

	return s.refreshLocked(ctx)
}

// ForceRefresh discards the cached access token and refreshes unconditionally.
// The gateway calls this when the API returns 401 for a valid-looking token.
func (s *Store) ForceRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return "", err
	}

	return s.refreshLocked(ctx)
}

// Expiry reports when the current credential expires (zero when none is loaded).
func (s *Store) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return time.Time{}
	}
	return s.token.Expiry
}

func (s *Store) loadLocked(ctx context.Context) error {
	if s.token != nil {
		return nil
	}
	if s.persist == nil {
		return shared.ErrNotAuthorized
	}

	tok, err := s.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored credential: %w", err)
	}
	s.token = tok
	return nil
}

// freshLocked applies the safety margin: a token expiring within the margin is
// already stale.
func (s *Store) freshLocked() bool {
	if s.token == nil || s.token.AccessToken == "" {
		return false
	}
	if s.token.Expiry.IsZero() {
		return true
	}
	return s.token.Expiry.After(s.now().Add(s.margin))
}

func (s *Store) refreshLocked(ctx context.Context) (string, error) {
	if s.token == nil || s.token.RefreshToken == "" {
		return "", shared.ErrNoRefreshToken
	}

	// Seed with the refresh token only: a seed that still looks valid would
	// be handed back unchanged instead of refreshed.
	ts := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: s.token.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && isDenial(retrieveErr.Response) {
			return "", fmt.Errorf("%w: %v", shared.ErrRefreshDenied, err)
		}
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	s.token = tok
	s.logger.Debug("refreshed access token", "expiry", tok.Expiry)

	if err := s.save(ctx, tok); err != nil {
		// A persist failure should not invalidate the in-memory refresh.
		s.logger.Error("failed to persist refreshed credential", "error", err)
	}

	return tok.AccessToken, nil
}

func (s *Store) save(ctx context.Context, tok *oauth2.Token) error {
	if s.persist == nil {
		return nil
	}
	return s.persist.Save(ctx, tok)
}

// isDenial distinguishes a rejected refresh token from a transient failure.
func isDenial(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}
