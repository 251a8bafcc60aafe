// package testing contains shared testing utilities
package testing

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// StaticTokens is a [spotify.TokenSource] test double handing out fixed tokens
// and counting forced refreshes.
type StaticTokens struct {
	mu        sync.Mutex
	AccessTok string
	Refreshed int
	TokenErr  error
}

func (s *StaticTokens) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TokenErr != nil {
		return "", s.TokenErr
	}
	if s.AccessTok == "" {
		return "test-token", nil
	}
	return s.AccessTok, nil
}

func (s *StaticTokens) ForceRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Refreshed++
	if s.AccessTok == "" {
		return "refreshed-token", nil
	}
	return s.AccessTok, nil
}

func (s *StaticTokens) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Refreshed
}

// MemoryPersister is an in-memory [auth.Persister] recording every save.
type MemoryPersister struct {
	mu    sync.Mutex
	Tok   *oauth2.Token
	Saves int
}

func (m *MemoryPersister) Save(ctx context.Context, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tok
	m.Tok = &copied
	m.Saves++
	return nil
}

func (m *MemoryPersister) Load(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Tok == nil {
		return nil, ErrNoCredential
	}
	copied := *m.Tok
	return &copied, nil
}

// ErrNoCredential mirrors a store with nothing saved yet.
var ErrNoCredential = &noCredentialError{}

type noCredentialError struct{}

func (*noCredentialError) Error() string { return "no credential saved" }
