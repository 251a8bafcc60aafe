package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/server"
	"github.com/strumcli/strum/internal/shared"
	"golang.org/x/oauth2"
)

// Flow runs the interactive PKCE authorization-code flow: it opens the user's
// browser, hosts the redirect callback locally, and exchanges the code.
type Flow struct {
	config      *oauth2.Config
	logger      *log.Logger
	openBrowser func(string) error
}

// NewFlow creates an authorization flow for the given OAuth2 config.
func NewFlow(config *oauth2.Config, logger *log.Logger) *Flow {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Flow{
		config:      config,
		logger:      logger,
		openBrowser: shared.OpenBrowser,
	}
}

// Run performs the flow and returns the authorized token.
//
// Blocks until the provider redirects back to the local callback server, the
// context is canceled, or a ten minute safety deadline passes.
func (f *Flow) Run(ctx context.Context) (*oauth2.Token, error) {
	redirect, err := url.Parse(f.config.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad redirect URI: %v", shared.ErrInvalidConfig, err)
	}

	verifier := oauth2.GenerateVerifier()
	state := shared.GenerateID()

	authURL := f.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	handler := server.NewOAuthHandler(f.config, state, oauth2.VerifierOption(verifier))
	router := server.NewCallbackRouter()
	router.Use(server.RequestLogger(f.logger))
	router.Handler(handler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server on %s: %w", redirect.Host, err)
	}

	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			f.logger.Error("callback server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	f.logger.Info("opening browser for Spotify authorization")
	if err := f.openBrowser(authURL); err != nil {
		f.logger.Warn("could not open browser, visit the URL manually", "url", authURL)
	}

	deadline := time.NewTimer(10 * time.Minute)
	defer deadline.Stop()

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return result.Token, nil
	case <-deadline.C:
		return nil, fmt.Errorf("%w: timed out waiting for authorization", shared.ErrAuthFailed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
