// Package server hosts the short-lived HTTP callback used by the OAuth
// authorization-code flow.
//
// When the user runs `strum auth`, a temporary server starts on the configured
// redirect address, receives the provider's callback, validates the state
// parameter (CSRF protection), exchanges the code for tokens with the PKCE
// verifier, and shuts down.
//
// [OAuthHandler] only processes one callback to prevent replay; its result is
// delivered on a channel so the caller can race it against a context deadline.
package server
