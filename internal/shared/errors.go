package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrMissingClientID = fmt.Errorf("missing Spotify client ID")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrNotAuthorized  = fmt.Errorf("not authorized")
	ErrRefreshDenied  = fmt.Errorf("token refresh denied")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// API errors surfaced by the gateway once local retries exhaust
	ErrRateLimited  = fmt.Errorf("rate limited by API")
	ErrUnavailable  = fmt.Errorf("API unavailable")
	ErrUnauthorized = fmt.Errorf("API rejected credentials")
	ErrAmbiguous    = fmt.Errorf("command outcome unknown")

	// Engine errors
	ErrReconcileTimeout = fmt.Errorf("command effect never observed")
	ErrNoActiveDevice   = fmt.Errorf("no active playback device")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
