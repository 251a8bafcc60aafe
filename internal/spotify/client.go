package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/shared"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.spotify.com/v1"

// TokenSource supplies valid bearer tokens for API calls.
//
// ForceRefresh is invoked when the API rejects a token that still looked valid locally.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Options configures a [Client]. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Timeout     time.Duration // hard per-call timeout, retries included
	BackoffBase time.Duration
	MaxAttempts int
	RateLimit   float64 // client-side requests per second
}

// Client is a rate-aware Spotify Web API wrapper.
//
// Transient failures (connection errors, 5xx) are retried with exponential
// backoff, a single 429 is honored via Retry-After, and a 401 triggers exactly
// one forced token refresh. Errors that survive retries map onto the
// shared sentinel taxonomy ([shared.ErrRateLimited], [shared.ErrUnavailable],
// [shared.ErrUnauthorized], [shared.ErrAmbiguous]).
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenSource
	limiter     *rate.Limiter
	logger      *log.Logger
	timeout     time.Duration
	backoffBase time.Duration
	maxAttempts int
	sleep       func(context.Context, time.Duration) error
}

// NewClient creates a Spotify API client backed by the given token source.
func NewClient(tokens TokenSource, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 250 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}

	return &Client{
		baseURL:     opts.BaseURL,
		httpClient:  opts.HTTPClient,
		tokens:      tokens,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), int(opts.RateLimit)),
		logger:      opts.Logger,
		timeout:     opts.Timeout,
		backoffBase: opts.BackoffBase,
		maxAttempts: opts.MaxAttempts,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// callOpts flags how a request may be retried and how player-specific
// statuses are interpreted.
type callOpts struct {
	idempotent bool
	player     bool
}

// call performs an authenticated request with the gateway's retry policy.
//
// Non-idempotent commands (next/previous) are never re-issued once their
// outcome is unknown; the ambiguity is surfaced so the dispatcher can re-poll
// before deciding to retry.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any, opts callOpts) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	apiURL := c.baseURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var failures int
	var rateLimited, refreshed bool

	for {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to obtain credential: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if !opts.idempotent {
				return fmt.Errorf("%w: %s %s: %v", shared.ErrAmbiguous, method, path, err)
			}
			failures++
			if failures >= c.maxAttempts {
				return fmt.Errorf("%w: %s %s: %v", shared.ErrUnavailable, method, path, err)
			}
			if err := c.backoff(ctx, failures); err != nil {
				return err
			}
			continue
		}

		retry, err := c.handleResponse(ctx, resp, method, path, out, &failures, &rateLimited, &refreshed, opts)
		if !retry {
			return err
		}
	}
}

// handleResponse consumes one HTTP response, returning retry=true when the
// call loop should issue another attempt.
func (c *Client) handleResponse(ctx context.Context, resp *http.Response, method, path string, out any, failures *int, rateLimited, refreshed *bool, opts callOpts) (retry bool, err error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return false, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
		return false, nil

	case resp.StatusCode == http.StatusUnauthorized:
		if *refreshed {
			return false, fmt.Errorf("%w: %s %s", shared.ErrUnauthorized, method, path)
		}
		*refreshed = true
		c.logger.Warn("got 401 with a valid-looking token, forcing refresh", "path", path)
		if _, err := c.tokens.ForceRefresh(ctx); err != nil {
			return false, fmt.Errorf("forced refresh failed: %w", err)
		}
		return true, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		if *rateLimited {
			return false, fmt.Errorf("%w: %s %s", shared.ErrRateLimited, method, path)
		}
		*rateLimited = true
		wait := retryAfter(resp)
		c.logger.Warn("rate limited, honoring Retry-After", "path", path, "wait", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return false, err
		}
		return true, nil

	case resp.StatusCode == http.StatusNotFound:
		if opts.player {
			return false, fmt.Errorf("%w: %s %s", shared.ErrNoActiveDevice, method, path)
		}
		return false, fmt.Errorf("spotify API error: %s %s: status 404", method, path)

	case resp.StatusCode >= 500:
		if !opts.idempotent {
			return false, fmt.Errorf("%w: %s %s: status %d", shared.ErrAmbiguous, method, path, resp.StatusCode)
		}
		*failures++
		if *failures >= c.maxAttempts {
			return false, fmt.Errorf("%w: %s %s: status %d", shared.ErrUnavailable, method, path, resp.StatusCode)
		}
		if err := c.backoff(ctx, *failures); err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, fmt.Errorf("spotify API error: %s %s: status %d", method, path, resp.StatusCode)
	}
}

func (c *Client) backoff(ctx context.Context, failures int) error {
	delay := c.backoffBase * (1 << (failures - 1))
	return c.sleep(ctx, delay)
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}
