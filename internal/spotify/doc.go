// Package spotify wraps the Spotify Web API behind a rate-aware HTTP gateway.
//
// # Retry policy
//
// Every call first obtains a valid credential from its [TokenSource]. The
// gateway retries locally so that transient failures never surface to callers:
//
//   - HTTP 429: the Retry-After duration is honored once; a second 429 within
//     the same call surfaces [shared.ErrRateLimited].
//   - HTTP 5xx and connection failures: exponential backoff (base 250ms,
//     factor 2) up to a bounded attempt count, then [shared.ErrUnavailable].
//   - HTTP 401: one forced token refresh and a single retry, then
//     [shared.ErrUnauthorized].
//
// Non-idempotent commands (next/previous) are the exception: once an attempt's
// outcome is unknown they are never re-issued. The caller receives
// [shared.ErrAmbiguous] and can re-poll before deciding to retry.
//
// A client-side [rate.Limiter] paces requests below the service's limits, and
// every call carries a hard timeout covering all retries.
package spotify
