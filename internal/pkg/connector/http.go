package connector

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ClassifyFetchStatus maps a provider data-endpoint response status onto the
// error taxonomy. Returns nil for 2xx. A credential rejection mid-fetch is
// terminal; throttling and server errors are transient.
func ClassifyFetchStatus(provider string, resp *http.Response) error {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{
			Provider: provider,
			Reason:   fmt.Sprintf("data endpoint rejected credentials (status %d)", status),
		}
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{Provider: provider, RetryAfter: RetryAfterHint(resp)}
	default:
		return &TransientError{Op: provider + " fetch", Err: fmt.Errorf("status %d", status)}
	}
}

// RetryAfterHint extracts a provider Retry-After header in seconds form.
func RetryAfterHint(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
