package connector

import (
	"errors"
	"fmt"
	"time"
)

// AuthError is terminal: the provider rejected or revoked the stored
// credentials. The scheduler must not retry the connection until an operator
// reconnects it.
type AuthError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s auth failed: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s auth failed: %s", e.Provider, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConfigError means required credential or config fields are missing before
// any network call was made. No retry can succeed without operator
// intervention, so scheduling treats it like an auth failure.
type ConfigError struct {
	Provider string
	Missing  []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s configuration incomplete: missing %v", e.Provider, e.Missing)
}

// TransientError covers network failures, timeouts and provider 5xx
// responses. The next scheduled tick retries; no state escalation beyond the
// failure counter.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RateLimitedError is a transient failure where the provider signalled
// throttling. RetryAfter carries the provider hint when one was supplied.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Provider)
}

// ItemError records one malformed or unmappable item inside a batch. It is
// collected per item and never fails the batch.
type ItemError struct {
	ExternalID string
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.ExternalID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// IsTerminal reports whether err requires operator intervention (auth
// rejected or configuration incomplete) and must flip the integration into
// the error state.
func IsTerminal(err error) bool {
	var authErr *AuthError
	var cfgErr *ConfigError
	return errors.As(err, &authErr) || errors.As(err, &cfgErr)
}

// IsTransient reports whether err is safe to retry on the next tick.
func IsTransient(err error) bool {
	var transient *TransientError
	var limited *RateLimitedError
	return errors.As(err, &transient) || errors.As(err, &limited)
}
