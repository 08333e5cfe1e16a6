package connector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCredentials(t *testing.T) {
	tests := []struct {
		name     string
		strategy AuthStrategy
		blob     string
		missing  []string
	}{
		{
			name:     "client credentials complete",
			strategy: StrategyClientCredentials,
			blob:     `{"client_id":"abc","client_secret":"s3cret"}`,
		},
		{
			name:     "client credentials missing secret",
			strategy: StrategyClientCredentials,
			blob:     `{"client_id":"abc"}`,
			missing:  []string{"client_secret"},
		},
		{
			name:     "rotating pair complete",
			strategy: StrategyAuthorizationCode,
			blob:     `{"access_token":"at","refresh_token":"rt"}`,
		},
		{
			name:     "rotating pair without refresh token",
			strategy: StrategyAuthorizationCode,
			blob:     `{"access_token":"at"}`,
			missing:  []string{"refresh_token"},
		},
		{
			name:     "session triple complete",
			strategy: StrategySession,
			blob:     `{"username":"ops@acme.test","password":"pw","database":"acme"}`,
		},
		{
			name:     "session missing password",
			strategy: StrategySession,
			blob:     `{"username":"ops@acme.test"}`,
			missing:  []string{"password"},
		},
		{
			name:     "api key",
			strategy: StrategyAPIKey,
			blob:     `{"api_key":"samsara_api_xyz"}`,
		},
		{
			name:     "api key as basic auth pair",
			strategy: StrategyAPIKey,
			blob:     `{"username":"u","password":"p"}`,
		},
		{
			name:     "api key empty",
			strategy: StrategyAPIKey,
			blob:     `{}`,
			missing:  []string{"api_key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := DecodeCredentials("testprov", tt.strategy, []byte(tt.blob))
			if len(tt.missing) == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.strategy, creds.Strategy)
				return
			}

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "testprov", cfgErr.Provider)
			assert.Equal(t, tt.missing, cfgErr.Missing)
		})
	}
}

func TestDecodeCredentialsEmptyBlob(t *testing.T) {
	_, err := DecodeCredentials("testprov", StrategySession, nil)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"credentials"}, cfgErr.Missing)
	assert.True(t, IsTerminal(err))
}

func TestCredentialsEncodeRoundTrip(t *testing.T) {
	creds, err := DecodeCredentials("testprov", StrategyAuthorizationCode,
		[]byte(`{"access_token":"at","refresh_token":"rt"}`))
	require.NoError(t, err)

	creds.Rotating.AccessToken = "at2"
	creds.Rotating.RefreshToken = "rt2"

	blob, err := creds.Encode()
	require.NoError(t, err)

	again, err := DecodeCredentials("testprov", StrategyAuthorizationCode, blob)
	require.NoError(t, err)
	assert.Equal(t, "at2", again.Rotating.AccessToken)
	assert.Equal(t, "rt2", again.Rotating.RefreshToken)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		terminal  bool
		transient bool
	}{
		{"auth error", &AuthError{Provider: "p", Reason: "revoked"}, true, false},
		{"config error", &ConfigError{Provider: "p", Missing: []string{"client_id"}}, true, false},
		{"transient error", &TransientError{Op: "fetch", Err: errors.New("timeout")}, false, true},
		{"rate limited", &RateLimitedError{Provider: "p"}, false, true},
		{"plain error", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, IsTerminal(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestErrorTaxonomyWrapped(t *testing.T) {
	wrapped := &TransientError{
		Op:  "fetch vehicles",
		Err: &AuthError{Provider: "p", Reason: "token rejected mid-sync"},
	}

	// A terminal cause stays terminal through transient wrapping.
	assert.True(t, IsTerminal(wrapped))
}
