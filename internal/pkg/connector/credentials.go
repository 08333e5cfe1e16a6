package connector

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClientCredentials holds tenant-supplied OAuth2 client-credentials material
// plus the cached access token issued from it.
type ClientCredentials struct {
	ClientID       string     `json:"client_id"`
	ClientSecret   string     `json:"client_secret"`
	AccessToken    string     `json:"access_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func (c ClientCredentials) missing() []string {
	var m []string
	if c.ClientID == "" {
		m = append(m, "client_id")
	}
	if c.ClientSecret == "" {
		m = append(m, "client_secret")
	}
	return m
}

// RotatingCredentials holds an authorization-code OAuth2 token pair where
// the refresh token is single use. The pair is always read and written as
// one unit; a blob with an access token but no refresh token is the
// signature of an interrupted rotation and is terminal.
type RotatingCredentials struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (c RotatingCredentials) missing() []string {
	var m []string
	if c.AccessToken == "" {
		m = append(m, "access_token")
	}
	if c.RefreshToken == "" {
		m = append(m, "refresh_token")
	}
	return m
}

// SessionCredentials holds the stored username/password/database triple for
// session providers plus the current session identifier.
type SessionCredentials struct {
	Username         string     `json:"username"`
	Password         string     `json:"password"`
	Database         string     `json:"database,omitempty"`
	Server           string     `json:"server,omitempty"`
	SessionID        string     `json:"session_id,omitempty"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`
}

func (c SessionCredentials) missing() []string {
	var m []string
	if c.Username == "" {
		m = append(m, "username")
	}
	if c.Password == "" {
		m = append(m, "password")
	}
	return m
}

// APIKeyCredentials holds static key or basic-auth material. Nothing to
// refresh.
type APIKeyCredentials struct {
	APIKey   string `json:"api_key,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

func (c APIKeyCredentials) missing() []string {
	if c.APIKey == "" && (c.Username == "" || c.Password == "") {
		return []string{"api_key"}
	}
	return nil
}

// Credentials is the decoded form of a tenant integration's credential blob.
// Exactly one of the payload fields is set, matching the strategy.
type Credentials struct {
	Strategy AuthStrategy

	Client   *ClientCredentials
	Rotating *RotatingCredentials
	Session  *SessionCredentials
	APIKey   *APIKeyCredentials
}

// DecodeCredentials parses a stored blob for the given strategy and verifies
// the fields no network call can succeed without. Missing fields come back
// as a ConfigError.
func DecodeCredentials(provider string, strategy AuthStrategy, blob []byte) (Credentials, error) {
	creds := Credentials{Strategy: strategy}
	if len(blob) == 0 {
		return creds, &ConfigError{Provider: provider, Missing: []string{"credentials"}}
	}

	var missing []string
	switch strategy {
	case StrategyClientCredentials:
		var c ClientCredentials
		if err := json.Unmarshal(blob, &c); err != nil {
			return creds, &ConfigError{Provider: provider, Missing: []string{"credentials"}}
		}
		creds.Client = &c
		missing = c.missing()
	case StrategyAuthorizationCode:
		var c RotatingCredentials
		if err := json.Unmarshal(blob, &c); err != nil {
			return creds, &ConfigError{Provider: provider, Missing: []string{"credentials"}}
		}
		creds.Rotating = &c
		missing = c.missing()
	case StrategySession:
		var c SessionCredentials
		if err := json.Unmarshal(blob, &c); err != nil {
			return creds, &ConfigError{Provider: provider, Missing: []string{"credentials"}}
		}
		creds.Session = &c
		missing = c.missing()
	case StrategyAPIKey:
		var c APIKeyCredentials
		if err := json.Unmarshal(blob, &c); err != nil {
			return creds, &ConfigError{Provider: provider, Missing: []string{"credentials"}}
		}
		creds.APIKey = &c
		missing = c.missing()
	default:
		return creds, fmt.Errorf("unknown auth strategy %q", strategy)
	}

	if len(missing) > 0 {
		return creds, &ConfigError{Provider: provider, Missing: missing}
	}
	return creds, nil
}

// Encode serializes the decoded credentials back into a storable blob.
func (c Credentials) Encode() ([]byte, error) {
	switch c.Strategy {
	case StrategyClientCredentials:
		return json.Marshal(c.Client)
	case StrategyAuthorizationCode:
		return json.Marshal(c.Rotating)
	case StrategySession:
		return json.Marshal(c.Session)
	case StrategyAPIKey:
		return json.Marshal(c.APIKey)
	}
	return nil, fmt.Errorf("unknown auth strategy %q", c.Strategy)
}
