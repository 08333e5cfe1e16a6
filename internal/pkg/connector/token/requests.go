package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/truckwise/truckwise/internal/pkg/connector"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Server    string `json:"server"`
}

// requestClientCredentialsToken performs the OAuth2 client_credentials grant
// against the provider token endpoint.
func (m *Manager) requestClientCredentialsToken(ctx context.Context, desc connector.Descriptor, clientID, clientSecret string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	return m.postTokenForm(ctx, desc, form, clientID, clientSecret)
}

// requestRefreshToken performs the refresh_token grant. For rotating
// providers the response carries a brand new refresh token and the one just
// sent is dead.
func (m *Manager) requestRefreshToken(ctx context.Context, desc connector.Descriptor, refreshToken string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	return m.postTokenForm(ctx, desc, form, desc.ClientID, desc.ClientSecret)
}

func (m *Manager) postTokenForm(ctx context.Context, desc connector.Descriptor, form url.Values, clientID, clientSecret string) (*tokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, desc.RequestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(clientID, clientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &connector.TransientError{Op: desc.Key + " token endpoint", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyAuthStatus(desc.Key, resp.StatusCode, body, connector.RetryAfterHint(resp))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &connector.TransientError{Op: desc.Key + " token response", Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &connector.AuthError{Provider: desc.Key, Reason: "token endpoint returned empty access_token"}
	}
	return &tok, nil
}

// requestSession re-submits the stored username/password/database triple to
// the provider login endpoint.
func (m *Manager) requestSession(ctx context.Context, desc connector.Descriptor, sc *connector.SessionCredentials) (*sessionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, desc.RequestTimeout())
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"username": sc.Username,
		"password": sc.Password,
		"database": sc.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.LoginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &connector.TransientError{Op: desc.Key + " login endpoint", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyAuthStatus(desc.Key, resp.StatusCode, body, connector.RetryAfterHint(resp))
	}

	var sess sessionResponse
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, &connector.TransientError{Op: desc.Key + " login response", Err: err}
	}
	if sess.SessionID == "" {
		return nil, &connector.AuthError{Provider: desc.Key, Reason: "login endpoint returned empty session id"}
	}
	return &sess, nil
}
