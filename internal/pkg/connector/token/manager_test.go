package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/internal/pkg/connector"
)

// fakeStore records credential writes in memory.
type fakeStore struct {
	mu    sync.Mutex
	blobs map[uint][]byte
	saves int
	fail  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[uint][]byte{}}
}

func (s *fakeStore) SaveCredentials(id uint, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saves++
	s.blobs[id] = append([]byte(nil), blob...)
	return nil
}

func (s *fakeStore) saved(id uint) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[id]
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newTestManager(store CredentialStore) *Manager {
	m := NewManager(store)
	m.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return m
}

func integration(id uint, blob string) *models.TenantIntegration {
	return &models.TenantIntegration{ID: id, Credentials: datatypes.JSON(blob)}
}

func TestEnsureValidAPIKey(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	desc := connector.Descriptor{Key: "samsara", Strategy: connector.StrategyAPIKey}
	ti := integration(1, `{"api_key":"samsara_api_xyz"}`)

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "samsara_api_xyz", access.Token)
	// Static keys never need a store write.
	assert.Equal(t, 0, store.saveCount())
}

func TestEnsureClientCredentialsReusesCachedToken(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	expires := m.now().Add(time.Hour)
	blob, _ := json.Marshal(connector.ClientCredentials{
		ClientID:       "cid",
		ClientSecret:   "cs",
		AccessToken:    "cached",
		TokenExpiresAt: &expires,
	})

	desc := connector.Descriptor{Key: "wexfleet", Strategy: connector.StrategyClientCredentials}
	ti := integration(2, string(blob))

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "cached", access.Token)
	assert.Equal(t, 0, store.saveCount())
}

func TestEnsureClientCredentialsFetchesNewToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "cs", pass)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh", "expires_in": 3600})
	}))
	defer srv.Close()

	store := newFakeStore()
	m := newTestManager(store)

	desc := connector.Descriptor{Key: "wexfleet", Strategy: connector.StrategyClientCredentials, TokenURL: srv.URL}
	ti := integration(3, `{"client_id":"cid","client_secret":"cs"}`)

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "fresh", access.Token)
	assert.Equal(t, m.now().Add(time.Hour), access.ExpiresAt)

	// The token is cached back into the store for the next attempt.
	var cached connector.ClientCredentials
	require.NoError(t, json.Unmarshal(store.saved(3), &cached))
	assert.Equal(t, "fresh", cached.AccessToken)
	assert.Equal(t, "cid", cached.ClientID)
}

func TestEnsureRotatingPersistsPairInOneWrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "rt-old", r.FormValue("refresh_token"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-new",
			"refresh_token": "rt-new",
			"expires_in":    7200,
		})
	}))
	defer srv.Close()

	store := newFakeStore()
	m := newTestManager(store)

	desc := connector.Descriptor{
		Key:      "motive",
		Strategy: connector.StrategyAuthorizationCode,
		TokenURL: srv.URL,
		ClientID: "app-id", ClientSecret: "app-secret",
	}
	ti := integration(4, `{"access_token":"at-old","refresh_token":"rt-old"}`)

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "at-new", access.Token)

	// Access and refresh token land in the store together or not at all.
	require.Equal(t, 1, store.saveCount())
	var pair connector.RotatingCredentials
	require.NoError(t, json.Unmarshal(store.saved(4), &pair))
	assert.Equal(t, "at-new", pair.AccessToken)
	assert.Equal(t, "rt-new", pair.RefreshToken)
}

func TestEnsureRotatingKeepsRefreshTokenWhenResponseOmitsOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-new", "expires_in": 7200,
		})
	}))
	defer srv.Close()

	store := newFakeStore()
	m := newTestManager(store)

	desc := connector.Descriptor{Key: "motive", Strategy: connector.StrategyAuthorizationCode, TokenURL: srv.URL}
	ti := integration(12, `{"access_token":"at-old","refresh_token":"rt-old"}`)

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "at-new", access.Token)

	// The provider kept the old refresh token alive; it must not be lost.
	var pair connector.RotatingCredentials
	require.NoError(t, json.Unmarshal(store.saved(12), &pair))
	assert.Equal(t, "rt-old", pair.RefreshToken)
	assert.Equal(t, "at-new", pair.AccessToken)
}

func TestEnsureRotatingValidTokenSkipsRefresh(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	expires := m.now().Add(time.Hour)
	blob, _ := json.Marshal(connector.RotatingCredentials{
		AccessToken: "at", RefreshToken: "rt", ExpiresAt: &expires,
	})

	desc := connector.Descriptor{Key: "motive", Strategy: connector.StrategyAuthorizationCode}
	ti := integration(5, string(blob))

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "at", access.Token)
	assert.Equal(t, 0, store.saveCount())
}

func TestEnsureRotatingSaveFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-new", "refresh_token": "rt-new", "expires_in": 7200,
		})
	}))
	defer srv.Close()

	store := newFakeStore()
	store.fail = errors.New("db gone")
	m := newTestManager(store)

	desc := connector.Descriptor{Key: "motive", Strategy: connector.StrategyAuthorizationCode, TokenURL: srv.URL}
	ti := integration(6, `{"access_token":"at-old","refresh_token":"rt-old"}`)

	_, err := m.EnsureValid(context.Background(), desc, ti)
	require.Error(t, err)
	assert.True(t, connector.IsTransient(err))
	assert.False(t, connector.IsTerminal(err))
}

func TestEnsureRotatingInterruptedRotationIsTerminal(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	// Access token present, refresh token gone: the rotation was interrupted
	// after the provider consumed the old refresh token.
	desc := connector.Descriptor{Key: "motive", Strategy: connector.StrategyAuthorizationCode}
	ti := integration(7, `{"access_token":"at-old"}`)

	_, err := m.EnsureValid(context.Background(), desc, ti)
	require.Error(t, err)

	var authErr *connector.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "reauthorization required")
}

func TestTokenEndpointStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		terminal  bool
		transient bool
	}{
		{"bad request", http.StatusBadRequest, true, false},
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"forbidden", http.StatusForbidden, true, false},
		{"throttled", http.StatusTooManyRequests, false, true},
		{"server error", http.StatusInternalServerError, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			m := newTestManager(newFakeStore())
			desc := connector.Descriptor{Key: "motive", Strategy: connector.StrategyAuthorizationCode, TokenURL: srv.URL}
			ti := integration(8, `{"access_token":"at","refresh_token":"rt"}`)

			_, err := m.EnsureValid(context.Background(), desc, ti)
			require.Error(t, err)
			assert.Equal(t, tt.terminal, connector.IsTerminal(err))
			assert.Equal(t, tt.transient, connector.IsTransient(err))
		})
	}
}

func TestEnsureSessionReusesOpenWindow(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	expires := m.now().Add(10 * 24 * time.Hour)
	blob, _ := json.Marshal(connector.SessionCredentials{
		Username: "ops@acme.test", Password: "pw", Database: "acme",
		SessionID: "sess-1", Server: "my7.geotab.test", SessionExpiresAt: &expires,
	})

	desc := connector.Descriptor{Key: "geotab", Strategy: connector.StrategySession}
	ti := integration(9, string(blob))

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", access.Token)
	assert.Equal(t, "my7.geotab.test", access.Server)
	assert.Equal(t, "acme", access.Database)
	assert.Equal(t, 0, store.saveCount())
}

func TestEnsureSessionReauthenticatesInsideLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ops@acme.test", payload["username"])
		assert.Equal(t, "acme", payload["database"])
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-2", "server": "my8.geotab.test"})
	}))
	defer srv.Close()

	store := newFakeStore()
	m := newTestManager(store)

	// 12 hours left on a 14 day window: inside the one day refresh lead.
	expires := m.now().Add(12 * time.Hour)
	blob, _ := json.Marshal(connector.SessionCredentials{
		Username: "ops@acme.test", Password: "pw", Database: "acme",
		SessionID: "sess-1", SessionExpiresAt: &expires,
	})

	desc := connector.Descriptor{Key: "geotab", Strategy: connector.StrategySession, LoginURL: srv.URL}
	ti := integration(10, string(blob))

	access, err := m.EnsureValid(context.Background(), desc, ti)
	require.NoError(t, err)
	assert.Equal(t, "sess-2", access.Token)
	assert.Equal(t, "my8.geotab.test", access.Server)
	assert.Equal(t, m.now().Add(sessionWindow), access.ExpiresAt)

	// The stored triple survives re-authentication.
	var sc connector.SessionCredentials
	require.NoError(t, json.Unmarshal(store.saved(10), &sc))
	assert.Equal(t, "pw", sc.Password)
	assert.Equal(t, "sess-2", sc.SessionID)
}

func TestEnsureValidCollapsesConcurrentRefreshes(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-new", "refresh_token": "rt-new", "expires_in": 7200,
		})
	}))
	defer srv.Close()

	store := newFakeStore()
	m := newTestManager(store)

	desc := connector.Descriptor{Key: "motive", Strategy: connector.StrategyAuthorizationCode, TokenURL: srv.URL}
	ti := integration(11, `{"access_token":"at-old","refresh_token":"rt-old"}`)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			access, err := m.EnsureValid(context.Background(), desc, ti)
			if err == nil {
				results[i] = access.Token
			}
		}(i)
	}
	wg.Wait()

	// All callers share one provider round trip and one stored pair.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), fmt.Sprintf("expected one token request, got %d", hits))
	assert.Equal(t, 1, store.saveCount())
	for _, tok := range results {
		assert.Equal(t, "at-new", tok)
	}
}
