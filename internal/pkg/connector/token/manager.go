package token

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"

	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/internal/pkg/connector"
)

// refreshLead is how long before expiry an OAuth access token is refreshed.
// Absorbs clock skew and request latency.
const refreshLead = 5 * time.Minute

// Session providers issue long fixed-window sessions; re-authenticate when
// inside one day of expiry.
const (
	sessionWindow      = 14 * 24 * time.Hour
	sessionRefreshLead = 24 * time.Hour
)

// CredentialStore persists credential blobs. SaveCredentials must be a
// single write: for rotating refresh tokens the old token dies the moment it
// is used, so access and refresh token can never be written separately.
type CredentialStore interface {
	SaveCredentials(tenantIntegrationID uint, blob []byte) error
}

// Manager keeps tenant-integration credentials valid. It is the only
// component that reads or writes the credential store; everyone else
// receives a short-lived connector.Access handle.
type Manager struct {
	store      CredentialStore
	httpClient *http.Client
	group      singleflight.Group
	now        func() time.Time
}

// NewManager creates a token lifecycle manager over the given store.
func NewManager(store CredentialStore) *Manager {
	return &Manager{
		store:      store,
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

// EnsureValid returns a usable credential handle for the integration,
// refreshing stored material first when needed. Concurrent calls for the
// same tenant integration collapse into a single provider round trip.
func (m *Manager) EnsureValid(ctx context.Context, desc connector.Descriptor, ti *models.TenantIntegration) (connector.Access, error) {
	key := strconv.FormatUint(uint64(ti.ID), 10)
	v, err, shared := m.group.Do(key, func() (interface{}, error) {
		return m.ensureValid(ctx, desc, ti)
	})
	if err != nil {
		return connector.Access{}, err
	}
	if shared {
		log.Debugf("[Token] Integration %d reused in-flight refresh result", ti.ID)
	}
	return v.(connector.Access), nil
}

func (m *Manager) ensureValid(ctx context.Context, desc connector.Descriptor, ti *models.TenantIntegration) (connector.Access, error) {
	creds, err := connector.DecodeCredentials(desc.Key, desc.Strategy, ti.Credentials)
	if err != nil {
		if desc.Strategy == connector.StrategyAuthorizationCode && creds.Rotating != nil &&
			creds.Rotating.AccessToken != "" && creds.Rotating.RefreshToken == "" {
			// Access token without refresh token: an interrupted rotation
			// left us with material that can never be renewed.
			return connector.Access{}, &connector.AuthError{
				Provider: desc.Key,
				Reason:   "refresh token missing, reauthorization required",
			}
		}
		return connector.Access{}, err
	}

	switch desc.Strategy {
	case connector.StrategyClientCredentials:
		return m.ensureClientCredentials(ctx, desc, ti, creds)
	case connector.StrategyAuthorizationCode:
		return m.ensureRotating(ctx, desc, ti, creds)
	case connector.StrategySession:
		return m.ensureSession(ctx, desc, ti, creds)
	case connector.StrategyAPIKey:
		return m.ensureAPIKey(desc, creds)
	}
	return connector.Access{}, fmt.Errorf("unknown auth strategy %q", desc.Strategy)
}

// ensureClientCredentials reuses the cached access token until its declared
// TTL, then requests a fresh one with the tenant's client id/secret.
func (m *Manager) ensureClientCredentials(ctx context.Context, desc connector.Descriptor, ti *models.TenantIntegration, creds connector.Credentials) (connector.Access, error) {
	cc := creds.Client
	if cc.AccessToken != "" && cc.TokenExpiresAt != nil && m.now().Before(cc.TokenExpiresAt.Add(-refreshLead)) {
		return connector.Access{
			Strategy:  desc.Strategy,
			Token:     cc.AccessToken,
			ExpiresAt: *cc.TokenExpiresAt,
		}, nil
	}

	tok, err := m.requestClientCredentialsToken(ctx, desc, cc.ClientID, cc.ClientSecret)
	if err != nil {
		return connector.Access{}, err
	}

	expires := m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	cc.AccessToken = tok.AccessToken
	cc.TokenExpiresAt = &expires

	blob, err := creds.Encode()
	if err != nil {
		return connector.Access{}, fmt.Errorf("encode credentials: %w", err)
	}
	if err := m.store.SaveCredentials(ti.ID, blob); err != nil {
		// Cache write failed; the token itself is still usable for this
		// attempt and the next attempt simply fetches another one.
		log.Warnf("[Token] Integration %d: failed to cache access token: %v", ti.ID, err)
	}

	log.Infof("[Token] Integration %d (%s): issued new client-credentials token", ti.ID, desc.Key)
	return connector.Access{Strategy: desc.Strategy, Token: tok.AccessToken, ExpiresAt: expires}, nil
}

// ensureRotating refreshes an authorization-code token pair when inside the
// refresh lead. The new access and refresh tokens are persisted in one
// write; losing the new refresh token after the old one was consumed is a
// permanent loss requiring full reauthorization.
func (m *Manager) ensureRotating(ctx context.Context, desc connector.Descriptor, ti *models.TenantIntegration, creds connector.Credentials) (connector.Access, error) {
	rc := creds.Rotating
	if rc.ExpiresAt != nil && m.now().Before(rc.ExpiresAt.Add(-refreshLead)) {
		return connector.Access{Strategy: desc.Strategy, Token: rc.AccessToken, ExpiresAt: *rc.ExpiresAt}, nil
	}

	tok, err := m.requestRefreshToken(ctx, desc, rc.RefreshToken)
	if err != nil {
		return connector.Access{}, err
	}

	expires := m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	rc.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		// Some providers only rotate the refresh token occasionally; a
		// response without one means the stored token is still live.
		rc.RefreshToken = tok.RefreshToken
	}
	rc.ExpiresAt = &expires

	blob, err := creds.Encode()
	if err != nil {
		return connector.Access{}, fmt.Errorf("encode credentials: %w", err)
	}
	if err := m.store.SaveCredentials(ti.ID, blob); err != nil {
		// The provider already rotated the pair. Surface the failure as
		// transient; the stale stored refresh token will be rejected on the
		// next attempt and classified terminal there.
		return connector.Access{}, &connector.TransientError{
			Op:  fmt.Sprintf("persist rotated token pair for integration %d", ti.ID),
			Err: err,
		}
	}

	log.Infof("[Token] Integration %d (%s): rotated refresh token pair", ti.ID, desc.Key)
	return connector.Access{Strategy: desc.Strategy, Token: tok.AccessToken, ExpiresAt: expires}, nil
}

// ensureSession re-authenticates with the stored username/password/database
// triple when the session is within one day of expiry.
func (m *Manager) ensureSession(ctx context.Context, desc connector.Descriptor, ti *models.TenantIntegration, creds connector.Credentials) (connector.Access, error) {
	sc := creds.Session
	if sc.SessionID != "" && sc.SessionExpiresAt != nil && m.now().Before(sc.SessionExpiresAt.Add(-sessionRefreshLead)) {
		return connector.Access{
			Strategy:  desc.Strategy,
			Token:     sc.SessionID,
			Server:    sc.Server,
			Database:  sc.Database,
			ExpiresAt: *sc.SessionExpiresAt,
		}, nil
	}

	sess, err := m.requestSession(ctx, desc, sc)
	if err != nil {
		return connector.Access{}, err
	}

	expires := m.now().Add(sessionWindow)
	sc.SessionID = sess.SessionID
	if sess.Server != "" {
		sc.Server = sess.Server
	}
	sc.SessionExpiresAt = &expires

	blob, err := creds.Encode()
	if err != nil {
		return connector.Access{}, fmt.Errorf("encode credentials: %w", err)
	}
	if err := m.store.SaveCredentials(ti.ID, blob); err != nil {
		return connector.Access{}, &connector.TransientError{
			Op:  fmt.Sprintf("persist session for integration %d", ti.ID),
			Err: err,
		}
	}

	log.Infof("[Token] Integration %d (%s): established new session", ti.ID, desc.Key)
	return connector.Access{
		Strategy:  desc.Strategy,
		Token:     sess.SessionID,
		Server:    sc.Server,
		Database:  sc.Database,
		ExpiresAt: expires,
	}, nil
}

// ensureAPIKey has nothing to refresh; the decode step already verified the
// key material is present.
func (m *Manager) ensureAPIKey(desc connector.Descriptor, creds connector.Credentials) (connector.Access, error) {
	ak := creds.APIKey
	token := ak.APIKey
	if token == "" {
		token = ak.Username + ":" + ak.Password
	}
	return connector.Access{Strategy: desc.Strategy, Token: token}, nil
}

// classifyAuthStatus maps a token/login endpoint HTTP status onto the error
// taxonomy: credential rejection is terminal, throttling and server trouble
// are transient.
func classifyAuthStatus(provider string, status int, body []byte, retryAfter time.Duration) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest:
		return &connector.AuthError{
			Provider: provider,
			Reason:   fmt.Sprintf("provider rejected credentials (status %d): %s", status, truncate(body, 200)),
		}
	case status == http.StatusTooManyRequests:
		return &connector.RateLimitedError{Provider: provider, RetryAfter: retryAfter}
	default:
		return &connector.TransientError{
			Op:  fmt.Sprintf("%s auth endpoint", provider),
			Err: fmt.Errorf("status %d: %s", status, truncate(body, 200)),
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
