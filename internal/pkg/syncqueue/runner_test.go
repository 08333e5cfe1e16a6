package syncqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/app/repository"
	"github.com/truckwise/truckwise/internal/pkg/connector"
	"github.com/truckwise/truckwise/internal/pkg/connector/reconcile"
	"github.com/truckwise/truckwise/internal/pkg/connector/token"
)

// fakeIntegrationRepo keeps tenant integrations in memory and mirrors the
// health-write semantics of the gorm repository.
type fakeIntegrationRepo struct {
	byID map[uint]*models.TenantIntegration
}

func newFakeIntegrationRepo(tis ...*models.TenantIntegration) *fakeIntegrationRepo {
	r := &fakeIntegrationRepo{byID: map[uint]*models.TenantIntegration{}}
	for _, ti := range tis {
		r.byID[ti.ID] = ti
	}
	return r
}

func (r *fakeIntegrationRepo) Create(ti *models.TenantIntegration) error {
	r.byID[ti.ID] = ti
	return nil
}

func (r *fakeIntegrationRepo) GetByID(id uint) (*models.TenantIntegration, error) {
	ti, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return ti, nil
}

func (r *fakeIntegrationRepo) GetByIDForTenant(tenantID, id uint) (*models.TenantIntegration, error) {
	return r.GetByID(id)
}

func (r *fakeIntegrationRepo) GetByTenantAndIntegration(tenantID, integrationID uint) (*models.TenantIntegration, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeIntegrationRepo) ListByTenant(tenantID uint) ([]models.TenantIntegration, error) {
	return nil, nil
}

func (r *fakeIntegrationRepo) ListSyncCandidates() ([]models.TenantIntegration, error) {
	return nil, nil
}

func (r *fakeIntegrationRepo) Update(ti *models.TenantIntegration) error {
	r.byID[ti.ID] = ti
	return nil
}

func (r *fakeIntegrationRepo) Delete(id uint) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeIntegrationRepo) SaveCredentials(id uint, blob []byte) error {
	r.byID[id].Credentials = datatypes.JSON(blob)
	return nil
}

func (r *fakeIntegrationRepo) RecordSuccess(id uint, at time.Time) error {
	ti := r.byID[id]
	ti.Status = models.IntegrationStatusActive
	ti.LastSyncAt = &at
	ti.LastSuccessAt = &at
	ti.LastErrorAt = nil
	ti.LastErrorMessage = ""
	ti.ConsecutiveFailures = 0
	return nil
}

func (r *fakeIntegrationRepo) RecordTransientFailure(id uint, at time.Time, message string) error {
	ti := r.byID[id]
	ti.LastSyncAt = &at
	ti.LastErrorAt = &at
	ti.LastErrorMessage = message
	ti.ConsecutiveFailures++
	return nil
}

func (r *fakeIntegrationRepo) RecordAuthFailure(id uint, at time.Time, message string) error {
	ti := r.byID[id]
	ti.Status = models.IntegrationStatusError
	ti.LastSyncAt = &at
	ti.LastErrorAt = &at
	ti.LastErrorMessage = message
	ti.ConsecutiveFailures++
	return nil
}

// fakeRunRepo records sync run writes.
type fakeRunRepo struct {
	runs []*models.SyncRun
}

func (r *fakeRunRepo) Create(run *models.SyncRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRunRepo) Update(run *models.SyncRun) error { return nil }

func (r *fakeRunRepo) ListByIntegration(tenantIntegrationID uint, limit int) ([]models.SyncRun, error) {
	return nil, nil
}

func (r *fakeRunRepo) lastFor(tenantIntegrationID uint) *models.SyncRun {
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].TenantIntegrationID == tenantIntegrationID {
			return r.runs[i]
		}
	}
	return nil
}

// fakeLocker hands out lock tokens and verifies the release presents the
// token back.
type fakeLocker struct {
	deny      bool
	acquired  int
	released  []string
	lastToken string
}

func (l *fakeLocker) Acquire(id uint, ttl time.Duration) (string, bool, error) {
	if l.deny {
		return "", false, nil
	}
	l.acquired++
	l.lastToken = fmt.Sprintf("lock-%d-%d", id, l.acquired)
	return l.lastToken, true, nil
}

func (l *fakeLocker) Release(id uint, token string) error {
	l.released = append(l.released, token)
	return nil
}

// fakeEntityStore counts creates; nothing ever matches, so every item is new.
type fakeEntityStore struct {
	created int
}

func (s *fakeEntityStore) FindByNaturalKey(ctx context.Context, tenantID uint, kind connector.EntityKind, naturalKey string) (*reconcile.Match, error) {
	return nil, nil
}

func (s *fakeEntityStore) FindByExternalID(ctx context.Context, tenantID uint, kind connector.EntityKind, providerKey, externalID string) (*reconcile.Match, error) {
	return nil, nil
}

func (s *fakeEntityStore) Create(ctx context.Context, tenantID uint, item connector.Item, metadata map[string]any) error {
	s.created++
	return nil
}

func (s *fakeEntityStore) Update(ctx context.Context, tenantID uint, kind connector.EntityKind, id uint, item connector.Item, metadata map[string]any) error {
	return nil
}

// stubAdapter serves one vehicle page per fetch, or the error configured for
// the presented access token.
type stubAdapter struct {
	failures map[string]error
}

func (a *stubAdapter) Key() string                      { return "stub" }
func (a *stubAdapter) Strategy() connector.AuthStrategy { return connector.StrategyAPIKey }
func (a *stubAdapter) Kinds() []connector.EntityKind    { return []connector.EntityKind{connector.KindVehicle} }

func (a *stubAdapter) FetchPage(ctx context.Context, access connector.Access, kind connector.EntityKind, cursor string) (connector.Page, error) {
	if err, ok := a.failures[access.Token]; ok {
		return connector.Page{}, err
	}
	return connector.Page{
		Items: []connector.Item{{
			Kind:       kind,
			ExternalID: "v-" + access.Token,
			Fields:     map[string]any{"vin": "VIN" + access.Token},
		}},
		Done: true,
	}, nil
}

type runnerHarness struct {
	runner *SyncRunner
	tis    *fakeIntegrationRepo
	runs   *fakeRunRepo
	locks  *fakeLocker
	store  *fakeEntityStore
}

func newRunnerHarness(t *testing.T, adapter *stubAdapter, tis ...*models.TenantIntegration) *runnerHarness {
	t.Helper()

	tiRepo := newFakeIntegrationRepo(tis...)
	runRepo := &fakeRunRepo{}
	repos := &repository.Repositories{TenantIntegration: tiRepo, SyncRun: runRepo}

	registry := connector.NewRegistry()
	registry.MustRegister(connector.Descriptor{
		Key:      "stub",
		Strategy: connector.StrategyAPIKey,
		Adapter:  adapter,
	})

	store := &fakeEntityStore{}
	runner := NewSyncRunner(repos, registry, token.NewManager(tiRepo), reconcile.NewEngine(store), nil)
	locks := &fakeLocker{}
	runner.locks = locks

	return &runnerHarness{runner: runner, tis: tiRepo, runs: runRepo, locks: locks, store: store}
}

func activeIntegration(id uint, apiKey string) *models.TenantIntegration {
	return &models.TenantIntegration{
		ID:          id,
		TenantID:    1,
		Status:      models.IntegrationStatusActive,
		Credentials: datatypes.JSON(`{"api_key":"` + apiKey + `"}`),
		Integration: models.IntegrationDefinition{Key: "stub", AuthStrategy: string(connector.StrategyAPIKey)},
	}
}

func TestRunSuccessResetsFailureAccounting(t *testing.T) {
	ti := activeIntegration(1, "key-1")
	ti.Status = models.IntegrationStatusPending
	ti.ConsecutiveFailures = 3
	ti.LastErrorMessage = "provider timeout"
	errAt := time.Now().Add(-time.Hour)
	ti.LastErrorAt = &errAt

	h := newRunnerHarness(t, &stubAdapter{}, ti)

	err := h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: 1, TriggeredBy: models.SyncTriggeredBySchedule})
	require.NoError(t, err)

	assert.Equal(t, models.IntegrationStatusActive, ti.Status)
	assert.Equal(t, uint(0), ti.ConsecutiveFailures)
	assert.Empty(t, ti.LastErrorMessage)
	assert.Nil(t, ti.LastErrorAt)
	require.NotNil(t, ti.LastSuccessAt)
	assert.Equal(t, 1, h.store.created)

	run := h.runs.lastFor(1)
	require.NotNil(t, run)
	assert.Equal(t, models.SyncRunStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Created)
}

func TestRunTransientFailureBumpsCounterOnly(t *testing.T) {
	ti := activeIntegration(2, "key-2")
	adapter := &stubAdapter{failures: map[string]error{
		"key-2": &connector.TransientError{Op: "stub fetch", Err: fmt.Errorf("status 503")},
	}}
	h := newRunnerHarness(t, adapter, ti)

	err := h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: 2, TriggeredBy: models.SyncTriggeredBySchedule})
	require.Error(t, err)

	// Transient failures never change the lifecycle status.
	assert.Equal(t, models.IntegrationStatusActive, ti.Status)
	assert.Equal(t, uint(1), ti.ConsecutiveFailures)
	assert.Contains(t, ti.LastErrorMessage, "status 503")
	require.NotNil(t, ti.LastErrorAt)
	assert.Nil(t, ti.LastSuccessAt)

	run := h.runs.lastFor(2)
	require.NotNil(t, run)
	assert.Equal(t, models.SyncRunStatusFailed, run.Status)
}

func TestRunAuthFailureFlipsStatusToError(t *testing.T) {
	ti := activeIntegration(3, "key-3")
	adapter := &stubAdapter{failures: map[string]error{
		"key-3": &connector.AuthError{Provider: "stub", Reason: "token revoked"},
	}}
	h := newRunnerHarness(t, adapter, ti)

	err := h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: 3, TriggeredBy: models.SyncTriggeredByManual})
	require.Error(t, err)

	assert.Equal(t, models.IntegrationStatusError, ti.Status)
	assert.Equal(t, uint(1), ti.ConsecutiveFailures)
	assert.Contains(t, ti.LastErrorMessage, "token revoked")
	assert.False(t, ti.Syncable())

	run := h.runs.lastFor(3)
	require.NotNil(t, run)
	assert.Equal(t, models.SyncRunStatusFailed, run.Status)
}

func TestRunFailureIsolationAcrossIntegrations(t *testing.T) {
	healthy1 := activeIntegration(10, "key-10")
	broken := activeIntegration(11, "key-11")
	healthy2 := activeIntegration(12, "key-12")

	adapter := &stubAdapter{failures: map[string]error{
		"key-11": &connector.TransientError{Op: "stub fetch", Err: fmt.Errorf("connection reset")},
	}}
	h := newRunnerHarness(t, adapter, healthy1, broken, healthy2)

	for _, id := range []uint{10, 11, 12} {
		_ = h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: id, TriggeredBy: models.SyncTriggeredBySchedule})
	}

	// One broken integration does not affect the others' attempts.
	assert.Equal(t, models.IntegrationStatusActive, healthy1.Status)
	assert.Equal(t, uint(0), healthy1.ConsecutiveFailures)
	require.NotNil(t, healthy1.LastSuccessAt)

	assert.Equal(t, uint(1), broken.ConsecutiveFailures)
	assert.Nil(t, broken.LastSuccessAt)

	assert.Equal(t, models.IntegrationStatusActive, healthy2.Status)
	assert.Equal(t, uint(0), healthy2.ConsecutiveFailures)
	require.NotNil(t, healthy2.LastSuccessAt)

	assert.Equal(t, 2, h.store.created)
}

func TestRunFailureStreakThenSuccessClearsCounter(t *testing.T) {
	ti := activeIntegration(4, "key-4")
	adapter := &stubAdapter{failures: map[string]error{
		"key-4": &connector.TransientError{Op: "stub fetch", Err: fmt.Errorf("timeout")},
	}}
	h := newRunnerHarness(t, adapter, ti)

	for i := 0; i < 3; i++ {
		err := h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: 4, TriggeredBy: models.SyncTriggeredBySchedule})
		require.Error(t, err)
	}
	assert.Equal(t, uint(3), ti.ConsecutiveFailures)
	assert.Equal(t, models.IntegrationStatusActive, ti.Status)

	// Provider recovers; the next success wipes the streak.
	delete(adapter.failures, "key-4")
	err := h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: 4, TriggeredBy: models.SyncTriggeredBySchedule})
	require.NoError(t, err)

	assert.Equal(t, uint(0), ti.ConsecutiveFailures)
	assert.Empty(t, ti.LastErrorMessage)
	assert.Nil(t, ti.LastErrorAt)
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	ti := activeIntegration(5, "key-5")
	h := newRunnerHarness(t, &stubAdapter{}, ti)
	h.locks.deny = true

	err := h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: 5, TriggeredBy: models.SyncTriggeredByManual})
	require.NoError(t, err)

	// Nothing ran: no sync run record, no health writes, no release.
	assert.Nil(t, h.runs.lastFor(5))
	assert.Nil(t, ti.LastSyncAt)
	assert.Empty(t, h.locks.released)
}

func TestRunReleasesLockWithOwnerToken(t *testing.T) {
	ti := activeIntegration(6, "key-6")
	h := newRunnerHarness(t, &stubAdapter{}, ti)

	err := h.runner.Run(context.Background(), &SyncJob{TenantIntegrationID: 6, TriggeredBy: models.SyncTriggeredBySchedule})
	require.NoError(t, err)

	require.Len(t, h.locks.released, 1)
	assert.Equal(t, h.locks.lastToken, h.locks.released[0])
}
