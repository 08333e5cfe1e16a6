package syncqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/app/repository"
	"github.com/truckwise/truckwise/internal/pkg/archive"
	"github.com/truckwise/truckwise/internal/pkg/cache"
	"github.com/truckwise/truckwise/internal/pkg/connector"
	"github.com/truckwise/truckwise/internal/pkg/connector/reconcile"
	"github.com/truckwise/truckwise/internal/pkg/connector/token"
)

const (
	// syncLockTTL bounds how long a crashed worker can keep an integration
	// locked against further attempts.
	syncLockTTL = 30 * time.Minute

	// maxPagesPerKind caps runaway pagination against a misbehaving provider.
	maxPagesPerKind = 1000
)

// syncLocker guards one integration against concurrent sync attempts across
// processes. Acquire returns an owner token that Release must present back.
type syncLocker interface {
	Acquire(tenantIntegrationID uint, ttl time.Duration) (token string, ok bool, err error)
	Release(tenantIntegrationID uint, token string) error
}

// redisLocker is the redis-backed locker used in production.
type redisLocker struct{}

func (redisLocker) Acquire(id uint, ttl time.Duration) (string, bool, error) {
	return cache.AcquireSyncLock(id, ttl)
}

func (redisLocker) Release(id uint, token string) error {
	return cache.ReleaseSyncLock(id, token)
}

// SyncRunner executes one full sync attempt for a tenant integration: token
// check, page fetch loop per entity kind, reconciliation and health
// bookkeeping. It implements the queue's Runner interface.
type SyncRunner struct {
	repos    *repository.Repositories
	registry *connector.Registry
	tokens   *token.Manager
	engine   *reconcile.Engine
	archive  *archive.Client // nil when the payload archive is disabled
	locks    syncLocker
}

// NewSyncRunner wires a sync runner over the given components.
func NewSyncRunner(repos *repository.Repositories, registry *connector.Registry, tokens *token.Manager, engine *reconcile.Engine, archiveClient *archive.Client) *SyncRunner {
	return &SyncRunner{
		repos:    repos,
		registry: registry,
		tokens:   tokens,
		engine:   engine,
		archive:  archiveClient,
		locks:    redisLocker{},
	}
}

// Run performs one sync attempt. A nil return means the attempt either
// succeeded or was skipped (not syncable, already locked); an error return
// means the attempt ran and failed, with health fields already updated.
func (r *SyncRunner) Run(ctx context.Context, job *SyncJob) error {
	ti, err := r.repos.TenantIntegration.GetByID(job.TenantIntegrationID)
	if err != nil {
		return fmt.Errorf("load integration %d: %w", job.TenantIntegrationID, err)
	}

	if !ti.Syncable() {
		log.Infof("[SyncRunner] Integration %d skipped (status %s)", ti.ID, ti.Status)
		return nil
	}

	desc, ok := r.registry.Lookup(ti.Integration.Key)
	if !ok {
		return fmt.Errorf("no adapter registered for provider %q", ti.Integration.Key)
	}

	lockToken, acquired, err := r.locks.Acquire(ti.ID, syncLockTTL)
	if err != nil {
		return fmt.Errorf("acquire sync lock for integration %d: %w", ti.ID, err)
	}
	if !acquired {
		log.Infof("[SyncRunner] Integration %d skipped, sync already in progress", ti.ID)
		return nil
	}
	defer func() {
		if err := r.locks.Release(ti.ID, lockToken); err != nil {
			log.Errorf("[SyncRunner] Failed to release sync lock for integration %d: %v", ti.ID, err)
		}
	}()

	started := time.Now()
	run := &models.SyncRun{
		TenantID:            ti.TenantID,
		TenantIntegrationID: ti.ID,
		Provider:            desc.Key,
		TriggeredBy:         job.TriggeredBy,
		Status:              models.SyncRunStatusRunning,
		StartedAt:           &started,
	}
	if err := r.repos.SyncRun.Create(run); err != nil {
		log.Errorf("[SyncRunner] Failed to create sync run record: %v", err)
	}

	access, err := r.tokens.EnsureValid(ctx, desc, ti)
	if err != nil {
		return r.finishFailure(ti, run, err)
	}

	var totals reconcile.Result
	for _, kind := range desc.Adapter.Kinds() {
		cursor := ""
		for seq := 0; seq < maxPagesPerKind; seq++ {
			fetchCtx, cancel := context.WithTimeout(ctx, desc.RequestTimeout())
			page, err := desc.Adapter.FetchPage(fetchCtx, access, kind, cursor)
			cancel()
			if err != nil {
				return r.finishFailure(ti, run, fmt.Errorf("fetch %s page: %w", kind, err))
			}

			r.archivePage(ctx, ti.TenantID, desc.Key, string(kind), seq, page.Raw)

			res := r.engine.Reconcile(ctx, ti.TenantID, desc.Key, page.Items)
			totals.Created += res.Created
			totals.Updated += res.Updated
			totals.Errors = append(totals.Errors, res.Errors...)

			if page.Done || page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
	}

	finished := time.Now()
	if err := r.repos.TenantIntegration.RecordSuccess(ti.ID, finished); err != nil {
		log.Errorf("[SyncRunner] Failed to record success for integration %d: %v", ti.ID, err)
	}

	run.Status = models.SyncRunStatusSuccess
	run.Created = totals.Created
	run.Updated = totals.Updated
	run.ErrorCount = len(totals.Errors)
	run.FinishedAt = &finished
	if err := r.repos.SyncRun.Update(run); err != nil {
		log.Errorf("[SyncRunner] Failed to finalize sync run record: %v", err)
	}

	log.Infof("[SyncRunner] Integration %d (%s) synced: %d created, %d updated, %d item errors",
		ti.ID, desc.Key, totals.Created, totals.Updated, len(totals.Errors))
	return nil
}

// finishFailure routes a failed attempt through the health bookkeeping.
// Terminal errors flip the integration into the error state; transient ones
// only bump the failure counter.
func (r *SyncRunner) finishFailure(ti *models.TenantIntegration, run *models.SyncRun, cause error) error {
	now := time.Now()

	if connector.IsTerminal(cause) {
		if err := r.repos.TenantIntegration.RecordAuthFailure(ti.ID, now, cause.Error()); err != nil {
			log.Errorf("[SyncRunner] Failed to record auth failure for integration %d: %v", ti.ID, err)
		}
	} else {
		if err := r.repos.TenantIntegration.RecordTransientFailure(ti.ID, now, cause.Error()); err != nil {
			log.Errorf("[SyncRunner] Failed to record transient failure for integration %d: %v", ti.ID, err)
		}
	}

	run.Status = models.SyncRunStatusFailed
	run.Message = cause.Error()
	run.FinishedAt = &now
	if err := r.repos.SyncRun.Update(run); err != nil {
		log.Errorf("[SyncRunner] Failed to finalize sync run record: %v", err)
	}

	return cause
}

// archivePage stores one raw page body best effort.
func (r *SyncRunner) archivePage(ctx context.Context, tenantID uint, providerKey, kind string, seq int, body []byte) {
	if r.archive == nil || len(body) == 0 {
		return
	}
	if err := r.archive.StorePage(ctx, tenantID, providerKey, kind, seq, body); err != nil {
		log.Warnf("[SyncRunner] Payload archive write failed for tenant %d %s: %v", tenantID, providerKey, err)
	}
}
