package syncqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/app/repository"
	"github.com/truckwise/truckwise/internal/pkg/env"
)

// dispatchInterval is how often the scheduler scans for due integrations.
const dispatchInterval = time.Minute

// Manager owns the sync queue and the scheduler loop that fills it
type Manager struct {
	queue          *Queue
	repos          *repository.Repositories
	dispatchTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the global sync manager (singleton). Must be called once
// during startup before GetManager.
func InitManager(runner Runner, repos *repository.Repositories) *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if v, err := strconv.Atoi(env.GetEnv("SYNC_WORKER_COUNT", "5")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(runner, workerCount),
			repos:  repos,
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global sync manager (singleton). Returns nil before
// InitManager.
func GetManager() *Manager {
	return globalManager
}

// GetQueue returns the managed sync queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the sync queue and the scheduler loop
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[SyncManager] Starting sync queue and scheduler")

	m.queue.Start()

	m.dispatchTicker = time.NewTicker(dispatchInterval)
	m.wg.Add(1)
	go m.dispatchWorker()

	log.Info("[SyncManager] Started successfully")
}

// Stop stops the sync queue and the scheduler loop
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[SyncManager] Stopping sync queue and scheduler...")

	if m.dispatchTicker != nil {
		m.dispatchTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[SyncManager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// TriggerSync enqueues a manual sync attempt for one integration, bypassing
// the dueness check but not the per-integration lock.
func (m *Manager) TriggerSync(tenantIntegrationID uint) (*SyncJob, error) {
	return m.queue.EnqueueSync(tenantIntegrationID, models.SyncTriggeredByManual)
}

// dispatchWorker runs the scheduler tick: scan candidates, enqueue the due ones
func (m *Manager) dispatchWorker() {
	defer m.wg.Done()
	log.Infof("[SyncManager] Scheduler running (interval: %s)", dispatchInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[SyncManager] Scheduler stopping")
			return
		case now := <-m.dispatchTicker.C:
			m.dispatchDue(now)
		}
	}
}

// dispatchDue enqueues one scheduled job per due integration. A failure to
// enqueue one integration never blocks the rest of the scan.
func (m *Manager) dispatchDue(now time.Time) {
	candidates, err := m.repos.TenantIntegration.ListSyncCandidates()
	if err != nil {
		log.Errorf("[SyncManager] Failed to list sync candidates: %v", err)
		return
	}

	dispatched := 0
	for i := range candidates {
		ti := &candidates[i]
		if !isDue(ti, now) {
			continue
		}
		if _, err := m.queue.EnqueueSync(ti.ID, models.SyncTriggeredBySchedule); err != nil {
			log.Errorf("[SyncManager] Failed to enqueue sync for integration %d: %v", ti.ID, err)
			continue
		}
		dispatched++
	}

	if dispatched > 0 {
		log.Infof("[SyncManager] Dispatched %d scheduled syncs", dispatched)
	}
}

// isDue reports whether an integration's configured interval has elapsed
// since its last attempt. A connection that has never synced is always due.
func isDue(ti *models.TenantIntegration, now time.Time) bool {
	if ti.LastSyncAt == nil {
		return true
	}
	return now.Sub(*ti.LastSyncAt) >= ti.SyncInterval()
}
