package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/truckwise/truckwise/internal/pkg/cache"
)

const (
	// Redis key prefixes
	SyncJobKeyPrefix  = "sync_job:"
	SyncQueueKey      = "sync_queue"
	SyncProcessingKey = "sync_processing"
	SyncStatsKey      = "sync_stats"

	SyncJobTTL = 24 * time.Hour // Job records expire after 24 hours
)

// Runner executes one sync attempt. The queue does not know what a sync is;
// it only moves jobs between lists and records their outcome.
type Runner interface {
	Run(ctx context.Context, job *SyncJob) error
}

// Queue manages sync jobs using Redis
type Queue struct {
	client     *redis.Client
	runner     Runner
	workers    int
	workerPool chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a new sync job queue
func NewQueue(runner Runner, workers int) *Queue {
	if workers <= 0 {
		workers = 3 // Default number of workers
	}

	return &Queue{
		client:     cache.GetClient(),
		runner:     runner,
		workers:    workers,
		workerPool: make(chan struct{}, workers),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the sync queue workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	log.Infof("[SyncQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.workerPool <- struct{}{}
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	// Start stuck-processing sweeper (recovers jobs stuck in processing due to crashes)
	q.wg.Add(1)
	go q.stuckSweeper(30*time.Minute, 1*time.Minute)
}

// Stop stops the sync queue workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[SyncQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[SyncQueue] All workers stopped")
}

// stuckSweeper periodically scans the processing list and fails jobs stuck
// for longer than maxAge. Unlike retryable work, a stuck sync attempt is not
// requeued; the scheduler enqueues a new attempt on the next due tick.
func (q *Queue) stuckSweeper(maxAge time.Duration, interval time.Duration) {
	defer q.wg.Done()
	log.Infof("[SyncQueue] Stuck sweeper running (maxAge=%s, interval=%s)", maxAge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			log.Info("[SyncQueue] Stuck sweeper stopping")
			return
		case <-ticker.C:
			ids, err := q.client.LRange(ctx, SyncProcessingKey, 0, -1).Result()
			if err != nil {
				log.Errorf("[SyncQueue] Sweeper LRange error: %v", err)
				continue
			}
			now := time.Now()
			for _, id := range ids {
				jobKey := SyncJobKeyPrefix + id
				data, err := q.client.Get(ctx, jobKey).Result()
				if err != nil {
					// Job data missing; remove from processing list
					if err != redis.Nil {
						log.Errorf("[SyncQueue] Sweeper Get error for %s: %v", id, err)
					}
					_ = q.client.LRem(ctx, SyncProcessingKey, 1, id).Err()
					continue
				}
				var job SyncJob
				if uerr := json.Unmarshal([]byte(data), &job); uerr != nil {
					log.Errorf("[SyncQueue] Sweeper unmarshal error for %s: %v", id, uerr)
					_ = q.client.LRem(ctx, SyncProcessingKey, 1, id).Err()
					continue
				}
				if job.Status != SyncJobStatusProcessing {
					// Clean up stray entry
					_ = q.client.LRem(ctx, SyncProcessingKey, 1, id).Err()
					continue
				}
				started := job.ProcessedAt
				if started == nil || started.IsZero() {
					tmp := job.UpdatedAt
					if tmp.IsZero() {
						tmp = job.CreatedAt
					}
					started = &tmp
				}
				if now.Sub(*started) > maxAge {
					log.Warnf("[SyncQueue] Failing stuck job %s (integration=%d), age=%s", job.ID, job.TenantIntegrationID, now.Sub(*started))
					job.MarkAsFailed("abandoned by sweeper")
					q.updateJob(ctx, &job)
					q.updateJobStats(ctx, SyncJobStatusFailed, 1)
					_ = q.client.LRem(ctx, SyncProcessingKey, 1, id).Err()
				}
			}
		}
	}
}

// worker processes jobs from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[SyncQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[SyncQueue] Worker %d stopping", id)
			return
		default:
			// Acquire worker slot
			<-q.workerPool

			job, err := q.dequeueJob(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[SyncQueue] Worker %d: Error dequeuing job: %v", id, err)
				}
				// Release worker slot and wait before retry
				q.workerPool <- struct{}{}
				time.Sleep(time.Second)
				continue
			}

			if job != nil {
				log.Infof("[SyncQueue] Worker %d processing job %s (integration %d)", id, job.ID, job.TenantIntegrationID)
				q.processJob(ctx, job)
			}

			// Release worker slot
			q.workerPool <- struct{}{}
		}
	}
}

// EnqueueSync adds a new sync job for the given tenant integration
func (q *Queue) EnqueueSync(tenantIntegrationID uint, triggeredBy string) (*SyncJob, error) {
	ctx := context.Background()

	job := &SyncJob{
		ID:                  uuid.New().String(),
		TenantIntegrationID: tenantIntegrationID,
		TriggeredBy:         triggeredBy,
		Status:              SyncJobStatusPending,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync job: %w", err)
	}

	jobKey := SyncJobKeyPrefix + job.ID

	// Use a pipeline for atomic operations
	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobData, SyncJobTTL)
	pipe.LPush(ctx, SyncQueueKey, job.ID)
	pipe.HIncrBy(ctx, SyncStatsKey, string(SyncJobStatusPending), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue sync job: %w", err)
	}

	log.Infof("[SyncQueue] Enqueued sync job %s for integration %d (%s)", job.ID, tenantIntegrationID, triggeredBy)
	return job, nil
}

// dequeueJob gets the next job from the queue
func (q *Queue) dequeueJob(ctx context.Context) (*SyncJob, error) {
	// Move job from pending queue to processing queue atomically
	result, err := q.client.BRPopLPush(ctx, SyncQueueKey, SyncProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	jobID := result
	jobKey := SyncJobKeyPrefix + jobID

	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		// Job data not found, remove from processing queue
		q.client.LRem(ctx, SyncProcessingKey, 1, jobID)
		return nil, fmt.Errorf("sync job data not found for ID %s", jobID)
	}

	var job SyncJob
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		// Invalid job data, remove from processing queue
		q.client.LRem(ctx, SyncProcessingKey, 1, jobID)
		return nil, fmt.Errorf("failed to unmarshal sync job %s: %w", jobID, err)
	}

	return &job, nil
}

// processJob processes a single sync job
func (q *Queue) processJob(ctx context.Context, job *SyncJob) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	err := q.runner.Run(ctx, job)

	if err != nil {
		log.Errorf("[SyncQueue] Sync job %s failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())
		q.updateJobStats(ctx, SyncJobStatusFailed, 1)
	} else {
		log.Infof("[SyncQueue] Sync job %s completed successfully", job.ID)
		job.MarkAsCompleted()
		q.updateJobStats(ctx, SyncJobStatusCompleted, 1)
	}

	q.updateJob(ctx, job)
	q.removeFromProcessing(ctx, job.ID)
}

// updateJob updates job data in Redis
func (q *Queue) updateJob(ctx context.Context, job *SyncJob) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[SyncQueue] Failed to marshal sync job %s: %v", job.ID, err)
		return
	}

	jobKey := SyncJobKeyPrefix + job.ID
	if err := q.client.Set(ctx, jobKey, jobData, SyncJobTTL).Err(); err != nil {
		log.Errorf("[SyncQueue] Failed to update sync job %s: %v", job.ID, err)
	}
}

// removeFromProcessing removes a job from the processing queue
func (q *Queue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, SyncProcessingKey, 1, jobID).Err(); err != nil {
		log.Errorf("[SyncQueue] Failed to remove sync job %s from processing queue: %v", jobID, err)
	}
}

// updateJobStats updates job statistics
func (q *Queue) updateJobStats(ctx context.Context, status SyncJobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, SyncStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[SyncQueue] Failed to update sync stats: %v", err)
	}
}

// GetJob retrieves a sync job by ID
func (q *Queue) GetJob(ctx context.Context, jobID string) (*SyncJob, error) {
	jobKey := SyncJobKeyPrefix + jobID
	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		return nil, err
	}

	var job SyncJob
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync job: %w", err)
	}

	return &job, nil
}

// GetJobStats returns statistics about sync job statuses
func (q *Queue) GetJobStats(ctx context.Context) (map[SyncJobStatus]int64, error) {
	stats, err := q.client.HGetAll(ctx, SyncStatsKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[SyncJobStatus]int64)
	for status, count := range stats {
		if countInt, err := json.Number(count).Int64(); err == nil {
			result[SyncJobStatus(status)] = countInt
		}
	}

	return result, nil
}

// GetQueueSize returns the number of pending sync jobs
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, SyncQueueKey).Result()
}

// GetProcessingSize returns the number of sync jobs being processed
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, SyncProcessingKey).Result()
}
