package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/arcstream/arcstream/internal/correlation"
	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/logger"
)

// ErrBackendUnavailable wraps a storage failure the caller may retry.
var ErrBackendUnavailable = errors.New("queue backend unavailable")

// Config tunes lease and retry behavior.
type Config struct {
	DefaultLeaseTTL  time.Duration
	SweepInterval    time.Duration
	RetryBackoffBase time.Duration
	// MaxAttempts caps retries per kind; a job whose attempt count reaches
	// its cap moves to the dead-letter table.
	MaxAttempts map[Kind]int
}

func DefaultConfig() Config {
	return Config{
		DefaultLeaseTTL:  2 * time.Minute,
		SweepInterval:    15 * time.Second,
		RetryBackoffBase: 5 * time.Second,
		MaxAttempts: map[Kind]int{
			KindFolderScan:     3,
			KindMediaAnalyze:   3,
			KindMetadataEnrich: 5,
			KindIndexUpsert:    5,
			KindImageFetch:     5,
		},
	}
}

func (c Config) maxAttempts(kind Kind) int {
	if n, ok := c.MaxAttempts[kind]; ok && n > 0 {
		return n
	}
	return 3
}

// Service is the queue facade the dispatcher, orchestrator and HTTP
// surface talk to. It owns event publication and correlation bookkeeping;
// the Store owns durability.
type Service struct {
	store        Store
	bus          *events.Bus
	correlations *correlation.Cache
	cfg          Config
	now          func() time.Time
}

func NewService(store Store, bus *events.Bus, correlations *correlation.Cache, cfg Config) *Service {
	return &Service{
		store:        store,
		bus:          bus,
		correlations: correlations,
		cfg:          cfg,
		// UTC keeps the persisted timestamps comparable as text in sqlite.
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Correlation returns the correlation id recorded for jobID, if any.
func (s *Service) Correlation(jobID int64) (string, bool) {
	return s.correlations.Get(jobID)
}

// Enqueue submits one job. A duplicate active dedupe key is not an error:
// the returned handle points at the surviving job and a Merged event is
// published under that job's correlation id.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (Handle, error) {
	job, err := s.toJob(req)
	if err != nil {
		return Handle{}, err
	}

	res, err := s.store.InsertJob(ctx, job)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return s.settleInsert(ctx, res), nil
}

// EnqueueMany submits a batch in one transaction with per-entry merge
// semantics.
func (s *Service) EnqueueMany(ctx context.Context, reqs []EnqueueRequest) ([]Handle, error) {
	jobs := make([]Job, 0, len(reqs))
	for _, req := range reqs {
		job, err := s.toJob(req)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	results, err := s.store.InsertJobs(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	handles := make([]Handle, 0, len(results))
	for _, res := range results {
		handles = append(handles, s.settleInsert(ctx, res))
	}
	return handles, nil
}

func (s *Service) toJob(req EnqueueRequest) (Job, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode payload: %w", err)
	}

	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = s.now()
	}

	return Job{
		Kind:          req.Kind,
		Priority:      req.Priority,
		LibraryID:     req.LibraryID,
		Payload:       payload,
		DedupeKey:     req.DedupeKey,
		Status:        StatusQueued,
		ScheduledAt:   scheduledAt,
		EnqueuedAt:    s.now(),
		CorrelationID: req.CorrelationID,
	}, nil
}

// settleInsert registers the correlation and publishes the lifecycle event
// for one insert outcome.
func (s *Service) settleInsert(ctx context.Context, res InsertResult) Handle {
	job := res.Job

	if res.Merged {
		// the surviving job's correlation wins; the merged request never
		// gets its own identity.
		corrID, ok := s.correlations.Get(job.ID)
		if !ok {
			corrID = job.CorrelationID
			s.correlations.Adopt(job.ID, corrID)
		}
		s.publishJobEvent(ctx, events.TypeJobMerged, job, corrID, events.JobPayload{
			JobID:         job.ID,
			Kind:          string(job.Kind),
			ExistingJobID: job.ID,
		})
		return Handle{JobID: job.ID, CorrelationID: corrID, MergedInto: job.ID}
	}

	corrID := job.CorrelationID
	if corrID == "" {
		corrID = s.correlations.Assign(job.ID)
		s.persistCorrelation(ctx, job.ID, corrID)
	} else {
		s.correlations.Adopt(job.ID, corrID)
	}

	s.publishJobEvent(ctx, events.TypeJobEnqueued, job, corrID, events.JobPayload{
		JobID:    job.ID,
		Kind:     string(job.Kind),
		Priority: job.Priority.String(),
	})
	return Handle{JobID: job.ID, CorrelationID: corrID}
}

// persistCorrelation backfills the minted correlation id onto the job row
// so a restart can rebuild the cache for in-flight jobs.
func (s *Service) persistCorrelation(ctx context.Context, jobID int64, corrID string) {
	type correlationWriter interface {
		SetJobCorrelation(ctx context.Context, jobID int64, corrID string) error
	}
	if w, ok := s.store.(correlationWriter); ok {
		if err := w.SetJobCorrelation(ctx, jobID, corrID); err != nil {
			logger.FromCtx(ctx).Warn("failed to persist correlation id", zap.Int64("job_id", jobID), zap.Error(err))
		}
	}
}

// Dequeue claims the next ready job of kind for workerID under a lease.
// Returns nil when the queue has nothing ready.
func (s *Service) Dequeue(ctx context.Context, kind Kind, workerID string, ttl time.Duration, sel *Selector) (*Lease, error) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultLeaseTTL
	}

	lease, err := s.store.LeaseNext(ctx, kind, workerID, ttl, s.now(), sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if lease == nil {
		return nil, nil
	}

	corrID := s.correlationFor(lease.Job)
	s.publishJobEvent(ctx, events.TypeJobDequeued, lease.Job, corrID, events.JobPayload{
		JobID:   lease.Job.ID,
		Kind:    string(lease.Job.Kind),
		Attempt: lease.Job.Attempt,
	})
	return lease, nil
}

// Renew extends workerID's lease on jobID.
func (s *Service) Renew(ctx context.Context, jobID int64, workerID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.DefaultLeaseTTL
	}
	if err := s.store.RenewLease(ctx, jobID, workerID, ttl, s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Complete finishes the job and releases its correlation entry — this is
// one of the two terminal events.
func (s *Service) Complete(ctx context.Context, jobID int64, workerID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := s.store.CompleteJob(ctx, jobID, workerID); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	corrID := s.correlationFor(job)
	s.publishJobEvent(ctx, events.TypeJobCompleted, job, corrID, events.JobPayload{
		JobID: jobID,
		Kind:  string(job.Kind),
	})
	s.correlations.Evict(jobID)
	return nil
}

// Fail records a failed attempt. Retryable failures under the per-kind cap
// requeue with jittered exponential backoff; everything else dead-letters.
func (s *Service) Fail(ctx context.Context, jobID int64, workerID string, failure error, retryable bool) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	corrID := s.correlationFor(job)
	msg := failure.Error()
	attempt := job.Attempt + 1

	if retryable && attempt < s.cfg.maxAttempts(job.Kind) {
		if err := s.store.RequeueJob(ctx, jobID, attempt, s.now().Add(s.backoff(attempt)), msg); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		s.publishJobEvent(ctx, events.TypeJobFailed, job, corrID, events.JobPayload{
			JobID:     jobID,
			Kind:      string(job.Kind),
			Attempt:   attempt,
			Error:     msg,
			Retryable: true,
		})
		return nil
	}

	if err := s.store.DeadLetterJob(ctx, jobID, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	s.publishJobEvent(ctx, events.TypeJobFailed, job, corrID, events.JobPayload{
		JobID:     jobID,
		Kind:      string(job.Kind),
		Attempt:   attempt,
		Error:     msg,
		Retryable: false,
	})
	s.publishJobEvent(ctx, events.TypeJobDeadLettered, job, corrID, events.JobPayload{
		JobID:   jobID,
		Kind:    string(job.Kind),
		Attempt: attempt,
		Error:   msg,
	})
	s.correlations.Evict(jobID)
	return nil
}

// StartSweeper runs the lease-expiry sweep until ctx is cancelled.
func (s *Service) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep returns expired leases to queued and dead-letters the jobs that
// already exhausted their attempt cap.
func (s *Service) Sweep(ctx context.Context) {
	log := logger.FromCtx(ctx)

	expired, err := s.store.ExpireLeases(ctx, s.now())
	if err != nil {
		log.Warn("lease sweep failed", zap.Error(err))
		return
	}

	for _, job := range expired {
		corrID := s.correlationFor(job)
		if job.Attempt >= s.cfg.maxAttempts(job.Kind) {
			if err := s.store.DeadLetterJob(ctx, job.ID, "lease expired after max attempts"); err != nil {
				log.Warn("failed to dead-letter expired job", zap.Int64("job_id", job.ID), zap.Error(err))
				continue
			}
			s.publishJobEvent(ctx, events.TypeJobDeadLettered, job, corrID, events.JobPayload{
				JobID:   job.ID,
				Kind:    string(job.Kind),
				Attempt: job.Attempt,
				Error:   "lease expired after max attempts",
			})
			s.correlations.Evict(job.ID)
			continue
		}

		log.Debug("lease expired, job requeued",
			zap.Int64("job_id", job.ID),
			zap.String("kind", string(job.Kind)),
			zap.Int("attempt", job.Attempt))
	}
}

// ListDeadLetters exposes the dead-letter table for introspection.
func (s *Service) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	return s.store.ListDeadLetters(ctx, limit)
}

// GetJob reads one job row.
func (s *Service) GetJob(ctx context.Context, jobID int64) (Job, error) {
	return s.store.GetJob(ctx, jobID)
}

func (s *Service) correlationFor(job Job) string {
	if corrID, ok := s.correlations.Get(job.ID); ok {
		return corrID
	}
	if job.CorrelationID != "" {
		s.correlations.Adopt(job.ID, job.CorrelationID)
		return job.CorrelationID
	}
	return ""
}

// backoff is base * 2^(attempt-1) plus jitter up to one base interval,
// staggered the same way the rate-limited HTTP client staggers its 429
// retries.
func (s *Service) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBackoffBase
	if base <= 0 {
		base = 5 * time.Second
	}
	exp := time.Duration(1<<(attempt-1)) * base
	jitter := time.Duration(rand.Int63n(int64(base)))
	return exp + jitter
}

func (s *Service) publishJobEvent(ctx context.Context, typ events.Type, job Job, corrID string, payload events.JobPayload) {
	ev := events.Event{
		Type:          typ,
		CorrelationID: corrID,
		LibraryID:     job.LibraryID,
		OccurredAt:    s.now().UTC(),
		Payload:       payload,
	}
	if err := s.bus.Publish(ctx, events.TopicJobs, ev); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish job event", zap.String("type", string(typ)), zap.Error(err))
	}
}
