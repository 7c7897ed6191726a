package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// JobStatus represents the current state of a background job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// DefaultJobRetention is how long finished jobs stay queryable.
const DefaultJobRetention = time.Hour

// ErrJobNotFound is returned for unknown or pruned job ids.
var ErrJobNotFound = errors.New("job not found")

// Job is a snapshot of a background pass.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	UserID      int64      `json:"user_id"`
	Status      JobStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// JobKinds lists the passes StartJob accepts.
var JobKinds = []string{PassTransfers, PassSubscriptions, PassStatuses, PassAlerts}

type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	wg   sync.WaitGroup

	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*Job)}
}

// StartJob runs one pass for userID in the background and returns its id.
// Jobs run on context.Background() so they outlive the request that
// started them. Passes carry no per-user locking; concurrent jobs for one
// user are resolved by the store's guarded writes.
func (s *ReconcileService) StartJob(kind string, userID int64) (string, error) {
	run, err := s.jobRunner(kind)
	if err != nil {
		return "", err
	}

	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	s.jobs.mu.Lock()
	s.jobs.jobs[job.ID] = job
	s.jobs.mu.Unlock()

	s.jobs.wg.Add(1)
	go func() {
		defer s.jobs.wg.Done()
		s.setJobStatus(job.ID, StatusRunning)

		result, err := run(context.Background(), userID)
		s.finishJob(job.ID, result, err)
	}()

	s.logger.Info("job started", "job_id", job.ID, "kind", kind, "user_id", userID)
	return job.ID, nil
}

func (s *ReconcileService) jobRunner(kind string) (func(context.Context, int64) (any, error), error) {
	switch kind {
	case PassTransfers:
		return func(ctx context.Context, userID int64) (any, error) { return s.RunTransferDetection(ctx, userID) }, nil
	case PassSubscriptions:
		return func(ctx context.Context, userID int64) (any, error) { return s.ScanAndUpdateSubscriptions(ctx, userID) }, nil
	case PassStatuses:
		return func(ctx context.Context, userID int64) (any, error) { return s.UpdateSubscriptionStatuses(ctx, userID) }, nil
	case PassAlerts:
		return func(ctx context.Context, userID int64) (any, error) { return s.RunAlertCheck(ctx, userID) }, nil
	default:
		return nil, &ledger.ValidationError{Item: "job", Field: "kind", Value: kind, Reason: "unknown job kind"}
	}
}

func (s *ReconcileService) setJobStatus(id string, status JobStatus) {
	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()
	if job, ok := s.jobs.jobs[id]; ok {
		job.Status = status
	}
}

func (s *ReconcileService) finishJob(id string, result any, err error) {
	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()

	job, ok := s.jobs.jobs[id]
	if !ok {
		return
	}
	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		s.logger.Error("job failed", "job_id", id, "kind", job.Kind, "error", err)
		return
	}
	job.Status = StatusCompleted
	job.Result = result
	s.logger.Info("job completed", "job_id", id, "kind", job.Kind, "duration", now.Sub(job.StartedAt))
}

// GetJob returns a snapshot of one job.
func (s *ReconcileService) GetJob(id string) (*Job, error) {
	s.jobs.mu.RLock()
	defer s.jobs.mu.RUnlock()

	job, ok := s.jobs.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	snapshot := *job
	return &snapshot, nil
}

// ListJobs returns snapshots of every retained job.
func (s *ReconcileService) ListJobs() []*Job {
	s.jobs.mu.RLock()
	defer s.jobs.mu.RUnlock()

	out := make([]*Job, 0, len(s.jobs.jobs))
	for _, job := range s.jobs.jobs {
		snapshot := *job
		out = append(out, &snapshot)
	}
	return out
}

// WaitJobs blocks until every started job has finished.
func (s *ReconcileService) WaitJobs() {
	s.jobs.wg.Wait()
}

// CleanupOldJobs removes finished jobs completed more than maxAge ago.
func (s *ReconcileService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cleaned up old jobs", "removed", removed)
	}
	return removed
}

// StartCleanup prunes finished jobs older than DefaultJobRetention every
// interval. Call StopCleanup to stop it.
func (s *ReconcileService) StartCleanup(interval time.Duration) {
	s.jobs.cleanupStop = make(chan struct{})
	s.jobs.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.jobs.cleanupDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started", "check_interval", interval, "retention", DefaultJobRetention)
		for {
			select {
			case <-s.jobs.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				s.CleanupOldJobs(DefaultJobRetention)
			}
		}
	}()
}

// StopCleanup stops the cleanup goroutine and waits for it to exit.
func (s *ReconcileService) StopCleanup() {
	if s.jobs.cleanupStop == nil {
		return
	}
	close(s.jobs.cleanupStop)
	<-s.jobs.cleanupDone
	s.jobs.cleanupStop = nil
}
