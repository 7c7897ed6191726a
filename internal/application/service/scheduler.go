package service

import (
	"context"
	"log/slog"
	"time"
)

// UserLister enumerates the users a scheduled tick covers.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Scheduler starts background jobs for every user on a fixed interval.
type Scheduler struct {
	svc      *ReconcileService
	users    UserLister
	interval time.Duration
	kinds    []string
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler running every job kind on each tick.
func NewScheduler(svc *ReconcileService, users UserLister, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		svc:      svc,
		users:    users,
		interval: interval,
		kinds:    JobKinds,
		logger:   logger,
	}
}

// Tick starts one job per kind per user and returns the job ids.
func (s *Scheduler) Tick(ctx context.Context) ([]string, error) {
	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, userID := range userIDs {
		for _, kind := range s.kinds {
			id, err := s.svc.StartJob(kind, userID)
			if err != nil {
				s.logger.Warn("failed to schedule job", "kind", kind, "user_id", userID, "error", err)
				continue
			}
			ids = append(ids, id)
		}
	}
	s.logger.Info("scheduled passes", "users", len(userIDs), "jobs", len(ids))
	return ids, nil
}

// Start runs Tick every interval until Stop.
func (s *Scheduler) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("scheduler started", "interval", s.interval)
		for {
			select {
			case <-s.stop:
				s.logger.Info("scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.Tick(context.Background()); err != nil {
					s.logger.Error("scheduled tick failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the ticker and waits for the loop to exit. Jobs already
// started keep running.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
}
