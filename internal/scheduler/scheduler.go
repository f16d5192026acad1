// Package scheduler runs the engine's periodic jobs: the maintenance tick
// that drives every active bot through its cycle state machine, and the
// sweep that reopens timed-out matches.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/cyclebet/internal/config"
	"github.com/yourusername/cyclebet/internal/engine"
)

// Scheduler manages the engine's recurring jobs
type Scheduler struct {
	cron      *cron.Cron
	engine    *engine.Engine
	cfg       *config.EngineConfig
	logger    *logrus.Logger
	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
}

// NewScheduler creates a scheduler around the cycle engine
func NewScheduler(eng *engine.Engine, cfg *config.EngineConfig, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		engine: eng,
		cfg:    cfg,
		logger: logger,
		jobIDs: make([]cron.EntryID, 0),
	}
}

// ScheduleTick registers the maintenance tick at the configured interval.
// Each run drives all active bots: materializing due cycles, closing
// completed ones and clearing elapsed pauses.
func (s *Scheduler) ScheduleTick() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	interval := s.cfg.TickIntervalSeconds
	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(interval)*time.Second)
		defer cancel()
		s.engine.Tick(ctx)
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", interval), jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add tick job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("interval_seconds", interval).Info("Scheduled maintenance tick")

	return nil
}

// ScheduleSweep registers the timeout sweep. A matched wager whose deadline
// has passed is treated as abandoned by its counterparty and returned to the
// matching pool.
func (s *Scheduler) ScheduleSweep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	interval := s.cfg.SweepIntervalSeconds
	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(interval)*time.Second)
		defer cancel()

		if _, err := s.engine.SweepTimeouts(ctx); err != nil {
			s.logger.WithError(err).Error("Timeout sweep failed")
		}
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", interval), jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("interval_seconds", interval).Info("Scheduled timeout sweep")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the time of the next scheduled job run
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}

	return nextRun
}
