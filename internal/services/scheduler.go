package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/robfig/cron/v3"

	"spinwheel-backend/internal/wheel"
)

// Scheduler runs periodic jobs: pool snapshots into the recorder.
type Scheduler struct {
	cron     *cron.Cron
	engine   *GameEngine
	recorder Recorder
	ctx      context.Context
	log      slog.Logger
}

func NewScheduler(ctx context.Context, engine *GameEngine, rec Recorder, log slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Disabled
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		engine:   engine,
		recorder: rec,
		ctx:      ctx,
		log:      log,
	}
}

// Register adds the snapshot job on the given six-field cron spec.
func (s *Scheduler) Register(snapshotSpec string) error {
	if _, err := s.cron.AddFunc(snapshotSpec, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// SnapshotNow takes a snapshot immediately.
func (s *Scheduler) SnapshotNow() error {
	snap, err := s.engine.Snapshot(s.ctx)
	if err != nil {
		return err
	}
	snap.TakenAt = time.Now().UTC()
	return s.recorder.RecordPoolSnapshot(snap)
}

func (s *Scheduler) snapshotTask() {
	err := s.SnapshotNow()
	switch {
	case errors.Is(err, wheel.ErrNotInitialized):
		s.log.Debug("Skipping pool snapshot: game not initialized")
	case err != nil:
		s.log.Errorf("Pool snapshot failed: %v", err)
	default:
		s.log.Trace("Pool snapshot recorded")
	}
}
