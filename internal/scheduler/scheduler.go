// Package scheduler runs background sync passes on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/model"
)

// DefaultInterval is used when New gets a non-positive interval.
const DefaultInterval = 5 * time.Minute

// Syncer performs one sync pass for an owner.
type Syncer interface {
	PerformSync(ctx context.Context, ownerID uuid.UUID) model.SyncResult
}

// Scheduler manages the periodic sync job.
type Scheduler struct {
	scheduler *gocron.Scheduler
	syncer    Syncer
	owner     uuid.UUID
	interval  time.Duration
	timeout   time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	last   model.SyncResult
	runs   int
}

// New creates a scheduler; call Start to run it. timeout bounds each pass (0: interval).
func New(s Syncer, owner uuid.UUID, interval, timeout time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = interval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		syncer:    s,
		owner:     owner,
		interval:  interval,
		timeout:   timeout,
		log:       log,
	}
}

// Start schedules the job and runs the first pass right away. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler: already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	if _, err := s.scheduler.Every(s.interval).StartImmediately().Do(s.runOnce, ctx); err != nil {
		cancel()
		return err
	}
	s.cancel = cancel
	s.scheduler.StartAsync()
	s.log.Info("periodic sync started", zap.Duration("interval", s.interval), zap.String("owner", s.owner.String()))
	return nil
}

// Stop cancels the running pass, if any, and stops scheduling new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.scheduler.Stop()
	s.log.Info("periodic sync stopped")
}

// Last returns the most recent result and how many passes ran.
func (s *Scheduler) Last() (model.SyncResult, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.runs
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.syncer.PerformSync(ctx, s.owner)
	switch res.Outcome {
	case model.SyncOK:
		s.log.Info("periodic sync done",
			zap.Int("words", res.WordsSynced),
			zap.Int("progress", res.ProgressSynced),
			zap.Int("collections", res.CollectionsSynced))
	case model.SyncConflict:
		s.log.Debug("periodic sync skipped", zap.String("reason", res.Error))
	default:
		s.log.Warn("periodic sync failed", zap.String("error", res.Error))
	}

	s.mu.Lock()
	s.last = res
	s.runs++
	s.mu.Unlock()
}
