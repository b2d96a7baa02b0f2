package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const drainTag = "sync-queue-drain"

// Runner drains the queue on a fixed interval and whenever connectivity comes back.
type Runner struct {
	uc        syncqueue.UseCase
	scheduler *gocron.Scheduler
	interval  time.Duration
	logger    logger.ZapLogger
	ctx       context.Context
}

func NewRunner(uc syncqueue.UseCase, interval time.Duration, log logger.ZapLogger) *Runner {
	return &Runner{
		uc:        uc,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		logger:    log,
	}
}

// Start schedules the periodic drain. The job never overlaps itself.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx = ctx
	_, err := r.scheduler.Every(r.interval).
		Tag(drainTag).
		SingletonMode().
		WaitForSchedule().
		Do(r.drain)
	if err != nil {
		return fmt.Errorf("schedule drain: %w", err)
	}
	r.scheduler.StartAsync()
	r.logger.Info("sync queue runner started", zap.Duration("interval", r.interval))
	return nil
}

func (r *Runner) Stop() {
	r.scheduler.Stop()
}

// Trigger runs the drain job now, outside its schedule.
func (r *Runner) Trigger() {
	if err := r.scheduler.RunByTag(drainTag); err != nil {
		r.logger.Error("failed to trigger drain", zap.Error(err))
	}
}

// OnConnectivity is a connectivity listener: offline -> online triggers a drain.
func (r *Runner) OnConnectivity(_ context.Context, ev connectivity.Event) {
	if ev == connectivity.Online {
		r.Trigger()
	}
}

func (r *Runner) drain() {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	res, err := r.uc.Drain(ctx)
	switch {
	case errors.Is(err, apperror.ErrDrainInProgress):
		r.logger.Debug("drain skipped: another drain in progress")
	case err != nil:
		r.logger.Error("drain failed", zap.Error(err))
	case res.Failed > 0:
		r.logger.Warn("drain finished with failed entries", zap.Int("failed", res.Failed), zap.Strings("entry_ids", res.FailedIDs))
	}
}
