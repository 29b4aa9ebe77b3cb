package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/usecase/series"
)

// HorizonSweeper extends the materialization horizon of every active series.
type HorizonSweeper interface {
	ExtendAll(ctx context.Context) (series.SweepReport, error)
}

// HorizonScheduler runs the horizon sweep on a cron schedule. A sweep that is
// still running when the next tick fires is not started twice.
type HorizonScheduler struct {
	sweeper HorizonSweeper
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger
	running atomic.Bool
}

// NewHorizonScheduler parses schedule as a six-field cron expression
// (seconds first) or a descriptor such as "@every 6h".
func NewHorizonScheduler(sweeper HorizonSweeper, schedule string, timeout time.Duration, logger *zap.Logger) (*HorizonScheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("horizon scheduler: sweeper is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := &HorizonScheduler{
		sweeper: sweeper,
		cron:    cron.New(cron.WithSeconds()),
		timeout: timeout,
		logger:  logger,
	}
	if _, err := hs.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), hs.timeout)
		defer cancel()
		hs.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("horizon scheduler: schedule %q: %w", schedule, err)
	}
	return hs, nil
}

// Start launches the scheduler and runs one sweep in the background so the
// horizon is current right after boot.
func (hs *HorizonScheduler) Start() {
	hs.cron.Start()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hs.timeout)
		defer cancel()
		hs.RunOnce(ctx)
	}()
	hs.logger.Info("horizon scheduler started")
}

func (hs *HorizonScheduler) Stop(ctx context.Context) {
	stopCtx := hs.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	hs.logger.Info("horizon scheduler stopped")
}

// RunOnce performs a sweep unless one is already in flight and reports whether it ran.
func (hs *HorizonScheduler) RunOnce(ctx context.Context) bool {
	if !hs.running.CompareAndSwap(false, true) {
		hs.logger.Debug("horizon sweep already running")
		return false
	}
	defer hs.running.Store(false)

	report, err := hs.sweeper.ExtendAll(ctx)
	if err != nil {
		hs.logger.Error("horizon sweep finished with failures",
			zap.Int("failures", report.Failures),
			zap.Error(err))
	}
	return true
}
