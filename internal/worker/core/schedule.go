package core

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler creates a cron scheduler that recovers panicking jobs and
// skips a run while the previous one is still going.
func NewScheduler(logger *zap.Logger) *cron.Cron {
	l := cronLogger{sugar: logger.Sugar()}
	return cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// RunSchedule runs job on the standard five field cron spec until ctx is
// cancelled, then waits for a running job to finish.
func RunSchedule(ctx context.Context, spec string, logger *zap.Logger, job func(context.Context)) error {
	scheduler := NewScheduler(logger)

	if _, err := scheduler.AddFunc(spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	scheduler.Start()
	entries := scheduler.Entries()
	if len(entries) > 0 {
		logger.Info("Scheduled job", zap.String("schedule", spec), zap.Time("nextRun", entries[0].Next))
	}

	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}
