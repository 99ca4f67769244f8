// Package adprefresh periodically rebuilds the shared ADP snapshot from the database.
package adprefresh

import (
	"context"

	"github.com/redis/rueidis"
	"github.com/robalyx/draftguard/internal/worker/core"
	"go.uber.org/zap"
)

// WorkerType names the worker in status reports.
const WorkerType = "adp_refresh"

// Rebuilder reloads the ADP snapshot from its source of record.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
	Size() int
}

// Worker rebuilds the snapshot on a cron schedule.
type Worker struct {
	provider Rebuilder
	reporter *core.StatusReporter
	schedule string
	logger   *zap.Logger
}

// New creates an ADP refresh worker.
func New(provider Rebuilder, statusClient rueidis.Client, schedule string, logger *zap.Logger) *Worker {
	return &Worker{
		provider: provider,
		reporter: core.NewStatusReporter(statusClient, WorkerType, logger),
		schedule: schedule,
		logger:   logger.Named("adp_refresh_worker"),
	}
}

// Start rebuilds once immediately and then on schedule until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("ADP refresh worker started",
		zap.String("workerID", w.reporter.GetWorkerID()),
		zap.String("schedule", w.schedule))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	w.RunOnce(ctx)
	return core.RunSchedule(ctx, w.schedule, w.logger, w.RunOnce)
}

// RunOnce rebuilds the snapshot. Failures are logged and the previous snapshot keeps serving.
func (w *Worker) RunOnce(ctx context.Context) {
	w.reporter.UpdateStatus("Rebuilding ADP snapshot", 10)

	if err := w.provider.Rebuild(ctx); err != nil {
		w.logger.Error("Failed to rebuild ADP snapshot", zap.Error(err))
		w.reporter.SetHealthy(false)
		w.reporter.UpdateStatus("Rebuild failed", 0)
		return
	}

	w.reporter.SetHealthy(true)
	w.reporter.UpdateStatus("Waiting for next run", 100)
	w.logger.Info("Rebuilt ADP snapshot", zap.Int("players", w.provider.Size()))
}
