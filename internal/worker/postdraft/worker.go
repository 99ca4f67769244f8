// Package postdraft consumes the completed-draft queue and scores each draft.
package postdraft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"github.com/robalyx/draftguard/internal/analysis/postdraft"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/queue"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/robalyx/draftguard/internal/worker/core"
	"github.com/robalyx/draftguard/pkg/utils"
	"go.uber.org/zap"
)

// WorkerType names the worker in status reports.
const WorkerType = "post_draft"

const errorBackoff = 30 * time.Second

// DraftAnalyzer scores a batch of drafts.
type DraftAnalyzer interface {
	AnalyzeDrafts(ctx context.Context, draftIDs []string, concurrency int) []postdraft.Outcome
}

// Worker pops completed drafts and runs the post-draft analysis on them.
type Worker struct {
	analyzer     DraftAnalyzer
	queue        *queue.Manager
	reporter     *core.StatusReporter
	logger       *zap.Logger
	batchSize    int
	pollInterval time.Duration
}

// New creates a post-draft worker.
func New(
	analyzer DraftAnalyzer, queue *queue.Manager, statusClient rueidis.Client,
	cfg *config.PostDraftWorker, logger *zap.Logger,
) *Worker {
	return &Worker{
		analyzer:     analyzer,
		queue:        queue,
		reporter:     core.NewStatusReporter(statusClient, WorkerType, logger),
		logger:       logger.Named("post_draft_worker"),
		batchSize:    cfg.BatchSize,
		pollInterval: time.Duration(cfg.PollInterval) * time.Millisecond,
	}
}

// Start runs the worker until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Post-draft worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	for {
		if utils.ContextGuard(ctx) {
			w.logger.Info("Context cancelled, stopping post-draft worker")
			return
		}
		w.reporter.SetHealthy(true)

		w.reporter.UpdateStatus("Getting next batch", 10)
		processed, err := w.ProcessBatch(ctx)
		if err != nil {
			w.logger.Error("Failed to process batch", zap.Error(err))
			w.reporter.SetHealthy(false)
			if !utils.ErrorSleep(ctx, errorBackoff, w.logger, "post-draft worker") {
				return
			}
			continue
		}

		// If no drafts to process, wait before checking again
		if processed == 0 {
			w.reporter.UpdateStatus("No drafts to process, waiting", 0)
			if !utils.IntervalSleep(ctx, w.pollInterval, w.logger, "post-draft worker") {
				return
			}
			continue
		}

		w.reporter.UpdateStatus("Completed", 100)
	}
}

// ProcessBatch analyzes one batch of queued drafts and returns how many were popped.
// Drafts that fail with a retryable error go back to the queue and the others are dead-lettered.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	items, err := w.queue.Dequeue(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	draftIDs := make([]string, len(items))
	for i, item := range items {
		draftIDs[i] = item.DraftID
	}

	w.reporter.UpdateStatus(fmt.Sprintf("Analyzing %d drafts", len(items)), 40)
	outcomes := w.analyzer.AnalyzeDrafts(ctx, draftIDs, postdraft.DefaultConcurrency)

	w.reporter.UpdateStatus("Updating queue", 80)
	var errs []error
	var succeeded, requeued, buried int
	for _, outcome := range outcomes {
		switch {
		case outcome.Err == nil:
			succeeded++
			if err := w.queue.Complete(ctx, outcome.DraftID); err != nil {
				errs = append(errs, err)
			}
		case types.IsTransient(outcome.Err) || errors.Is(outcome.Err, context.DeadlineExceeded):
			dead, err := w.queue.Requeue(ctx, outcome.DraftID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if dead {
				buried++
			} else {
				requeued++
			}
		default:
			buried++
			if err := w.queue.Bury(ctx, outcome.DraftID); err != nil {
				errs = append(errs, err)
			}
		}
	}

	w.reporter.RecordWork(succeeded, requeued+buried)
	w.logger.Info("Processed post-draft batch",
		zap.Int("drafts", len(items)),
		zap.Int("succeeded", succeeded),
		zap.Int("requeued", requeued),
		zap.Int("deadLettered", buried))

	return len(items), errors.Join(errs...)
}
