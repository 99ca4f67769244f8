// Package crossdraft runs the nightly cross-draft batch and keeps its last summary for the dashboard.
package crossdraft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/draftguard/internal/analysis/crossdraft"
	"github.com/robalyx/draftguard/internal/worker/core"
	"go.uber.org/zap"
)

const (
	// WorkerType names the worker in status reports.
	WorkerType = "cross_draft"
	// LastResultKey holds the summary of the most recent batch.
	LastResultKey = "cross_draft:last_result"
)

// ErrNoResult is returned when no batch has finished yet.
var ErrNoResult = errors.New("no cross-draft batch has finished yet")

// BatchRunner runs the cross-draft batch.
type BatchRunner interface {
	AnalyzeAllFlaggedPairs(ctx context.Context) (*crossdraft.BatchResult, error)
}

// Worker runs the cross-draft batch on a cron schedule.
type Worker struct {
	runner   BatchRunner
	client   rueidis.Client
	reporter *core.StatusReporter
	schedule string
	logger   *zap.Logger
}

// New creates a cross-draft worker. statusClient stores heartbeats and the last summary.
func New(runner BatchRunner, statusClient rueidis.Client, schedule string, logger *zap.Logger) *Worker {
	return &Worker{
		runner:   runner,
		client:   statusClient,
		reporter: core.NewStatusReporter(statusClient, WorkerType, logger),
		schedule: schedule,
		logger:   logger.Named("cross_draft_worker"),
	}
}

// Start runs the batch on schedule until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Cross-draft worker started",
		zap.String("workerID", w.reporter.GetWorkerID()),
		zap.String("schedule", w.schedule))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	w.reporter.UpdateStatus("Waiting for next run", 0)
	return core.RunSchedule(ctx, w.schedule, w.logger, func(ctx context.Context) {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Cross-draft batch failed", zap.Error(err))
		}
	})
}

// RunOnce runs one batch and records its summary.
func (w *Worker) RunOnce(ctx context.Context) (*crossdraft.BatchResult, error) {
	w.reporter.SetHealthy(true)
	w.reporter.UpdateStatus("Analyzing flagged pairs", 10)

	result, err := w.runner.AnalyzeAllFlaggedPairs(ctx)
	if err != nil {
		w.reporter.SetHealthy(false)
		w.reporter.UpdateStatus("Batch failed", 0)
		return nil, err
	}

	w.logger.Info("Cross-draft batch finished",
		zap.Int("pairsAnalyzed", result.PairsAnalyzed),
		zap.Int("criticalPairs", result.CriticalPairs),
		zap.Int("highRiskPairs", result.HighRiskPairs),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))

	w.reporter.RecordWork(result.PairsAnalyzed, len(result.Failures))
	w.reporter.UpdateStatus("Saving summary", 90)
	if err := w.saveResult(ctx, result); err != nil {
		// The profiles are already stored; only the dashboard summary is stale.
		w.logger.Warn("Failed to save batch summary", zap.Error(err))
	}

	w.reporter.UpdateStatus("Waiting for next run", 100)
	return result, nil
}

func (w *Worker) saveResult(ctx context.Context, result *crossdraft.BatchResult) error {
	data, err := sonic.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal batch summary: %w", err)
	}
	return w.client.Do(ctx, w.client.B().Set().Key(LastResultKey).Value(string(data)).Build()).Error()
}

// LastResult returns the summary of the most recent batch or ErrNoResult.
func LastResult(ctx context.Context, client rueidis.Client) (*crossdraft.BatchResult, error) {
	data, err := client.Do(ctx, client.B().Get().Key(LastResultKey).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrNoResult
		}
		return nil, fmt.Errorf("failed to load batch summary: %w", err)
	}

	var result crossdraft.BatchResult
	if err := sonic.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch summary: %w", err)
	}
	return &result, nil
}

// LastRun returns when the most recent batch finished, or the zero time.
func LastRun(ctx context.Context, client rueidis.Client) time.Time {
	result, err := LastResult(ctx, client)
	if err != nil {
		return time.Time{}
	}
	return result.FinishedAt
}
