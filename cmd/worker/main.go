package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robalyx/draftguard/internal/queue"
	"github.com/robalyx/draftguard/internal/setup"
	"github.com/robalyx/draftguard/internal/setup/telemetry"
	"github.com/robalyx/draftguard/internal/worker/adprefresh"
	"github.com/robalyx/draftguard/internal/worker/core"
	"github.com/robalyx/draftguard/internal/worker/crossdraft"
	"github.com/robalyx/draftguard/internal/worker/postdraft"
	"github.com/robalyx/draftguard/pkg/utils"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// PostDraftWorker analyzes completed drafts from the queue.
	PostDraftWorker = "post-draft"

	// CrossDraftWorker runs the scheduled cross-draft batch.
	CrossDraftWorker = "cross-draft"

	// ADPWorker rebuilds the shared ADP snapshot.
	ADPWorker = "adp"

	// restartDelay is how long a crashed worker waits before starting again.
	restartDelay = 5 * time.Second

	deadLetterLimit = 50
)

var ErrInvalidWorker = errors.New("invalid worker type")

// runner is a single worker instance.
type runner interface {
	Start(ctx context.Context) error
}

// loopRunner adapts workers whose Start only returns on cancellation.
type loopRunner struct {
	start func(ctx context.Context)
}

func (l loopRunner) Start(ctx context.Context) error {
	l.start(ctx)
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "worker",
		Usage: "Start the draftguard workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   1,
				Usage:   "Number of workers to start",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  PostDraftWorker,
				Usage: "Start post-draft analysis workers",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runWorkers(ctx, PostDraftWorker, c.Int("workers"))
				},
			},
			{
				Name:  CrossDraftWorker,
				Usage: "Start the scheduled cross-draft batch worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runWorkers(ctx, CrossDraftWorker, 1)
				},
			},
			{
				Name:  ADPWorker,
				Usage: "Start the ADP snapshot refresher",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runWorkers(ctx, ADPWorker, 1)
				},
			},
			{
				Name:   "status",
				Usage:  "Show the last heartbeat of every worker",
				Action: showStatus,
			},
		},
	}

	return app.Run(ctx, os.Args)
}

// runWorkers starts multiple instances of a worker type.
func runWorkers(ctx context.Context, workerType string, count int64) error {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceWorker, WorkerLogDir, workerType)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	services, err := setup.NewServices(app)
	if err != nil {
		return err
	}

	if delay := app.Config.Worker.StartupDelay; delay > 0 {
		app.Logger.Info("Delaying worker startup", zap.Int("seconds", delay))
		if utils.ContextSleep(ctx, time.Duration(delay)*time.Second) == utils.SleepCancelled {
			return nil
		}
	}

	var wg sync.WaitGroup
	for i := range count {
		workerLogger := app.LogManager.GetWorkerLogger(fmt.Sprintf("%s_worker_%d", workerType, i))

		var w runner
		switch workerType {
		case PostDraftWorker:
			worker := postdraft.New(
				services.PostDraft, services.Queue, app.StatusClient, &app.Config.Worker.PostDraft, workerLogger,
			)
			w = loopRunner{start: worker.Start}
		case CrossDraftWorker:
			w = crossdraft.New(services.CrossDraft, app.StatusClient, app.Config.Worker.CrossDraftSchedule, workerLogger)
		case ADPWorker:
			w = adprefresh.New(services.ADP, app.StatusClient, app.Config.Worker.ADPRefreshSchedule, workerLogger)
		default:
			return fmt.Errorf("%w: %s", ErrInvalidWorker, workerType)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, w, workerLogger)
		}()
	}

	app.Logger.Info("Started workers", zap.String("type", workerType), zap.Int64("count", count))
	wg.Wait()
	app.Logger.Info("All workers have finished")
	return nil
}

// runWorker runs a single worker in a loop with panic recovery.
func runWorker(ctx context.Context, w runner, logger *zap.Logger) {
	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Worker execution failed",
						zap.String("worker_type", fmt.Sprintf("%T", w)),
						zap.Any("panic", r))
				}
			}()

			logger.Info("Starting worker")
			if err := w.Start(ctx); err != nil {
				logger.Error("Worker returned an error", zap.Error(err))
			}
		}()

		if ctx.Err() != nil {
			break
		}

		logger.Warn("Worker stopped unexpectedly, restarting",
			zap.String("worker_type", fmt.Sprintf("%T", w)),
			zap.Duration("delay", restartDelay))

		utils.ContextSleep(ctx, restartDelay)
	}

	logger.Info("Context cancelled, stopping worker")
}

// showStatus prints the heartbeats stored by running workers.
func showStatus(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceCLI, WorkerLogDir, "")
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	statuses, err := core.NewMonitor(app.StatusClient, app.Logger).GetAllStatuses(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, status := range statuses {
		app.Logger.Info("Worker",
			zap.String("id", status.WorkerID),
			zap.String("type", status.WorkerType),
			zap.String("task", status.CurrentTask),
			zap.Int("progress", status.Progress),
			zap.Int("processed", status.Processed),
			zap.Int("failed", status.Failed),
			zap.Bool("healthy", status.IsHealthy),
			zap.Bool("stale", status.IsStale(now)),
			zap.Time("lastSeen", status.LastSeen))
	}

	drafts := queue.NewManager(app.QueueClient, app.Config.Worker.PostDraft.MaxAttempts, app.Logger)
	pending, err := drafts.Len(ctx)
	if err != nil {
		return err
	}
	dead, err := drafts.DeadLetters(ctx, deadLetterLimit)
	if err != nil {
		return err
	}
	app.Logger.Info("Post-draft queue",
		zap.Int("pending", pending),
		zap.Strings("deadLetters", dead))

	if result, err := crossdraft.LastResult(ctx, app.StatusClient); err == nil {
		app.Logger.Info("Last cross-draft batch",
			zap.Int("pairsAnalyzed", result.PairsAnalyzed),
			zap.Int("criticalPairs", result.CriticalPairs),
			zap.Int("highRiskPairs", result.HighRiskPairs),
			zap.Int("failures", len(result.Failures)),
			zap.Time("finishedAt", result.FinishedAt))
	}

	return nil
}
