package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// StatusReporter publishes a worker's heartbeat on a fixed interval.
// It carries the current task and running totals of processed and failed items.
type StatusReporter struct {
	monitor  *Monitor
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatusReporter creates a reporter with a fresh worker id.
func NewStatusReporter(client rueidis.Client, workerType string, logger *zap.Logger) *StatusReporter {
	return &StatusReporter{
		monitor:  NewMonitor(client, logger),
		interval: HeartbeatInterval,
		logger:   logger.Named("status_reporter"),
		status: Status{
			WorkerID:   uuid.New().String(),
			WorkerType: workerType,
			IsHealthy:  true,
		},
	}
}

// Start reports immediately and then on every interval until ctx ends or Stop
// is called. Calling Start on a running reporter does nothing.
func (r *StatusReporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			r.report(ctx)

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}(r.done)
}

// Stop ends reporting and waits for the last heartbeat. It is safe to call more than once.
func (r *StatusReporter) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// UpdateStatus sets the task shown for the worker.
func (r *StatusReporter) UpdateStatus(task string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.CurrentTask = task
	r.status.Progress = progress
}

// SetHealthy marks whether the last unit of work went through.
func (r *StatusReporter) SetHealthy(healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.IsHealthy = healthy
}

// RecordWork adds to the processed and failed totals.
func (r *StatusReporter) RecordWork(processed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Processed += processed
	r.status.Failed += failed
}

// GetWorkerID returns the unique worker ID.
func (r *StatusReporter) GetWorkerID() string {
	return r.status.WorkerID
}

func (r *StatusReporter) report(ctx context.Context) {
	r.mu.Lock()
	status := r.status
	r.mu.Unlock()

	if err := r.monitor.ReportStatus(ctx, status); err != nil && ctx.Err() == nil {
		r.logger.Error("Failed to report status", zap.Error(err))
	}
}
