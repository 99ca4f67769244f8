package handler

import (
	"context"
	"net/http"

	"github.com/robalyx/draftguard/internal/analysis/crossdraft"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// BatchRunner runs the cross-draft batch.
type BatchRunner interface {
	AnalyzeAllFlaggedPairs(ctx context.Context) (*crossdraft.BatchResult, error)
}

// JobHandler triggers background jobs on demand.
type JobHandler struct {
	runner BatchRunner
	logger *zap.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(runner BatchRunner, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		runner: runner,
		logger: logger.Named("job_handler"),
	}
}

// RunCrossDraft runs the cross-draft batch and returns its summary.
func (h *JobHandler) RunCrossDraft(w http.ResponseWriter, req bunrouter.Request) error {
	result, err := h.runner.AnalyzeAllFlaggedPairs(req.Context())
	if err != nil {
		return writeError(w, h.logger, err)
	}

	h.logger.Info("Cross-draft batch finished",
		zap.Int("pairsAnalyzed", result.PairsAnalyzed),
		zap.Int("criticalPairs", result.CriticalPairs),
		zap.Int("highRiskPairs", result.HighRiskPairs),
		zap.Int("failures", len(result.Failures)))

	return writeJSON(w, http.StatusOK, result)
}
