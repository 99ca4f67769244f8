package setup

import (
	"fmt"
	"time"

	"github.com/robalyx/draftguard/internal/adp"
	"github.com/robalyx/draftguard/internal/analysis/crossdraft"
	"github.com/robalyx/draftguard/internal/analysis/postdraft"
	"github.com/robalyx/draftguard/internal/proximity"
	"github.com/robalyx/draftguard/internal/queue"
	"github.com/robalyx/draftguard/internal/review"
)

// Services are the detection and review components built on top of an App.
type Services struct {
	ADP        *adp.Provider
	Recorder   *proximity.Recorder
	PostDraft  *postdraft.Analyzer
	CrossDraft *crossdraft.Analyzer
	Authorizer *review.AllowList
	Review     *review.Service
	Queue      *queue.Manager
}

// NewServices wires the components from the app's configuration and connections.
func NewServices(app *App) (*Services, error) {
	detection := &app.Config.Common.Detection
	models := app.DB.Model()

	provider := adp.NewProvider(
		models.ADP(), app.CacheClient, time.Duration(detection.ADPCacheTTL)*time.Minute, app.Logger,
	)

	postDraft, err := postdraft.NewAnalyzer(models, provider, detection, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create post-draft analyzer: %w", err)
	}

	authorizer := review.NewAllowList(app.Config.Common.Review.AdminIDs)
	applier := review.NewStandingApplier(&app.Config.Common.Review, app.Logger)

	return &Services{
		ADP:        provider,
		Recorder:   proximity.NewRecorder(models, detection, app.Logger),
		PostDraft:  postDraft,
		CrossDraft: crossdraft.NewAnalyzer(models, detection, app.Logger),
		Authorizer: authorizer,
		Review:     review.NewService(models, authorizer, applier, app.Logger),
		Queue:      queue.NewManager(app.QueueClient, app.Config.Worker.PostDraft.MaxAttempts, app.Logger),
	}, nil
}
