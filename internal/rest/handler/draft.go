package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	restTypes "github.com/robalyx/draftguard/internal/rest/types"
	"github.com/robalyx/draftguard/pkg/utils"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// PickObserver inspects a stored pick in the background.
type PickObserver interface {
	ObservePick(ctx context.Context, pick *types.PickLocationRecord)
	// WaitDraft blocks until the draft's running observations are done.
	WaitDraft(ctx context.Context, draftID string) error
}

// CompletionQueue schedules post-draft analysis.
type CompletionQueue interface {
	Enqueue(ctx context.Context, draftID string, completedAt time.Time) error
}

// DraftHandler receives the draft engine webhooks.
type DraftHandler struct {
	picks    database.PickModel
	flags    database.FlagModel
	observer PickObserver
	queue    CompletionQueue
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewDraftHandler creates a new draft handler.
func NewDraftHandler(
	models database.Models, observer PickObserver, queue CompletionQueue, logger *zap.Logger,
) *DraftHandler {
	return &DraftHandler{
		picks:    models.Picks(),
		flags:    models.Flags(),
		observer: observer,
		queue:    queue,
		validate: newValidator(),
		logger:   logger.Named("draft_handler"),
		now:      time.Now,
	}
}

// RecordPick stores a completed pick and starts the proximity check without waiting for it.
func (h *DraftHandler) RecordPick(w http.ResponseWriter, req bunrouter.Request) error {
	draftID := req.Param("id")

	var body restTypes.PickRequest
	if err := decodeBody(w, req.Request, &body, false); err != nil {
		return writeError(w, h.logger, err)
	}

	pick, err := h.toPick(draftID, &body)
	if err != nil {
		return writeError(w, h.logger, err)
	}

	if err := dbretry.NoResult(req.Context(), func(ctx context.Context) error {
		return h.picks.SavePick(ctx, pick)
	}); err != nil {
		return writeError(w, h.logger, err)
	}

	h.observer.ObservePick(req.Context(), pick)

	return writeJSON(w, http.StatusAccepted, restTypes.AcceptedResponse{
		DraftID: draftID,
		Status:  restTypes.AcceptStatus,
	})
}

// CompleteDraft waits for the draft's running pick observations, freezes its
// proximity flags and queues the post-draft analysis.
func (h *DraftHandler) CompleteDraft(w http.ResponseWriter, req bunrouter.Request) error {
	draftID := req.Param("id")

	var body restTypes.CompleteRequest
	if err := decodeBody(w, req.Request, &body, true); err != nil {
		return writeError(w, h.logger, err)
	}

	completedAt := body.CompletedAt
	if completedAt.IsZero() {
		completedAt = h.now()
	}

	// Events of the last picks must land before the document turns read-only.
	if err := h.observer.WaitDraft(req.Context(), draftID); err != nil {
		return writeError(w, h.logger, err)
	}

	if err := dbretry.NoResult(req.Context(), func(ctx context.Context) error {
		return h.flags.FinalizeFlags(ctx, draftID)
	}); err != nil {
		return writeError(w, h.logger, err)
	}

	if err := h.queue.Enqueue(req.Context(), draftID, completedAt); err != nil {
		return writeError(w, h.logger, err)
	}

	h.logger.Info("Draft completed",
		zap.String("draftID", draftID),
		zap.Time("completedAt", completedAt))

	return writeJSON(w, http.StatusAccepted, restTypes.AcceptedResponse{
		DraftID: draftID,
		Status:  restTypes.AcceptStatus,
	})
}

func (h *DraftHandler) toPick(draftID string, body *restTypes.PickRequest) (*types.PickLocationRecord, error) {
	if draftID == "" {
		return nil, types.NewValidationError("draftId", "must not be empty")
	}
	if err := h.validate.Struct(body); err != nil {
		return nil, validationFailure(err)
	}

	pick := &types.PickLocationRecord{
		DraftID:    draftID,
		PickNumber: body.PickNumber,
		UserID:     body.UserID,
		PlayerID:   body.PlayerID,
		Timestamp:  body.Timestamp,
	}
	if pick.Timestamp.IsZero() {
		pick.Timestamp = h.now()
	}

	if c := body.Coordinates; c != nil {
		if !utils.ValidCoordinates(c.Latitude, c.Longitude) {
			return nil, types.NewValidationError("coordinates", "latitude or longitude out of range")
		}
		pick.Coordinates = &types.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
	}

	return pick, nil
}
