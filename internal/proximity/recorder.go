// Package proximity records co-location events between draft participants.
package proximity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/robalyx/draftguard/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrEventDropped is returned when an event could not be stored within the attempt budget.
var ErrEventDropped = errors.New("proximity event dropped")

// Recorder appends proximity events to the per-draft flags document.
type Recorder struct {
	picks  database.PickModel
	flags  database.FlagModel
	config *config.Detection
	tracer trace.Tracer
	logger *zap.Logger
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]*draftWork
}

// draftWork counts the observations still running for one draft.
type draftWork struct {
	pending int
	done    chan struct{}
}

// NewRecorder creates a recorder.
func NewRecorder(models database.Models, cfg *config.Detection, logger *zap.Logger) *Recorder {
	return &Recorder{
		picks:    models.Picks(),
		flags:    models.Flags(),
		config:   cfg,
		tracer:   otel.Tracer("github.com/robalyx/draftguard/internal/proximity"),
		logger:   logger.Named("proximity"),
		inflight: make(map[string]*draftWork),
	}
}

// RecordProximityEvent stores one co-location event between two picks of a draft.
// Events farther apart than the threshold are ignored. The pair is stored in
// canonical order and an event already present for the same two picks is not
// added again. Write conflicts are retried with backoff; when the attempts are
// spent the event is dropped and ErrEventDropped is returned.
func (r *Recorder) RecordProximityEvent(
	ctx context.Context, draftID string,
	pickNumberA int, userA string, pickNumberB int, userB string,
	distanceFeet float64, timestamp time.Time,
) error {
	if err := validateEvent(draftID, pickNumberA, userA, pickNumberB, userB, distanceFeet); err != nil {
		return err
	}

	if distanceFeet > r.config.ProximityThresholdFeet {
		return nil
	}

	key, swapped := types.CanonicalPair(userA, userB)
	if swapped {
		pickNumberA, pickNumberB = pickNumberB, pickNumberA
	}
	event := types.ProximityEvent{
		PickNumberA:  pickNumberA,
		PickNumberB:  pickNumberB,
		DistanceFeet: distanceFeet,
		Timestamp:    timestamp.UTC(),
	}

	ctx, span := r.tracer.Start(ctx, "Recorder.RecordProximityEvent", trace.WithAttributes(
		attribute.String("draft.id", draftID),
		attribute.String("pair.id", key.ID()),
	))
	defer span.End()

	attempts := 0
	opts := utils.GetAttemptRetryOptions(r.config.RecordMaxAttempts, time.Duration(r.config.RecordBackoff)*time.Millisecond)
	opts.Retryable = func(err error) bool {
		return errors.Is(err, types.ErrConflict) || dbretry.IsRetryableError(err)
	}

	_, err := utils.WithRetry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, r.flags.UpdateFlags(ctx, draftID, func(flags *types.DraftIntegrityFlags) (bool, error) {
			return appendEvent(flags, key, event), nil
		})
	}, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event dropped")

		r.logger.Warn("Dropped proximity event",
			zap.String("draftID", draftID),
			zap.String("pairID", key.ID()),
			zap.Int("pickNumberA", pickNumberA),
			zap.Int("pickNumberB", pickNumberB),
			zap.Int("attempts", attempts),
			zap.Error(err))

		return fmt.Errorf("%w after %d attempt(s): %w", ErrEventDropped, attempts, err)
	}

	span.SetAttributes(attribute.Int("attempts", attempts))
	r.logger.Debug("Recorded proximity event",
		zap.String("draftID", draftID),
		zap.String("pairID", key.ID()),
		zap.Int("pickNumberA", pickNumberA),
		zap.Int("pickNumberB", pickNumberB),
		zap.Float64("distanceFeet", distanceFeet))

	return nil
}

// ObservePick compares a completed pick with the other located picks of its
// draft and records every co-location. It returns immediately: the comparison
// runs in the background under its own timeout and never reports errors to the caller.
func (r *Recorder) ObservePick(ctx context.Context, pick *types.PickLocationRecord) {
	if pick == nil {
		return
	}

	r.wg.Add(1)
	r.begin(pick.DraftID)
	go func() {
		defer r.wg.Done()
		defer r.end(pick.DraftID)
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Recovered from panic while observing pick",
					zap.String("draftID", pick.DraftID),
					zap.Int("pickNumber", pick.PickNumber),
					zap.Any("panic", rec),
					zap.Stack("stack"))
			}
		}()

		timeout := time.Duration(r.config.RecordTimeout) * time.Millisecond
		observeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		recorded, err := r.observe(observeCtx, pick)
		if err != nil {
			r.logger.Warn("Failed to observe pick",
				zap.String("draftID", pick.DraftID),
				zap.Int("pickNumber", pick.PickNumber),
				zap.Error(err))
			return
		}

		if recorded > 0 {
			r.logger.Info("Flagged co-located picks",
				zap.String("draftID", pick.DraftID),
				zap.Int("pickNumber", pick.PickNumber),
				zap.Int("events", recorded))
		}
	}()
}

// Wait blocks until every in-flight observation has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// WaitDraft blocks until the observations already started for the draft have
// finished or ctx is done. Observations started afterwards are not waited for.
func (r *Recorder) WaitDraft(ctx context.Context, draftID string) error {
	r.mu.Lock()
	work := r.inflight[draftID]
	r.mu.Unlock()

	if work == nil {
		return nil
	}

	select {
	case <-work.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) begin(draftID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.inflight[draftID]
	if work == nil {
		work = &draftWork{done: make(chan struct{})}
		r.inflight[draftID] = work
	}
	work.pending++
}

func (r *Recorder) end(draftID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.inflight[draftID]
	work.pending--
	if work.pending == 0 {
		close(work.done)
		delete(r.inflight, draftID)
	}
}

// observe returns how many events were stored for the pick.
func (r *Recorder) observe(ctx context.Context, pick *types.PickLocationRecord) (int, error) {
	if !pick.HasLocation() {
		r.logger.Debug("Pick has no location",
			zap.Error(&types.PartialDataError{
				Entity: "pick",
				ID:     fmt.Sprintf("%s#%d", pick.DraftID, pick.PickNumber),
				Reason: "no coordinates",
			}))
		return 0, nil
	}

	picks, err := r.picks.GetDraftPicks(ctx, pick.DraftID)
	if err != nil {
		return 0, fmt.Errorf("failed to load draft picks: %w", err)
	}

	window := time.Duration(r.config.ProximityWindowSeconds) * time.Second

	var (
		recorded int
		errs     []error
	)
	for _, other := range picks {
		if !r.pairable(pick, other, window) {
			continue
		}

		distance := utils.DistanceFeet(
			pick.Coordinates.Latitude, pick.Coordinates.Longitude,
			other.Coordinates.Latitude, other.Coordinates.Longitude,
		)
		if distance > r.config.ProximityThresholdFeet {
			continue
		}

		// The later pick completes the event.
		timestamp := pick.Timestamp
		if other.Timestamp.After(timestamp) {
			timestamp = other.Timestamp
		}

		err := r.RecordProximityEvent(ctx, pick.DraftID,
			pick.PickNumber, pick.UserID, other.PickNumber, other.UserID,
			distance, timestamp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recorded++
	}

	return recorded, errors.Join(errs...)
}

// pairable reports whether other is a located pick of another user inside the time window.
// Every other pick of the draft is considered, not only earlier ones, so a
// location that arrives late still pairs with picks that were stored before it.
func (r *Recorder) pairable(pick, other *types.PickLocationRecord, window time.Duration) bool {
	if other.PickNumber == pick.PickNumber || other.UserID == pick.UserID || !other.HasLocation() {
		return false
	}

	gap := pick.Timestamp.Sub(other.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	return gap <= window
}

// appendEvent inserts the event in pick order and reports whether the document changed.
func appendEvent(flags *types.DraftIntegrityFlags, key types.PairKey, event types.ProximityEvent) bool {
	pair := flags.Pair(key)
	if pair == nil {
		flags.FlaggedPairs = append(flags.FlaggedPairs, types.FlaggedPair{
			UserIDA: key.UserIDA,
			UserIDB: key.UserIDB,
			Events:  []types.ProximityEvent{event},
		})
		return true
	}

	if slices.ContainsFunc(pair.Events, event.SameTuple) {
		return false
	}

	i, _ := slices.BinarySearchFunc(pair.Events, event, compareEvents)
	pair.Events = slices.Insert(pair.Events, i, event)
	return true
}

func compareEvents(a, b types.ProximityEvent) int {
	if c := a.LaterPick() - b.LaterPick(); c != 0 {
		return c
	}
	if c := a.PickNumberA - b.PickNumberA; c != 0 {
		return c
	}
	return a.PickNumberB - b.PickNumberB
}

func validateEvent(draftID string, pickNumberA int, userA string, pickNumberB int, userB string, distanceFeet float64) error {
	if draftID == "" {
		return types.NewValidationError("draftId", "must not be empty")
	}
	if err := types.ValidateUserID(userA); err != nil {
		return err
	}
	if err := types.ValidateUserID(userB); err != nil {
		return err
	}

	switch {
	case userA == userB:
		return types.NewValidationError("userId", "both picks belong to %s", userA)
	case pickNumberA < 1 || pickNumberB < 1:
		return types.NewValidationError("pickNumber", "must be positive")
	case pickNumberA == pickNumberB:
		return types.NewValidationError("pickNumber", "both events reference pick %d", pickNumberA)
	case math.IsNaN(distanceFeet) || distanceFeet < 0:
		return types.NewValidationError("distanceFeet", "must be a non-negative number")
	}
	return nil
}
