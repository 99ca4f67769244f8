package proximity_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/memory"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/proximity"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testDetection() *config.Detection {
	cfg := config.Default().Common.Detection
	cfg.ProximityThresholdFeet = 50
	cfg.ProximityWindowSeconds = 900
	cfg.RecordMaxAttempts = 3
	cfg.RecordBackoff = 1
	cfg.RecordTimeout = 2000
	return &cfg
}

// conflictingModels makes every flags write lose its race.
type conflictingModels struct {
	database.Models
	calls atomic.Int32
}

func (c *conflictingModels) Flags() database.FlagModel {
	return &conflictingFlags{FlagModel: c.Models.Flags(), calls: &c.calls}
}

type conflictingFlags struct {
	database.FlagModel
	calls *atomic.Int32
}

func (c *conflictingFlags) UpdateFlags(
	_ context.Context, _ string, _ func(*types.DraftIntegrityFlags) (bool, error),
) error {
	c.calls.Add(1)
	return types.ErrConflict
}

func TestRecordProximityEventFlagsPair(t *testing.T) {
	t.Parallel()

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))
	ts := time.Date(2026, 9, 6, 18, 0, 0, 0, time.UTC)

	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 5, "userB", 6, "userA", 10, ts))

	flags, err := store.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)
	require.Len(t, flags.FlaggedPairs, 1)

	pair := flags.FlaggedPairs[0]
	assert.Equal(t, "userA", pair.UserIDA)
	assert.Equal(t, "userB", pair.UserIDB)
	require.Len(t, pair.Events, 1)

	// Pick numbers follow the canonical member order.
	assert.Equal(t, 6, pair.Events[0].PickNumberA)
	assert.Equal(t, 5, pair.Events[0].PickNumberB)
	assert.InDelta(t, 10, pair.Events[0].DistanceFeet, 1e-9)
}

func TestRecordProximityEventAboveThreshold(t *testing.T) {
	t.Parallel()

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))

	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 5, "userA", 6, "userB", 200, time.Now()))

	_, err := store.Flags().GetFlags(t.Context(), "D1")
	require.ErrorIs(t, err, types.ErrFlagsNotFound)
}

func TestRecordProximityEventCanonicalOrder(t *testing.T) {
	t.Parallel()

	forward := memory.New()
	backward := memory.New()
	logger := zaptest.NewLogger(t)
	ts := time.Now()

	require.NoError(t, proximity.NewRecorder(forward, testDetection(), logger).
		RecordProximityEvent(t.Context(), "D1", 3, "alpha", 4, "beta", 12, ts))
	require.NoError(t, proximity.NewRecorder(backward, testDetection(), logger).
		RecordProximityEvent(t.Context(), "D1", 4, "beta", 3, "alpha", 12, ts))

	a, err := forward.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)
	b, err := backward.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)

	assert.Equal(t, a.FlaggedPairs, b.FlaggedPairs)
}

func TestRecordProximityEventDeduplicates(t *testing.T) {
	t.Parallel()

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))
	ts := time.Now()

	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 5, "userA", 6, "userB", 10, ts))
	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 5, "userA", 6, "userB", 10, ts))
	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 6, "userB", 5, "userA", 11, ts))

	flags, err := store.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)
	require.Len(t, flags.FlaggedPairs, 1)
	assert.Len(t, flags.FlaggedPairs[0].Events, 1)
	assert.Equal(t, int64(1), flags.Version)
}

func TestRecordProximityEventKeepsPickOrder(t *testing.T) {
	t.Parallel()

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))
	ts := time.Now()

	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 30, "userA", 31, "userB", 5, ts))
	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 1, "userA", 2, "userB", 5, ts))
	require.NoError(t, recorder.RecordProximityEvent(t.Context(), "D1", 15, "userA", 16, "userB", 5, ts))

	flags, err := store.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)

	events := flags.FlaggedPairs[0].Events
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].LaterPick())
	assert.Equal(t, 16, events[1].LaterPick())
	assert.Equal(t, 31, events[2].LaterPick())
}

func TestRecordProximityEventValidation(t *testing.T) {
	t.Parallel()

	recorder := proximity.NewRecorder(memory.New(), testDetection(), zaptest.NewLogger(t))

	tests := []struct {
		name     string
		draftID  string
		pickA    int
		userA    string
		pickB    int
		userB    string
		distance float64
	}{
		{name: "empty draft", draftID: "", pickA: 1, userA: "a", pickB: 2, userB: "b"},
		{name: "same user", draftID: "D1", pickA: 1, userA: "a", pickB: 2, userB: "a"},
		{name: "same pick", draftID: "D1", pickA: 2, userA: "a", pickB: 2, userB: "b"},
		{name: "zero pick", draftID: "D1", pickA: 0, userA: "a", pickB: 2, userB: "b"},
		{name: "negative distance", draftID: "D1", pickA: 1, userA: "a", pickB: 2, userB: "b", distance: -1},
		{name: "separator in first user", draftID: "D1", pickA: 1, userA: "a:b", pickB: 2, userB: "c"},
		{name: "separator in second user", draftID: "D1", pickA: 1, userA: "a", pickB: 2, userB: "b:c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := recorder.RecordProximityEvent(t.Context(), tt.draftID,
				tt.pickA, tt.userA, tt.pickB, tt.userB, tt.distance, time.Now())

			var validationErr *types.ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestRecordProximityEventDropsAfterRetries(t *testing.T) {
	t.Parallel()

	models := &conflictingModels{Models: memory.New()}
	recorder := proximity.NewRecorder(models, testDetection(), zaptest.NewLogger(t))

	err := recorder.RecordProximityEvent(t.Context(), "D1", 5, "userA", 6, "userB", 10, time.Now())
	require.ErrorIs(t, err, proximity.ErrEventDropped)
	require.ErrorIs(t, err, types.ErrConflict)
	assert.Equal(t, int32(3), models.calls.Load())
}

func TestRecordProximityEventFinalizedDraft(t *testing.T) {
	t.Parallel()

	store := memory.New()
	require.NoError(t, store.Flags().FinalizeFlags(t.Context(), "D1"))

	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))
	err := recorder.RecordProximityEvent(t.Context(), "D1", 5, "userA", 6, "userB", 10, time.Now())
	require.ErrorIs(t, err, proximity.ErrEventDropped)
	require.ErrorIs(t, err, types.ErrFlagsFinalized)
}

func TestRecordProximityEventConcurrent(t *testing.T) {
	t.Parallel()

	const writers = 40

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))
	ts := time.Now()

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		drops     atomic.Int32
		others    atomic.Int32
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Spread writers across a few pairs so entries are created concurrently too.
			userB := fmt.Sprintf("user%d", i%4+1)
			err := recorder.RecordProximityEvent(context.Background(), "D1", 2*i+1, "user0", 2*i+2, userB, 5, ts)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, proximity.ErrEventDropped):
				drops.Add(1)
			default:
				others.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(writers), successes.Load()+drops.Load())
	assert.Zero(t, others.Load())

	flags, err := store.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)

	stored := 0
	for _, pair := range flags.FlaggedPairs {
		stored += len(pair.Events)
	}
	assert.Equal(t, int(successes.Load()), stored, "every successful write is visible")
}

func TestObservePick(t *testing.T) {
	t.Parallel()

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))
	ctx := t.Context()
	start := time.Date(2026, 9, 6, 18, 0, 0, 0, time.UTC)

	picks := []*types.PickLocationRecord{
		// 10 feet north of pick 6
		{DraftID: "D1", PickNumber: 5, UserID: "userB", PlayerID: "p5",
			Coordinates: &types.Coordinates{Latitude: 40.0 + 10.0/364_812, Longitude: -75.0}, Timestamp: start},
		{DraftID: "D1", PickNumber: 4, UserID: "userC", PlayerID: "p4",
			Coordinates: &types.Coordinates{Latitude: 41.0, Longitude: -75.0}, Timestamp: start},
		{DraftID: "D1", PickNumber: 3, UserID: "userD", PlayerID: "p3", Timestamp: start},
		// Close but outside the time window
		{DraftID: "D1", PickNumber: 1, UserID: "userE", PlayerID: "p1",
			Coordinates: &types.Coordinates{Latitude: 40.0, Longitude: -75.0}, Timestamp: start.Add(-time.Hour)},
	}
	for _, pick := range picks {
		require.NoError(t, store.Picks().SavePick(ctx, pick))
	}

	current := &types.PickLocationRecord{
		DraftID: "D1", PickNumber: 6, UserID: "userA", PlayerID: "p6",
		Coordinates: &types.Coordinates{Latitude: 40.0, Longitude: -75.0}, Timestamp: start.Add(30 * time.Second),
	}
	require.NoError(t, store.Picks().SavePick(ctx, current))

	recorder.ObservePick(ctx, current)
	recorder.Wait()

	flags, err := store.Flags().GetFlags(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, flags.FlaggedPairs, 1)

	pair := flags.FlaggedPairs[0]
	assert.Equal(t, types.PairKey{UserIDA: "userA", UserIDB: "userB"}, pair.Key())
	require.Len(t, pair.Events, 1)
	assert.Equal(t, 6, pair.Events[0].PickNumberA)
	assert.Equal(t, 5, pair.Events[0].PickNumberB)
	assert.InDelta(t, 10, pair.Events[0].DistanceFeet, 0.1)
}

func TestObservePickWithoutLocation(t *testing.T) {
	t.Parallel()

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))

	recorder.ObservePick(t.Context(), &types.PickLocationRecord{DraftID: "D1", PickNumber: 1, UserID: "userA"})
	recorder.ObservePick(t.Context(), nil)
	recorder.Wait()

	_, err := store.Flags().GetFlags(t.Context(), "D1")
	require.ErrorIs(t, err, types.ErrFlagsNotFound)
}

func TestObservePickSurvivesCancelledCaller(t *testing.T) {
	t.Parallel()

	store := memory.New()
	recorder := proximity.NewRecorder(store, testDetection(), zaptest.NewLogger(t))
	now := time.Now()

	first := &types.PickLocationRecord{DraftID: "D1", PickNumber: 1, UserID: "userA",
		Coordinates: &types.Coordinates{Latitude: 10, Longitude: 10}, Timestamp: now}
	second := &types.PickLocationRecord{DraftID: "D1", PickNumber: 2, UserID: "userB",
		Coordinates: &types.Coordinates{Latitude: 10, Longitude: 10}, Timestamp: now}
	require.NoError(t, store.Picks().SavePick(t.Context(), first))
	require.NoError(t, store.Picks().SavePick(t.Context(), second))

	ctx, cancel := context.WithCancel(t.Context())
	recorder.ObservePick(ctx, second)
	cancel()
	recorder.Wait()

	flags, err := store.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)
	assert.Len(t, flags.FlaggedPairs, 1)
}

// gatedModels holds every draft pick read until the gate opens.
type gatedModels struct {
	database.Models
	gate chan struct{}
}

func (g *gatedModels) Picks() database.PickModel {
	return &gatedPicks{PickModel: g.Models.Picks(), gate: g.gate}
}

type gatedPicks struct {
	database.PickModel
	gate chan struct{}
}

func (g *gatedPicks) GetDraftPicks(ctx context.Context, draftID string) ([]*types.PickLocationRecord, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.PickModel.GetDraftPicks(ctx, draftID)
}

func TestWaitDraftDrainsObservationsBeforeFinalize(t *testing.T) {
	t.Parallel()

	store := memory.New()
	models := &gatedModels{Models: store, gate: make(chan struct{})}
	recorder := proximity.NewRecorder(models, testDetection(), zaptest.NewLogger(t))
	now := time.Now()

	first := &types.PickLocationRecord{DraftID: "D1", PickNumber: 1, UserID: "userA",
		Coordinates: &types.Coordinates{Latitude: 10, Longitude: 10}, Timestamp: now}
	last := &types.PickLocationRecord{DraftID: "D1", PickNumber: 2, UserID: "userB",
		Coordinates: &types.Coordinates{Latitude: 10, Longitude: 10}, Timestamp: now}
	require.NoError(t, store.Picks().SavePick(t.Context(), first))
	require.NoError(t, store.Picks().SavePick(t.Context(), last))

	recorder.ObservePick(t.Context(), last)

	// Other drafts are not held up.
	require.NoError(t, recorder.WaitDraft(t.Context(), "D2"))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, recorder.WaitDraft(ctx, "D1"), context.DeadlineExceeded)

	close(models.gate)
	require.NoError(t, recorder.WaitDraft(t.Context(), "D1"))
	require.NoError(t, store.Flags().FinalizeFlags(t.Context(), "D1"))

	flags, err := store.Flags().GetFlags(t.Context(), "D1")
	require.NoError(t, err)
	assert.True(t, flags.Finalized)
	require.Len(t, flags.FlaggedPairs, 1)
	assert.Len(t, flags.FlaggedPairs[0].Events, 1)

	// Nothing left in flight.
	require.NoError(t, recorder.WaitDraft(t.Context(), "D1"))
}
