package adp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/memory"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errDatabaseDown = errors.New("database down")

// countingADP wraps an ADP model to count loads and inject failures.
type countingADP struct {
	database.ADPModel
	loads atomic.Int32
	fail  atomic.Bool
	delay time.Duration
}

func (c *countingADP) GetAllADP(ctx context.Context) ([]*types.PlayerADP, error) {
	c.loads.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.fail.Load() {
		return nil, errDatabaseDown
	}
	return c.ADPModel.GetAllADP(ctx)
}

func seedADP(t *testing.T, model database.ADPModel, values map[string]float64) {
	t.Helper()

	rows := make([]*types.PlayerADP, 0, len(values))
	for id, adp := range values {
		rows = append(rows, &types.PlayerADP{PlayerID: id, ADP: adp})
	}
	require.NoError(t, model.UpsertADP(t.Context(), rows))
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return mr, client
}

func TestProviderLoadsFromDatabase(t *testing.T) {
	t.Parallel()

	db := &countingADP{ADPModel: memory.New().ADP()}
	seedADP(t, db, map[string]float64{"p1": 12.5, "p2": 40})

	provider := NewProvider(db, nil, time.Hour, zaptest.NewLogger(t))

	value, ok := provider.GetADP(t.Context(), "p1")
	require.True(t, ok)
	assert.InDelta(t, 12.5, value, 1e-9)

	_, ok = provider.GetADP(t.Context(), "missing")
	assert.False(t, ok)

	assert.Equal(t, int32(1), db.loads.Load(), "fresh snapshot is not reloaded")
	assert.Equal(t, 2, provider.Size())
}

func TestProviderTTLExpiry(t *testing.T) {
	t.Parallel()

	db := &countingADP{ADPModel: memory.New().ADP()}
	seedADP(t, db, map[string]float64{"p1": 10})

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	provider := NewProvider(db, nil, time.Hour, zaptest.NewLogger(t))
	provider.now = func() time.Time { return now }

	_, ok := provider.GetADP(t.Context(), "p1")
	require.True(t, ok)

	seedADP(t, db, map[string]float64{"p1": 20})

	now = now.Add(30 * time.Minute)
	value, _ := provider.GetADP(t.Context(), "p1")
	assert.InDelta(t, 10, value, 1e-9)

	now = now.Add(31 * time.Minute)
	value, _ = provider.GetADP(t.Context(), "p1")
	assert.InDelta(t, 20, value, 1e-9)
	assert.Equal(t, int32(2), db.loads.Load())
}

func TestProviderInvalidate(t *testing.T) {
	t.Parallel()

	db := &countingADP{ADPModel: memory.New().ADP()}
	seedADP(t, db, map[string]float64{"p1": 10})

	provider := NewProvider(db, nil, time.Hour, zaptest.NewLogger(t))
	_, _ = provider.GetADP(t.Context(), "p1")

	seedADP(t, db, map[string]float64{"p1": 15})
	provider.Invalidate()

	value, ok := provider.GetADP(t.Context(), "p1")
	require.True(t, ok)
	assert.InDelta(t, 15, value, 1e-9)
}

func TestProviderServesStaleSnapshotOnFailure(t *testing.T) {
	t.Parallel()

	db := &countingADP{ADPModel: memory.New().ADP()}
	seedADP(t, db, map[string]float64{"p1": 33})

	provider := NewProvider(db, nil, time.Minute, zaptest.NewLogger(t))
	require.NoError(t, provider.Refresh(t.Context()))

	db.fail.Store(true)
	provider.Invalidate()

	value, ok := provider.GetADP(t.Context(), "p1")
	require.True(t, ok)
	assert.InDelta(t, 33, value, 1e-9)

	require.ErrorIs(t, provider.Refresh(t.Context()), errDatabaseDown)
}

func TestProviderWithoutSnapshot(t *testing.T) {
	t.Parallel()

	db := &countingADP{ADPModel: memory.New().ADP()}
	db.fail.Store(true)

	provider := NewProvider(db, nil, time.Minute, zaptest.NewLogger(t))

	_, ok := provider.GetADP(t.Context(), "p1")
	assert.False(t, ok)

	// The failure cooldown keeps further lookups from hammering the database.
	_, ok = provider.GetADP(t.Context(), "p1")
	assert.False(t, ok)
	assert.Equal(t, int32(1), db.loads.Load())

	db.fail.Store(false)
	seedADP(t, db, map[string]float64{"p1": 5})
	provider.Invalidate()

	_, ok = provider.GetADP(t.Context(), "p1")
	assert.True(t, ok)
}

func TestProviderCollapsesConcurrentRefreshes(t *testing.T) {
	t.Parallel()

	db := &countingADP{ADPModel: memory.New().ADP(), delay: 50 * time.Millisecond}
	seedADP(t, db, map[string]float64{"p1": 1})

	provider := NewProvider(db, nil, time.Hour, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := provider.GetADP(context.Background(), "p1")
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), db.loads.Load())
}

func TestProviderSharedSnapshot(t *testing.T) {
	t.Parallel()

	mr, client := newRedisClient(t)

	db := &countingADP{ADPModel: memory.New().ADP()}
	seedADP(t, db, map[string]float64{"p1": 7.25, "p2": 99})

	first := NewProvider(db, client, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, first.Refresh(t.Context()))
	assert.Equal(t, int32(1), db.loads.Load())

	assert.Equal(t, "7.25", mr.HGet(SnapshotKey, "p1"))
	assert.Greater(t, mr.TTL(SnapshotKey), time.Duration(0))

	// A second process reads the shared hash instead of the database.
	second := NewProvider(db, client, time.Hour, zaptest.NewLogger(t))
	value, ok := second.GetADP(t.Context(), "p2")
	require.True(t, ok)
	assert.InDelta(t, 99, value, 1e-9)
	assert.Equal(t, int32(1), db.loads.Load())
}

func TestProviderFallsBackWhenRedisFails(t *testing.T) {
	t.Parallel()

	mr, client := newRedisClient(t)
	mr.SetError("LOADING")

	db := &countingADP{ADPModel: memory.New().ADP()}
	seedADP(t, db, map[string]float64{"p1": 3})

	provider := NewProvider(db, client, time.Hour, zaptest.NewLogger(t))

	value, ok := provider.GetADP(t.Context(), "p1")
	require.True(t, ok)
	assert.InDelta(t, 3, value, 1e-9)
}

func TestProviderPublish(t *testing.T) {
	t.Parallel()

	mr, client := newRedisClient(t)

	db := &countingADP{ADPModel: memory.New().ADP()}
	seedADP(t, db, map[string]float64{"p1": 10})

	provider := NewProvider(db, client, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, provider.Refresh(t.Context()))

	require.NoError(t, provider.Publish(t.Context(), []*types.PlayerADP{{PlayerID: "p1", ADP: 11}}))

	value, ok := provider.GetADP(t.Context(), "p1")
	require.True(t, ok)
	assert.InDelta(t, 11, value, 1e-9)
	assert.Equal(t, "11", mr.HGet(SnapshotKey, "p1"))
}
