// Package adp serves average draft position reference data to the analyzers.
package adp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// SnapshotKey is the Redis hash holding the shared snapshot, player id to ADP.
	SnapshotKey = "adp:snapshot"

	// maxFailureCooldown bounds the wait between refreshes after a failed one.
	maxFailureCooldown = 30 * time.Second
)

// ErrEmptySnapshot is returned when no source holds any ADP data.
var ErrEmptySnapshot = errors.New("no adp data available")

// Lookup resolves a player's average draft position.
type Lookup interface {
	GetADP(ctx context.Context, playerID string) (float64, bool)
}

// Provider owns an in-memory ADP snapshot with an explicit lifetime.
// A stale snapshot is refreshed on the next lookup, first from the shared
// Redis hash and then from the database. When a refresh fails the previous
// snapshot keeps serving.
type Provider struct {
	db     database.ADPModel
	cache  rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
	now    func() time.Time

	mu            sync.RWMutex
	snapshot      map[string]float64
	refreshedAt   time.Time
	invalidated   bool
	lastFailureAt time.Time
}

// NewProvider creates a provider. cache may be nil, in which case only the database is used.
func NewProvider(db database.ADPModel, cache rueidis.Client, ttl time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("adp_provider"),
		now:    time.Now,
	}
}

// GetADP returns the player's ADP and whether the snapshot has it.
// It never fails: without any snapshot every player is reported as not found.
func (p *Provider) GetADP(ctx context.Context, playerID string) (float64, bool) {
	if p.needsRefresh() {
		if err := p.Refresh(ctx); err != nil {
			p.logger.Warn("ADP refresh failed, serving previous snapshot",
				zap.Int("players", p.Size()),
				zap.Error(err))
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.snapshot[playerID]
	return value, ok
}

// Invalidate marks the snapshot stale so the next lookup refreshes it.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.invalidated = true
	p.lastFailureAt = time.Time{}
}

// Refresh reloads the snapshot now. Concurrent calls share one load.
func (p *Provider) Refresh(ctx context.Context) error {
	_, err, _ := p.group.Do("refresh", func() (any, error) {
		snapshot, source, err := p.load(ctx)
		if err != nil {
			p.mu.Lock()
			p.lastFailureAt = p.now()
			p.mu.Unlock()
			return nil, err
		}

		p.mu.Lock()
		p.snapshot = snapshot
		p.refreshedAt = p.now()
		p.invalidated = false
		p.lastFailureAt = time.Time{}
		p.mu.Unlock()

		p.logger.Debug("Refreshed ADP snapshot",
			zap.String("source", source),
			zap.Int("players", len(snapshot)))

		return nil, nil
	})
	return err
}

// Publish stores rows in the database and replaces the shared snapshot.
func (p *Provider) Publish(ctx context.Context, adps []*types.PlayerADP) error {
	if err := p.db.UpsertADP(ctx, adps); err != nil {
		return fmt.Errorf("failed to store adp rows: %w", err)
	}

	return p.Rebuild(ctx)
}

// Rebuild drops the shared snapshot and reloads it from the database.
func (p *Provider) Rebuild(ctx context.Context) error {
	if p.cache != nil {
		if err := p.cache.Do(ctx, p.cache.B().Del().Key(SnapshotKey).Build()).Error(); err != nil {
			p.logger.Warn("Failed to clear shared ADP snapshot", zap.Error(err))
		}
	}

	p.Invalidate()
	return p.Refresh(ctx)
}

// Size returns the number of players in the current snapshot.
func (p *Provider) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.snapshot)
}

// RefreshedAt returns when the current snapshot was loaded.
func (p *Provider) RefreshedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.refreshedAt
}

func (p *Provider) needsRefresh() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	if !p.lastFailureAt.IsZero() && now.Sub(p.lastFailureAt) < p.failureCooldown() {
		return false
	}

	return p.snapshot == nil || p.invalidated || now.Sub(p.refreshedAt) >= p.ttl
}

func (p *Provider) failureCooldown() time.Duration {
	return min(p.ttl, maxFailureCooldown)
}

// load reads the shared snapshot and falls back to the database.
func (p *Provider) load(ctx context.Context) (map[string]float64, string, error) {
	if p.cache != nil {
		snapshot, err := p.loadShared(ctx)
		switch {
		case err != nil:
			p.logger.Warn("Failed to read shared ADP snapshot, using database", zap.Error(err))
		case len(snapshot) > 0:
			return snapshot, "redis", nil
		}
	}

	rows, err := p.db.GetAllADP(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load adp from database: %w", err)
	}
	if len(rows) == 0 {
		return nil, "", ErrEmptySnapshot
	}

	snapshot := make(map[string]float64, len(rows))
	for _, row := range rows {
		snapshot[row.PlayerID] = row.ADP
	}

	if p.cache != nil {
		if err := p.storeShared(ctx, snapshot); err != nil {
			p.logger.Warn("Failed to share ADP snapshot", zap.Error(err))
		}
	}

	return snapshot, "database", nil
}

func (p *Provider) loadShared(ctx context.Context) (map[string]float64, error) {
	raw, err := p.cache.Do(ctx, p.cache.B().Hgetall().Key(SnapshotKey).Build()).AsStrMap()
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]float64, len(raw))
	for playerID, value := range raw {
		adp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid adp %q for player %s: %w", value, playerID, err)
		}
		snapshot[playerID] = adp
	}
	return snapshot, nil
}

// storeShared writes the snapshot under a temporary key and renames it into
// place so readers never observe a partial hash.
func (p *Provider) storeShared(ctx context.Context, snapshot map[string]float64) error {
	tmpKey := SnapshotKey + ":tmp:" + uuid.NewString()

	hset := p.cache.B().Hset().Key(tmpKey).FieldValue()
	for playerID, adp := range snapshot {
		hset = hset.FieldValue(playerID, strconv.FormatFloat(adp, 'f', -1, 64))
	}

	cmds := rueidis.Commands{
		hset.Build(),
		p.cache.B().Expire().Key(tmpKey).Seconds(max(int64(p.ttl.Seconds()), 1)).Build(),
		p.cache.B().Rename().Key(tmpKey).Newkey(SnapshotKey).Build(),
	}

	for _, resp := range p.cache.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}
