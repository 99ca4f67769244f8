// Package memory is an in-process implementation of the storage models.
// It mirrors the PostgreSQL semantics closely enough for unit tests: optimistic
// versioning of flags documents, upserts that keep review fields and
// cursor pages that use the same ordering.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
)

// Store keeps every collection in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	picks      map[string]map[int]*types.PickLocationRecord
	flags      map[string]*types.DraftIntegrityFlags
	riskScores map[string]*types.DraftRiskScores
	pairs      map[string]*types.UserPairAnalysis
	actions    map[uuid.UUID]*types.AdminAction
	attempts   []*types.EnforcementAttempt
	adp        map[string]*types.PlayerADP

	attemptSeq int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		picks:      make(map[string]map[int]*types.PickLocationRecord),
		flags:      make(map[string]*types.DraftIntegrityFlags),
		riskScores: make(map[string]*types.DraftRiskScores),
		pairs:      make(map[string]*types.UserPairAnalysis),
		actions:    make(map[uuid.UUID]*types.AdminAction),
		adp:        make(map[string]*types.PlayerADP),
	}
}

func (s *Store) Picks() database.PickModel           { return (*pickModel)(s) }
func (s *Store) Flags() database.FlagModel           { return (*flagModel)(s) }
func (s *Store) RiskScores() database.RiskScoreModel { return (*riskScoreModel)(s) }
func (s *Store) Pairs() database.PairModel           { return (*pairModel)(s) }
func (s *Store) Actions() database.ActionModel       { return (*actionModel)(s) }
func (s *Store) ADP() database.ADPModel              { return (*adpModel)(s) }

var _ database.Models = (*Store)(nil)

// Picks

type pickModel Store

func (m *pickModel) SavePick(ctx context.Context, pick *types.PickLocationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	draft, ok := m.picks[pick.DraftID]
	if !ok {
		draft = make(map[int]*types.PickLocationRecord)
		m.picks[pick.DraftID] = draft
	}
	if _, exists := draft[pick.PickNumber]; !exists {
		stored := *pick
		draft[pick.PickNumber] = &stored
	}
	return nil
}

func (m *pickModel) GetDraftPicks(ctx context.Context, draftID string) ([]*types.PickLocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	picks := make([]*types.PickLocationRecord, 0, len(m.picks[draftID]))
	for _, p := range m.picks[draftID] {
		c := *p
		picks = append(picks, &c)
	}
	slices.SortFunc(picks, func(a, b *types.PickLocationRecord) int {
		return cmp.Compare(a.PickNumber, b.PickNumber)
	})
	return picks, nil
}

// Flags

type flagModel Store

func (m *flagModel) GetFlags(ctx context.Context, draftID string) (*types.DraftIntegrityFlags, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flags, ok := m.flags[draftID]
	if !ok {
		return nil, types.ErrFlagsNotFound
	}
	return flags.Clone(), nil
}

// UpdateFlags reads a private copy, releases the lock while fn runs and only
// commits if nobody else committed in between.
func (m *flagModel) UpdateFlags(
	ctx context.Context, draftID string, fn func(*types.DraftIntegrityFlags) (bool, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	current, ok := m.flags[draftID]
	var work *types.DraftIntegrityFlags
	if ok {
		work = current.Clone()
	} else {
		work = &types.DraftIntegrityFlags{DraftID: draftID, FlaggedPairs: []types.FlaggedPair{}}
	}
	m.mu.RUnlock()

	if work.Finalized {
		return types.ErrFlagsFinalized
	}

	readVersion := work.Version
	changed, err := fn(work)
	if err != nil || !changed {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var currentVersion int64
	if current, ok := m.flags[draftID]; ok {
		if current.Finalized {
			return types.ErrFlagsFinalized
		}
		currentVersion = current.Version
	}
	if currentVersion != readVersion {
		return fmt.Errorf("%w: flags of draft %s changed since version %d", types.ErrConflict, draftID, readVersion)
	}

	work.DraftID = draftID
	work.Version = readVersion + 1
	work.UpdatedAt = time.Now()
	m.flags[draftID] = work.Clone()
	return nil
}

func (m *flagModel) FinalizeFlags(ctx context.Context, draftID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	flags, ok := m.flags[draftID]
	if !ok {
		flags = &types.DraftIntegrityFlags{DraftID: draftID, FlaggedPairs: []types.FlaggedPair{}}
		m.flags[draftID] = flags
	}
	if !flags.Finalized {
		flags.Finalized = true
		flags.Version++
		flags.UpdatedAt = time.Now()
	}
	return nil
}

// Risk scores

type riskScoreModel Store

func cloneRiskScores(d *types.DraftRiskScores, withPairs bool) *types.DraftRiskScores {
	c := *d
	c.Warnings = slices.Clone(d.Warnings)
	c.PairScores = nil
	if withPairs {
		c.PairScores = make([]*types.PairScore, len(d.PairScores))
		for i, p := range d.PairScores {
			pc := *p
			c.PairScores[i] = &pc
		}
	}
	return &c
}

func (m *riskScoreModel) SaveRiskScores(ctx context.Context, scores *types.DraftRiskScores) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneRiskScores(scores, true)
	for _, p := range stored.PairScores {
		p.DraftID = stored.DraftID
	}
	if existing, ok := m.riskScores[scores.DraftID]; ok {
		stored.Status = existing.Status
		stored.ReviewedBy = existing.ReviewedBy
		stored.ReviewedAt = existing.ReviewedAt
	}
	m.riskScores[scores.DraftID] = stored
	return nil
}

func (m *riskScoreModel) GetRiskScores(ctx context.Context, draftID string) (*types.DraftRiskScores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scores, ok := m.riskScores[draftID]
	if !ok {
		return nil, types.ErrDraftNotFound
	}
	c := cloneRiskScores(scores, true)
	types.SortPairScores(c.PairScores)
	return c, nil
}

func compareDraftPosition(a, b types.DraftCursor) int {
	if c := cmp.Compare(a.MaxRiskScore, b.MaxRiskScore); c != 0 {
		return c
	}
	if c := a.AnalyzedAt.Compare(b.AnalyzedAt); c != 0 {
		return c
	}
	return strings.Compare(a.DraftID, b.DraftID)
}

func draftPosition(d *types.DraftRiskScores) types.DraftCursor {
	return types.DraftCursor{MaxRiskScore: d.MaxRiskScore, AnalyzedAt: d.AnalyzedAt, DraftID: d.DraftID}
}

func (m *riskScoreModel) GetDraftsForReview(
	ctx context.Context, filter types.DraftReviewFilter, cursor *types.DraftCursor, limit int,
) ([]*types.DraftRiskScores, *types.DraftCursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var drafts []*types.DraftRiskScores
	for _, d := range m.riskScores {
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.MinScore > 0 && d.MaxRiskScore < filter.MinScore {
			continue
		}
		if cursor != nil && compareDraftPosition(draftPosition(d), *cursor) > 0 {
			continue
		}
		drafts = append(drafts, cloneRiskScores(d, false))
	}

	slices.SortFunc(drafts, func(a, b *types.DraftRiskScores) int {
		return compareDraftPosition(draftPosition(b), draftPosition(a))
	})

	var next *types.DraftCursor
	if len(drafts) > limit {
		pos := draftPosition(drafts[limit])
		next = &pos
		drafts = drafts[:limit]
	}
	return drafts, next, nil
}

func (m *riskScoreModel) GetPairHistory(ctx context.Context, pairID string) ([]*types.PairScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var history []*types.PairScore
	for _, d := range m.riskScores {
		for _, p := range d.PairScores {
			if p.PairID == pairID {
				c := *p
				history = append(history, &c)
			}
		}
	}
	slices.SortFunc(history, func(a, b *types.PairScore) int {
		if c := a.DraftedAt.Compare(b.DraftedAt); c != 0 {
			return c
		}
		return strings.Compare(a.DraftID, b.DraftID)
	})
	return history, nil
}

func (m *riskScoreModel) GetFlaggedPairs(ctx context.Context, filter types.FlaggedPairFilter) ([]types.PairKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]types.PairKey)
	for _, d := range m.riskScores {
		for _, p := range d.PairScores {
			if p.CombinedRiskScore >= filter.MinCombinedScore || (filter.IncludeProximity && p.EventCount > 0) {
				seen[p.PairID] = p.Key()
			}
		}
	}

	keys := make([]types.PairKey, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b types.PairKey) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return keys, nil
}

func (m *riskScoreModel) UpdateReviewStatus(
	ctx context.Context, draftID string, status enum.ReviewStatus, reviewerID string, at time.Time,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	scores, ok := m.riskScores[draftID]
	if !ok {
		return types.ErrDraftNotFound
	}
	scores.Status = status
	scores.ReviewedBy = reviewerID
	scores.ReviewedAt = at
	return nil
}

// Pairs

type pairModel Store

func (m *pairModel) UpsertPairAnalysis(ctx context.Context, analysis *types.UserPairAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *analysis
	if existing, ok := m.pairs[analysis.PairID]; ok {
		stored.ReviewStatus = existing.ReviewStatus
		stored.ReviewedBy = existing.ReviewedBy
		stored.ReviewedAt = existing.ReviewedAt
	}
	m.pairs[analysis.PairID] = &stored
	return nil
}

func (m *pairModel) GetPairAnalysis(ctx context.Context, pairID string) (*types.UserPairAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	analysis, ok := m.pairs[pairID]
	if !ok {
		return nil, types.ErrPairNotFound
	}
	c := *analysis
	return &c, nil
}

func comparePairPosition(a, b types.PairCursor) int {
	if c := cmp.Compare(a.RiskLevel, b.RiskLevel); c != 0 {
		return c
	}
	if c := a.LastDraftTogether.Compare(b.LastDraftTogether); c != 0 {
		return c
	}
	return strings.Compare(a.PairID, b.PairID)
}

func pairPosition(p *types.UserPairAnalysis) types.PairCursor {
	return types.PairCursor{RiskLevel: p.OverallRiskLevel, LastDraftTogether: p.LastDraftTogether, PairID: p.PairID}
}

func (m *pairModel) GetPairsForReview(
	ctx context.Context, filter types.PairReviewFilter, cursor *types.PairCursor, limit int,
) ([]*types.UserPairAnalysis, *types.PairCursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var pairs []*types.UserPairAnalysis
	for _, p := range m.pairs {
		if p.OverallRiskLevel < filter.MinRiskLevel {
			continue
		}
		if filter.Status != nil && p.ReviewStatus != *filter.Status {
			continue
		}
		if filter.UserID != "" && !p.Key().Contains(filter.UserID) {
			continue
		}
		if cursor != nil && comparePairPosition(pairPosition(p), *cursor) > 0 {
			continue
		}
		c := *p
		pairs = append(pairs, &c)
	}

	slices.SortFunc(pairs, func(a, b *types.UserPairAnalysis) int {
		return comparePairPosition(pairPosition(b), pairPosition(a))
	})

	var next *types.PairCursor
	if len(pairs) > limit {
		pos := pairPosition(pairs[limit])
		next = &pos
		pairs = pairs[:limit]
	}
	return pairs, next, nil
}

func (m *pairModel) UpdateReviewStatus(
	ctx context.Context, pairID string, status enum.ReviewStatus, reviewerID string, at time.Time,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.pairs[pairID]
	if !ok {
		return types.ErrPairNotFound
	}
	analysis.ReviewStatus = status
	analysis.ReviewedBy = reviewerID
	analysis.ReviewedAt = at
	return nil
}

// Actions

type actionModel Store

func cloneAction(a *types.AdminAction) *types.AdminAction {
	c := *a
	if a.EvidenceSnapshot != nil {
		e := *a.EvidenceSnapshot
		e.DraftIDs = slices.Clone(e.DraftIDs)
		e.UserIDs = slices.Clone(e.UserIDs)
		e.Pairs = slices.Clone(e.Pairs)
		c.EvidenceSnapshot = &e
	}
	return &c
}

func (m *actionModel) InsertAction(ctx context.Context, action *types.AdminAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.actions[action.ID]; exists {
		return fmt.Errorf("admin action %s already exists", action.ID)
	}
	m.actions[action.ID] = cloneAction(action)
	return nil
}

func (m *actionModel) GetAction(ctx context.Context, id uuid.UUID) (*types.AdminAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	action, ok := m.actions[id]
	if !ok {
		return nil, types.ErrActionNotFound
	}
	return cloneAction(action), nil
}

func compareActionPosition(a, b types.ActionCursor) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

func (m *actionModel) GetActions(
	ctx context.Context, filter types.ActionFilter, cursor *types.ActionCursor, limit int,
) ([]*types.AdminAction, *types.ActionCursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	position := func(a *types.AdminAction) types.ActionCursor {
		return types.ActionCursor{CreatedAt: a.CreatedAt, ID: a.ID}
	}

	var actions []*types.AdminAction
	for _, a := range m.actions {
		if filter.TargetType != nil && a.TargetType != *filter.TargetType {
			continue
		}
		if filter.TargetID != "" && a.TargetID != filter.TargetID {
			continue
		}
		if filter.ActingAdminID != "" && a.ActingAdminID != filter.ActingAdminID {
			continue
		}
		if cursor != nil && compareActionPosition(position(a), *cursor) > 0 {
			continue
		}
		actions = append(actions, cloneAction(a))
	}

	slices.SortFunc(actions, func(a, b *types.AdminAction) int {
		return compareActionPosition(position(b), position(a))
	})

	var next *types.ActionCursor
	if len(actions) > limit {
		pos := position(actions[limit])
		next = &pos
		actions = actions[:limit]
	}
	return actions, next, nil
}

func (m *actionModel) InsertEnforcementAttempt(ctx context.Context, attempt *types.EnforcementAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.attemptSeq++
	attempt.ID = m.attemptSeq
	stored := *attempt
	m.attempts = append(m.attempts, &stored)
	return nil
}

func (m *actionModel) GetEnforcementAttempts(ctx context.Context, actionID uuid.UUID) ([]*types.EnforcementAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var attempts []*types.EnforcementAttempt
	for _, a := range m.attempts {
		if a.ActionID == actionID {
			c := *a
			attempts = append(attempts, &c)
		}
	}
	return attempts, nil
}

// ADP

type adpModel Store

func (m *adpModel) UpsertADP(ctx context.Context, adps []*types.PlayerADP) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range adps {
		c := *a
		m.adp[a.PlayerID] = &c
	}
	return nil
}

func (m *adpModel) GetAllADP(ctx context.Context) ([]*types.PlayerADP, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	adps := make([]*types.PlayerADP, 0, len(m.adp))
	for _, a := range m.adp {
		c := *a
		adps = append(adps, &c)
	}
	slices.SortFunc(adps, func(a, b *types.PlayerADP) int {
		return strings.Compare(a.PlayerID, b.PlayerID)
	})
	return adps, nil
}
