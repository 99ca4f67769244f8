// Package queue holds completed drafts waiting for post-draft analysis in
// Redis sorted sets ordered by completion time.
package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// PendingKey is the sorted set of drafts waiting for analysis.
	PendingKey = "postdraft:pending"
	// AttemptsKey is the hash of failed attempts per draft.
	AttemptsKey = "postdraft:attempts"
	// DeadLetterKey is the sorted set of drafts that exhausted their attempts.
	DeadLetterKey = "postdraft:dead"
)

// Item is one popped draft.
type Item struct {
	DraftID     string    `json:"draftId"`
	CompletedAt time.Time `json:"completedAt"`
}

// Manager orchestrates the post-draft queue. Every operation is a single
// Redis command or a MULTI block, so several workers can share one queue.
type Manager struct {
	client      rueidis.Client
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

// NewManager creates a queue manager. A draft is dead-lettered once it has
// failed maxAttempts times.
func NewManager(client rueidis.Client, maxAttempts int, logger *zap.Logger) *Manager {
	return &Manager{
		client:      client,
		maxAttempts: max(maxAttempts, 1),
		logger:      logger.Named("queue"),
		now:         time.Now,
	}
}

// Enqueue adds a completed draft. Enqueuing a draft that is already waiting keeps its position.
func (m *Manager) Enqueue(ctx context.Context, draftID string, completedAt time.Time) error {
	if draftID == "" {
		return ErrEmptyDraftID
	}

	err := m.client.Do(ctx, m.client.B().Zadd().Key(PendingKey).Nx().
		ScoreMember().ScoreMember(score(completedAt), draftID).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to enqueue draft %s: %w", draftID, err)
	}

	m.logger.Debug("Enqueued draft", zap.String("draftID", draftID))
	return nil
}

// Dequeue atomically pops up to n drafts, oldest completion first.
func (m *Manager) Dequeue(ctx context.Context, n int) ([]Item, error) {
	if n < 1 {
		return nil, ErrInvalidBatchSize
	}

	scores, err := m.client.Do(ctx, m.client.B().Zpopmin().Key(PendingKey).Count(int64(n)).Build()).AsZScores()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue drafts: %w", err)
	}

	items := make([]Item, 0, len(scores))
	for _, s := range scores {
		items = append(items, Item{DraftID: s.Member, CompletedAt: fromScore(s.Score)})
	}
	return items, nil
}

// Requeue records a failed attempt and puts the draft back at the end of the
// queue. It returns true when the draft ran out of attempts and was moved to
// the dead letter set instead.
func (m *Manager) Requeue(ctx context.Context, draftID string) (bool, error) {
	if draftID == "" {
		return false, ErrEmptyDraftID
	}

	attempts, err := m.client.Do(ctx, m.client.B().Hincrby().Key(AttemptsKey).Field(draftID).Increment(1).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to count attempts of draft %s: %w", draftID, err)
	}

	if attempts >= int64(m.maxAttempts) {
		if err := m.bury(ctx, draftID); err != nil {
			return false, err
		}

		m.logger.Warn("Draft exhausted its attempts",
			zap.String("draftID", draftID),
			zap.Int64("attempts", attempts))
		return true, nil
	}

	err = m.client.Do(ctx, m.client.B().Zadd().Key(PendingKey).ScoreMember().ScoreMember(score(m.now()), draftID).Build()).Error()
	if err != nil {
		return false, fmt.Errorf("failed to requeue draft %s: %w", draftID, err)
	}

	m.logger.Debug("Requeued draft",
		zap.String("draftID", draftID),
		zap.Int64("attempts", attempts))
	return false, nil
}

// Bury moves a draft that cannot succeed straight to the dead letter set.
func (m *Manager) Bury(ctx context.Context, draftID string) error {
	if draftID == "" {
		return ErrEmptyDraftID
	}
	if err := m.bury(ctx, draftID); err != nil {
		return err
	}

	m.logger.Warn("Buried draft", zap.String("draftID", draftID))
	return nil
}

func (m *Manager) bury(ctx context.Context, draftID string) error {
	cmds := rueidis.Commands{
		m.client.B().Multi().Build(),
		m.client.B().Zrem().Key(PendingKey).Member(draftID).Build(),
		m.client.B().Zadd().Key(DeadLetterKey).ScoreMember().ScoreMember(score(m.now()), draftID).Build(),
		m.client.B().Hdel().Key(AttemptsKey).Field(draftID).Build(),
		m.client.B().Exec().Build(),
	}
	if err := firstError(m.client.DoMulti(ctx, cmds...)); err != nil {
		return fmt.Errorf("failed to dead-letter draft %s: %w", draftID, err)
	}
	return nil
}

// Complete forgets the failed attempts of a draft.
func (m *Manager) Complete(ctx context.Context, draftID string) error {
	return m.client.Do(ctx, m.client.B().Hdel().Key(AttemptsKey).Field(draftID).Build()).Error()
}

// Attempts returns the failed attempts recorded for a draft.
func (m *Manager) Attempts(ctx context.Context, draftID string) (int, error) {
	n, err := m.client.Do(ctx, m.client.B().Hget().Key(AttemptsKey).Field(draftID).Build()).AsInt64()
	if rueidis.IsRedisNil(err) {
		return 0, nil
	}
	return int(n), err
}

// Len returns the number of waiting drafts.
func (m *Manager) Len(ctx context.Context) (int, error) {
	n, err := m.client.Do(ctx, m.client.B().Zcard().Key(PendingKey).Build()).AsInt64()
	return int(n), err
}

// DeadLetters returns up to limit dead-lettered draft ids, oldest first.
func (m *Manager) DeadLetters(ctx context.Context, limit int) ([]string, error) {
	if limit < 1 {
		return nil, ErrInvalidBatchSize
	}
	return m.client.Do(ctx,
		m.client.B().Zrange().Key(DeadLetterKey).Min("0").Max(strconv.Itoa(limit-1)).Build(),
	).AsStrSlice()
}

func firstError(results []rueidis.RedisResult) error {
	for _, r := range results {
		if err := r.Error(); err != nil {
			return err
		}
	}
	return nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func fromScore(s float64) time.Time {
	return time.UnixMilli(int64(s)).UTC()
}
