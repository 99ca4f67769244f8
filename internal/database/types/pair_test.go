package types_test

import (
	"testing"

	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPair(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    string
		wantID  string
		swapped bool
	}{
		{name: "already ordered", a: "alice", b: "bob", wantID: "alice:bob"},
		{name: "reversed", a: "bob", b: "alice", wantID: "alice:bob", swapped: true},
		{name: "numeric strings compare lexically", a: "9", b: "10", wantID: "10:9", swapped: true},
		{name: "same prefix", a: "user1", b: "user", wantID: "user:user1", swapped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, swapped := types.CanonicalPair(tt.a, tt.b)
			assert.Equal(t, tt.wantID, key.ID())
			assert.Equal(t, tt.swapped, swapped)

			reverse, _ := types.CanonicalPair(tt.b, tt.a)
			assert.Equal(t, key, reverse)
		})
	}
}

func TestParsePairID(t *testing.T) {
	t.Parallel()

	key, err := types.ParsePairID("alice:bob")
	require.NoError(t, err)
	assert.Equal(t, types.PairKey{UserIDA: "alice", UserIDB: "bob"}, key)
	assert.True(t, key.Contains("bob"))
	assert.False(t, key.Contains("carol"))

	for _, id := range []string{"", "alice", "alice:", ":bob", "bob:alice"} {
		_, err := types.ParsePairID(id)
		var ve *types.ValidationError
		assert.ErrorAs(t, err, &ve, id)
	}
}

func TestValidateUserID(t *testing.T) {
	t.Parallel()

	require.NoError(t, types.ValidateUserID("alice"))

	// Both splits would share the pair id "a:b:c".
	for _, id := range []string{"", "a:b", "b:c", ":"} {
		var ve *types.ValidationError
		require.ErrorAs(t, types.ValidateUserID(id), &ve, id)
		assert.Equal(t, "userId", ve.Field)
	}
}

func TestEvidenceSnapshotBound(t *testing.T) {
	t.Parallel()

	snapshot := &types.EvidenceSnapshot{}
	for range types.MaxEvidencePairs + 5 {
		snapshot.Pairs = append(snapshot.Pairs, types.EvidencePair{PairID: "a:b"})
		snapshot.DraftIDs = append(snapshot.DraftIDs, "d")
	}

	snapshot.Bound()
	assert.Len(t, snapshot.Pairs, types.MaxEvidencePairs)
	assert.Len(t, snapshot.DraftIDs, types.MaxEvidenceDrafts)
	assert.True(t, snapshot.Truncated)

	small := &types.EvidenceSnapshot{Pairs: []types.EvidencePair{{PairID: "a:b"}}}
	small.Bound()
	assert.False(t, small.Truncated)
}

func TestFlagsClone(t *testing.T) {
	t.Parallel()

	flags := &types.DraftIntegrityFlags{
		DraftID: "D1",
		FlaggedPairs: []types.FlaggedPair{{
			UserIDA: "a", UserIDB: "b",
			Events: []types.ProximityEvent{{PickNumberA: 5, PickNumberB: 6, DistanceFeet: 10}},
		}},
	}

	clone := flags.Clone()
	clone.FlaggedPairs[0].Events = append(clone.FlaggedPairs[0].Events, types.ProximityEvent{PickNumberA: 7})
	clone.FlaggedPairs[0].Events[0].DistanceFeet = 99

	assert.Len(t, flags.FlaggedPairs[0].Events, 1)
	assert.InDelta(t, 10.0, flags.FlaggedPairs[0].Events[0].DistanceFeet, 0)
	assert.Len(t, flags.EventsFor(types.PairKey{UserIDA: "a", UserIDB: "b"}), 1)
	assert.Nil(t, flags.EventsFor(types.PairKey{UserIDA: "a", UserIDB: "c"}))
}
