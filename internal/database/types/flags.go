package types

import (
	"time"

	"github.com/uptrace/bun"
)

// ProximityEvent is one co-location observation between two picks of a pair.
// PickNumberA belongs to the pair's UserIDA and PickNumberB to UserIDB.
type ProximityEvent struct {
	PickNumberA  int       `json:"pickNumberA"`
	PickNumberB  int       `json:"pickNumberB"`
	DistanceFeet float64   `json:"distanceFeet"`
	Timestamp    time.Time `json:"timestamp"`
}

// SameTuple reports whether two events describe the same pick pair.
func (e ProximityEvent) SameTuple(o ProximityEvent) bool {
	return e.PickNumberA == o.PickNumberA && e.PickNumberB == o.PickNumberB
}

// LaterPick returns the pick number that completed the event.
func (e ProximityEvent) LaterPick() int {
	return max(e.PickNumberA, e.PickNumberB)
}

// FlaggedPair holds every proximity event recorded for one canonical pair in a draft.
type FlaggedPair struct {
	UserIDA string           `json:"userIdA"`
	UserIDB string           `json:"userIdB"`
	Events  []ProximityEvent `json:"events"`
}

// Key returns the pair key of the entry.
func (f *FlaggedPair) Key() PairKey {
	return PairKey{UserIDA: f.UserIDA, UserIDB: f.UserIDB}
}

// DraftIntegrityFlags is the per-draft document of proximity flags.
// Version increases by one on every successful write and guards concurrent updates.
type DraftIntegrityFlags struct {
	bun.BaseModel `bun:"table:draft_integrity_flags"`

	DraftID      string        `bun:",pk"                      json:"draftId"`
	FlaggedPairs []FlaggedPair `bun:"type:jsonb,notnull"       json:"flaggedPairs"`
	Version      int64         `bun:",notnull"                 json:"version"`
	Finalized    bool          `bun:",notnull,default:false"   json:"finalized"`
	UpdatedAt    time.Time     `bun:",notnull"                 json:"updatedAt"`
}

// Pair returns the entry for a pair, or nil when the pair has no events.
func (d *DraftIntegrityFlags) Pair(key PairKey) *FlaggedPair {
	for i := range d.FlaggedPairs {
		if d.FlaggedPairs[i].Key() == key {
			return &d.FlaggedPairs[i]
		}
	}
	return nil
}

// EventsFor returns the events of a pair, or nil when the pair was never flagged.
func (d *DraftIntegrityFlags) EventsFor(key PairKey) []ProximityEvent {
	if d == nil {
		return nil
	}
	if p := d.Pair(key); p != nil {
		return p.Events
	}
	return nil
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (d *DraftIntegrityFlags) Clone() *DraftIntegrityFlags {
	c := *d
	c.FlaggedPairs = make([]FlaggedPair, len(d.FlaggedPairs))
	for i, p := range d.FlaggedPairs {
		c.FlaggedPairs[i] = FlaggedPair{
			UserIDA: p.UserIDA,
			UserIDB: p.UserIDB,
			Events:  append([]ProximityEvent(nil), p.Events...),
		}
	}
	return &c
}
