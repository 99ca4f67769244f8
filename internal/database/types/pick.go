package types

import (
	"time"

	"github.com/uptrace/bun"
)

// Coordinates is a device location reported with a pick.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PickLocationRecord is one completed pick with optional location telemetry.
// Rows are written by the draft engine webhook and never modified afterwards.
type PickLocationRecord struct {
	bun.BaseModel `bun:"table:draft_picks"`

	DraftID     string       `bun:",pk"                 json:"draftId"`
	PickNumber  int          `bun:",pk"                 json:"pickNumber"`
	UserID      string       `bun:",notnull"            json:"userId"`
	PlayerID    string       `bun:",notnull"            json:"playerId"`
	Coordinates *Coordinates `bun:"type:jsonb,nullzero" json:"coordinates"`
	Timestamp   time.Time    `bun:",notnull"            json:"timestamp"`
}

// HasLocation reports whether the pick carries usable coordinates.
func (p *PickLocationRecord) HasLocation() bool {
	return p.Coordinates != nil
}
