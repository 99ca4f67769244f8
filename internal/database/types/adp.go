package types

import (
	"time"

	"github.com/uptrace/bun"
)

// PlayerADP is the average draft position of one player.
type PlayerADP struct {
	bun.BaseModel `bun:"table:player_adps"`

	PlayerID  string    `bun:",pk"       json:"playerId"`
	Name      string    `bun:",notnull"  json:"name"`
	Position  string    `bun:",nullzero" json:"position,omitempty"`
	Team      string    `bun:",nullzero" json:"team,omitempty"`
	ADP       float64   `bun:"adp,notnull" json:"adp"`
	UpdatedAt time.Time `bun:",notnull"  json:"updatedAt"`
}
