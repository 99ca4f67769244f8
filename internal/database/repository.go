package database

import (
	"github.com/robalyx/draftguard/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all PostgreSQL-backed models.
type Repository struct {
	picks      *models.PickModel
	flags      *models.FlagModel
	riskScores *models.RiskScoreModel
	pairs      *models.PairModel
	actions    *models.ActionModel
	adp        *models.ADPModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		picks:      models.NewPick(db, logger),
		flags:      models.NewFlag(db, logger),
		riskScores: models.NewRiskScore(db, logger),
		pairs:      models.NewPair(db, logger),
		actions:    models.NewAction(db, logger),
		adp:        models.NewADP(db, logger),
	}
}

// Picks returns the pick model repository.
func (r *Repository) Picks() PickModel {
	return r.picks
}

// Flags returns the integrity flags model repository.
func (r *Repository) Flags() FlagModel {
	return r.flags
}

// RiskScores returns the draft risk score model repository.
func (r *Repository) RiskScores() RiskScoreModel {
	return r.riskScores
}

// Pairs returns the user pair analysis model repository.
func (r *Repository) Pairs() PairModel {
	return r.pairs
}

// Actions returns the admin action model repository.
func (r *Repository) Actions() ActionModel {
	return r.actions
}

// ADP returns the player ADP model repository.
func (r *Repository) ADP() ADPModel {
	return r.adp
}
