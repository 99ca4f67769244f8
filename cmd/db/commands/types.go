// Package commands implements the database management subcommands.
package commands

import (
	"errors"

	"github.com/redis/rueidis"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired = errors.New("NAME argument required")
	ErrFileRequired = errors.New("FILE argument required")
	ErrNoRankings   = errors.New("rankings file holds no players")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	Config   *config.Config
	DB       database.Client
	Migrator *migrate.Migrator
	Cache    rueidis.Client // nil when Redis is unreachable
	Logger   *zap.Logger
}
