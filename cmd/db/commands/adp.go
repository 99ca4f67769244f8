package commands

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/robalyx/draftguard/internal/adp"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ADPCommands returns the ADP data commands.
func ADPCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "adp",
			Usage: "Manage average draft position data",
			Commands: []*cli.Command{
				{
					Name:      "import",
					Usage:     "Import a rankings CSV export and republish the shared snapshot",
					ArgsUsage: "FILE",
					Action:    handleADPImport(deps),
				},
				{
					Name:  "show",
					Usage: "Show the players with the earliest ADP",
					Flags: []cli.Flag{
						&cli.IntFlag{
							Name:    "limit",
							Aliases: []string{"n"},
							Value:   20,
							Usage:   "Number of players to show",
						},
					},
					Action: handleADPShow(deps),
				},
			},
		},
	}
}

func (deps *CLIDependencies) provider() *adp.Provider {
	ttl := time.Duration(deps.Config.Common.Detection.ADPCacheTTL) * time.Minute
	return adp.NewProvider(deps.DB.Model().ADP(), deps.Cache, ttl, deps.Logger)
}

func handleADPImport(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrFileRequired
		}

		file, err := os.Open(c.Args().First())
		if err != nil {
			return fmt.Errorf("failed to open rankings file: %w", err)
		}
		defer file.Close()

		rows, err := adp.LoadRankingsCSV(file)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrNoRankings
		}

		provider := deps.provider()
		if err := provider.Publish(ctx, rows); err != nil {
			return err
		}

		deps.Logger.Info("Imported ADP rankings",
			zap.String("file", c.Args().First()),
			zap.Int("players", len(rows)),
			zap.Int("snapshot", provider.Size()))
		return nil
	}
}

func handleADPShow(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		rows, err := deps.DB.Model().ADP().GetAllADP(ctx)
		if err != nil {
			return err
		}

		slices.SortFunc(rows, func(a, b *types.PlayerADP) int {
			switch {
			case a.ADP < b.ADP:
				return -1
			case a.ADP > b.ADP:
				return 1
			default:
				return 0
			}
		})

		limit := min(int(c.Int("limit")), len(rows))
		for _, row := range rows[:limit] {
			deps.Logger.Info("Player",
				zap.String("id", row.PlayerID),
				zap.String("name", row.Name),
				zap.String("position", row.Position),
				zap.String("team", row.Team),
				zap.Float64("adp", row.ADP))
		}

		deps.Logger.Info("ADP table", zap.Int("players", len(rows)))
		return nil
	}
}
