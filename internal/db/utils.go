package db

import (
	"fmt"

	"github.com/dtnitsch/second-look/internal/common"
	dbpkg "github.com/dtnitsch/second-look/pkg/db"
	"github.com/urfave/cli/v2"
)

// openDatabase opens the database named by the config and --db.
func openDatabase(c *cli.Context) (*dbpkg.DB, error) {
	common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return nil, err
	}
	database, err := dbpkg.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// GetAnalysisIDOrLatest returns the analysis ID from args, or the latest analysis if not provided
func GetAnalysisIDOrLatest(c *cli.Context, database *dbpkg.DB) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}

	recs, err := database.ListAnalyses(1)
	if err != nil {
		return "", fmt.Errorf("failed to get latest analysis: %w", err)
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("no analyses found. Run 'secondlook watch --url \"...\"' first")
	}
	return recs[0].ID, nil
}
