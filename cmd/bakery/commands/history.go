package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/gox/slicex"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/dao/historydao"
	"github.com/pangeo-forge/aws-bakery/internal/di"
)

// HistoryCommand returns the history command listing recorded lifecycle
// runs, newest first.
func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded deploys and destroys for this identifier",
		Description: `Reads the deployment history table. Every deploy and destroy records
its verb, operation, terminal status, and template hash; failed runs
carry the error.

Examples:
  bakery history
  bakery history --limit 5
  bakery history --json`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit runs as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			container, cfg, err := newContainer(c)
			if err != nil {
				return err
			}

			dao := di.MustGet[*historydao.DAO](container)
			records, err := dao.List(c.Context, cfg.Identifier, c.Int("limit"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(records)
			}

			if len(records) == 0 {
				fmt.Printf("No recorded runs for identifier %s.\n", cfg.Identifier)
				return nil
			}

			for _, line := range slicex.Map(records, historyLine) {
				fmt.Println(line)
			}
			return nil
		},
	}
}

// historyLine renders one recorded run as a fixed-width row.
func historyLine(record historydao.Record) string {
	finished := time.Unix(record.FinishedAt, 0).UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s  %-7s %-6s %-25s %s",
		finished, record.Verb, record.Operation, record.Status, record.SK)
	if record.Error != "" {
		line += "\n           error: " + record.Error
	}
	return line
}
