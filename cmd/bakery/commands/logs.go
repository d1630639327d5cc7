package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/di"
	"github.com/pangeo-forge/aws-bakery/internal/services"
)

// LogsCommand returns the logs command fetching agent container logs.
func LogsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Show recent agent container logs",
		Description: `Fetches recent events from the agent's CloudWatch log group. With
--follow the command keeps polling and prints new events as they
arrive; interrupt to stop.

Examples:
  bakery logs
  bakery logs --limit 200
  bakery logs --follow`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of events to fetch",
				Value: 100,
			},
			&cli.BoolFlag{
				Name:    "follow",
				Aliases: []string{"f"},
				Usage:   "Keep polling for new events",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval with --follow",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			container, cfg, err := newContainer(c)
			if err != nil {
				return err
			}
			ctx := c.Context

			logsService := di.MustGet[*services.LogsService](container)
			group := cfg.LogGroupName()

			var lastSeen time.Time
			printEvents := func() error {
				events, err := logsService.RecentEvents(ctx, group, int32(c.Int("limit")))
				if err != nil {
					return err
				}
				for _, event := range events {
					if !event.Timestamp.After(lastSeen) {
						continue
					}
					lastSeen = event.Timestamp
					fmt.Printf("%s  %s\n", event.Timestamp.Format(time.RFC3339), event.Message)
				}
				return nil
			}

			if err := printEvents(); err != nil {
				return err
			}
			if !c.Bool("follow") {
				return nil
			}

			ticker := time.NewTicker(c.Duration("interval"))
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printEvents(); err != nil {
						return err
					}
				}
			}
		},
	}
}
