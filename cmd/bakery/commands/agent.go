package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/di"
	"github.com/pangeo-forge/aws-bakery/internal/prefect"
)

// AgentCommand returns the agent command group for the deployed execution
// agent as Prefect Cloud sees it.
func AgentCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Inspect the bakery's Prefect agent registration",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Verify an agent with the configured labels is querying for work",
				Description: `Lists the tenant's agents and checks that one carrying every configured
label has queried Prefect Cloud within the freshness window. This is
the smoke check that the deployed service actually came up and
connected.

Examples:
  bakery agent status
  bakery agent status --within 10m`,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "within",
						Usage: "Freshness window the agent must have queried in",
						Value: 5 * time.Minute,
					},
				},
				Action: func(c *cli.Context) error {
					container, cfg, err := newContainer(c)
					if err != nil {
						return err
					}

					client := di.MustGet[*prefect.Client](container)
					agents, err := client.Agents(c.Context)
					if err != nil {
						return err
					}

					agent, ok := prefect.MatchAgent(agents, cfg.AgentLabels)
					if !ok {
						return fmt.Errorf("no agent registered for labels %v", cfg.AgentLabels)
					}

					if agent.LastQueried == nil {
						return fmt.Errorf("agent %s has never queried for work", agent.ID)
					}

					age := time.Since(*agent.LastQueried)
					if age > c.Duration("within") {
						return fmt.Errorf("agent %s last queried %s ago, outside the %s window",
							agent.ID, age.Round(time.Second), c.Duration("within"))
					}

					fmt.Printf("✓ Agent %s serving %v, last queried %s ago\n",
						agent.ID, agent.Labels, age.Round(time.Second))
					return nil
				},
			},
		},
	}
}
