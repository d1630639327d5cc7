package commands

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/dao/historydao"
	"github.com/pangeo-forge/aws-bakery/internal/deploy"
	"github.com/pangeo-forge/aws-bakery/internal/di"
	"github.com/pangeo-forge/aws-bakery/internal/preflight"
)

// DeployCommand returns the deploy command driving the stack to its target
// state. Deploys are auto-approved; diff first if unsure.
func DeployCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Create or update the bakery stack",
		Description: `Runs the preflight checks, then creates or updates the CloudFormation
stack and waits for a terminal status. On success the stack outputs are
exported to SSM Parameter Store under /pangeo-forge/bakery/<identifier>/
and the run is recorded in the deployment history.

Examples:
  bakery deploy
  bakery deploy --offline          # skip Prefect Cloud checks
  bakery deploy --skip-preflight   # deploy without the preflight gate`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Skip the Prefect Cloud preflight checks",
			},
			&cli.BoolFlag{
				Name:  "skip-preflight",
				Usage: "Deploy without running preflight checks",
			},
		},
		Action: func(c *cli.Context) error {
			container, cfg, err := newContainer(c)
			if err != nil {
				return err
			}
			ctx := c.Context

			if !c.Bool("skip-preflight") {
				runner := di.MustGet[*preflight.Runner](container)
				runner.Offline = c.Bool("offline")

				results := runner.Run(ctx)
				printPreflight(results)
				if !preflight.Passed(results) {
					return fmt.Errorf("preflight checks failed")
				}
			}

			// Best effort: history must never block a deploy.
			history := di.MustGet[*historydao.DAO](container)
			if err := history.EnsureTable(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to ensure history table")
			}

			deployer := di.MustGet[*deploy.Deployer](container)
			result, err := deployer.Deploy(ctx)
			if err != nil {
				return err
			}

			if result.NoChanges {
				fmt.Printf("✓ Stack %s already up to date\n", result.StackName)
			} else {
				fmt.Printf("✓ Stack %s %s complete (%s)\n", result.StackName, result.Operation, result.Status)
			}

			keys := make([]string, 0, len(result.Outputs))
			for key := range result.Outputs {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("  %-25s %s\n", key, result.Outputs[key])
			}
			fmt.Printf("\nOutputs exported under %s\n", cfg.ParameterPrefix())
			return nil
		},
	}
}

func printPreflight(results []preflight.Result) {
	for _, result := range results {
		mark := "✓"
		switch result.Status {
		case preflight.StatusFail:
			mark = "✗"
		case preflight.StatusWarn:
			mark = "!"
		case preflight.StatusSkip:
			mark = "-"
		}
		line := fmt.Sprintf("%s %-20s %s", mark, result.Name, result.Status)
		if result.Detail != "" {
			line += ": " + result.Detail
		}
		fmt.Println(line)
	}
	fmt.Println()
}
