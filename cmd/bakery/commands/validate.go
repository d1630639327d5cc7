package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/di"
	"github.com/pangeo-forge/aws-bakery/internal/preflight"
)

// ValidateCommand returns the validate command: the deploy preflight,
// standalone.
func ValidateCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Run the deploy preflight checks without deploying",
		Description: `Checks the environment contract, AWS access, the runner token secret,
the bucket user, the agent image, and the synthesized template (both
CloudFormation validation and the embedded policy), plus Prefect Cloud
auth and project unless --offline.

Examples:
  bakery validate
  bakery validate --offline`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Skip the Prefect Cloud checks",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit results as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			container, _, err := newContainer(c)
			if err != nil {
				return err
			}

			runner := di.MustGet[*preflight.Runner](container)
			runner.Offline = c.Bool("offline")

			results := runner.Run(c.Context)
			if c.Bool("json") {
				if err := printJSON(results); err != nil {
					return err
				}
			} else {
				printPreflight(results)
			}

			if !preflight.Passed(results) {
				return fmt.Errorf("preflight checks failed")
			}
			return nil
		},
	}
}
