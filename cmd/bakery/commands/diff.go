package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/deploy"
	"github.com/pangeo-forge/aws-bakery/internal/di"
)

// DiffCommand returns the diff command comparing the synthesized template
// against the deployed stack.
func DiffCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Show pending changes between the local template and the deployed stack",
		Description: `Synthesizes the bakery template and compares it against the deployed
stack using a throwaway change set. When the stack does not exist yet,
every resource is listed as an addition.

Examples:
  bakery diff
  bakery diff --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit the change list as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			container, _, err := newContainer(c)
			if err != nil {
				return err
			}

			deployer := di.MustGet[*deploy.Deployer](container)
			result, err := deployer.Diff(c.Context)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(result)
			}

			if !result.StackExists {
				fmt.Printf("Stack %s does not exist; deploy would create:\n\n", result.StackName)
			} else if len(result.Changes) == 0 {
				fmt.Printf("Stack %s is up to date, no changes.\n", result.StackName)
				return nil
			} else {
				fmt.Printf("Pending changes for stack %s:\n\n", result.StackName)
			}

			for _, change := range result.Changes {
				line := fmt.Sprintf("  %-7s %-30s %s", change.Action, change.LogicalID, change.ResourceType)
				if change.Replacement == "True" {
					line += "  (replacement)"
				}
				fmt.Println(line)
			}
			fmt.Printf("\n%d change(s)\n", len(result.Changes))
			return nil
		},
	}
}
