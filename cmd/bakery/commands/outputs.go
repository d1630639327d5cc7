package commands

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/deploy"
	"github.com/pangeo-forge/aws-bakery/internal/di"
)

// OutputsCommand returns the outputs command listing the stack outputs.
func OutputsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "outputs",
		Usage: "Show the deployed stack's outputs",
		Description: `Lists the stack outputs: cluster, service, load balancer DNS name, flow
bucket, and agent log group. These are also exported to SSM Parameter
Store on every deploy.

Examples:
  bakery outputs
  bakery outputs --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit outputs as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			container, _, err := newContainer(c)
			if err != nil {
				return err
			}

			deployer := di.MustGet[*deploy.Deployer](container)
			outputs, err := deployer.Outputs(c.Context)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(outputs)
			}

			keys := make([]string, 0, len(outputs))
			for key := range outputs {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("%-25s %s\n", key, outputs[key])
			}
			return nil
		},
	}
}
