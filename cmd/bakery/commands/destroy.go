package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/deploy"
	"github.com/pangeo-forge/aws-bakery/internal/di"
)

// DestroyCommand returns the destroy command tearing the bakery down.
// Destroys are auto-approved unless --confirm asks for a prompt.
func DestroyCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "destroy",
		Usage: "Delete the bakery stack and its flow storage",
		Description: `Empties the flow storage bucket, deletes the CloudFormation stack, and
removes the exported SSM parameters. A stack that does not exist is a
clean no-op.

With --retain-storage the bucket keeps its objects; stack deletion is
then expected to fail if the bucket is not empty, and the bucket
survives for a later manual cleanup.

Examples:
  bakery destroy
  bakery destroy --confirm
  bakery destroy --retain-storage`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "retain-storage",
				Usage: "Keep the flow storage bucket contents",
			},
			&cli.BoolFlag{
				Name:  "confirm",
				Usage: "Ask for confirmation before destroying",
			},
		},
		Action: func(c *cli.Context) error {
			container, cfg, err := newContainer(c)
			if err != nil {
				return err
			}

			if c.Bool("confirm") {
				fmt.Printf("Destroy stack %s and its flow storage? Type 'yes' to continue: ", cfg.StackName())
				var answer string
				_, _ = fmt.Scanln(&answer)
				if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			deployer := di.MustGet[*deploy.Deployer](container)
			result, err := deployer.Destroy(c.Context, c.Bool("retain-storage"))
			if err != nil {
				return err
			}

			if result.NoChanges {
				fmt.Printf("✓ Stack %s does not exist, nothing to destroy\n", result.StackName)
			} else {
				fmt.Printf("✓ Stack %s destroyed\n", result.StackName)
			}
			return nil
		},
	}
}
