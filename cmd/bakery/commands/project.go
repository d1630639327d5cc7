package commands

import (
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/di"
	"github.com/pangeo-forge/aws-bakery/internal/errors"
	"github.com/pangeo-forge/aws-bakery/internal/prefect"
)

// ProjectCommand returns the project command group for the Prefect project
// flows register under.
func ProjectCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Manage the Prefect project flows register under",
		Subcommands: []*cli.Command{
			{
				Name:  "ensure",
				Usage: "Create the configured Prefect project if it does not exist",
				Description: `Looks PREFECT_PROJECT up in Prefect Cloud and creates it when missing.

Examples:
  bakery project ensure`,
				Action: func(c *cli.Context) error {
					container, cfg, err := newContainer(c)
					if err != nil {
						return err
					}
					ctx := c.Context

					client := di.MustGet[*prefect.Client](container)

					project, err := client.ProjectByName(ctx, cfg.PrefectProject)
					if err == nil {
						fmt.Printf("✓ Project %s exists (%s)\n", project.Name, project.ID)
						return nil
					}
					if !stderrors.Is(err, errors.ErrProjectNotFound) {
						return err
					}

					project, err = client.CreateProject(ctx, cfg.PrefectProject)
					if err != nil {
						return err
					}
					fmt.Printf("✓ Created project %s (%s)\n", project.Name, project.ID)
					return nil
				},
			},
		},
	}
}
