package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/cmd/bakery/commands"
	"github.com/pangeo-forge/aws-bakery/internal/di"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "bakery",
		Usage: "Deploy and operate a pangeo-forge bakery on AWS",
		Description: `A bakery is the AWS environment that hosts a Prefect Cloud execution
agent: an ECS Fargate service behind a load balancer, a flow storage
bucket, and the IAM and secret wiring between them.

Configuration comes from the process environment, typically via a .env
file in the working directory:
  OWNER, IDENTIFIER, AWS_DEFAULT_REGION, AWS_DEFAULT_PROFILE,
  RUNNER_TOKEN_SECRET_ARN, PREFECT__CLOUD__AUTH_TOKEN,
  PREFECT_PROJECT, PREFECT_AGENT_LABELS, BUCKET_USER_ARN`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Path to the env file (default: .env in the working directory)",
				EnvVars: []string{"BAKERY_ENV_FILE"},
			},
		},
		Commands: []*cli.Command{
			commands.DiffCommand(&logger),
			commands.DeployCommand(&logger),
			commands.DestroyCommand(&logger),
			commands.SynthCommand(&logger),
			commands.ValidateCommand(&logger),
			commands.StatusCommand(&logger),
			commands.OutputsCommand(&logger),
			commands.LogsCommand(&logger),
			commands.HistoryCommand(&logger),
			commands.ProjectCommand(&logger),
			commands.AgentCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
