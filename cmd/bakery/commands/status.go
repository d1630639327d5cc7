package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/deploy"
	"github.com/pangeo-forge/aws-bakery/internal/di"
	"github.com/pangeo-forge/aws-bakery/internal/prefect"
	"github.com/pangeo-forge/aws-bakery/internal/services"
	"github.com/pangeo-forge/aws-bakery/internal/stack"
)

// StatusCommand returns the status command summarizing the deployed
// bakery: stack state, agent service counts, target health, and the
// agent's registration with Prefect Cloud.
func StatusCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the deployed bakery's health",
		Description: `Reads the stack status, the ECS service counts, and the load balancer
target health, and asks Prefect Cloud when an agent with the configured
labels last queried for work.

Examples:
  bakery status
  bakery status --offline`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Skip the Prefect Cloud agent lookup",
			},
		},
		Action: func(c *cli.Context) error {
			container, cfg, err := newContainer(c)
			if err != nil {
				return err
			}
			ctx := c.Context

			deployer := di.MustGet[*deploy.Deployer](container)
			stackStatus, err := deployer.Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Stack     %s: %s", stackStatus.StackName, stackStatus.Status)
			if stackStatus.StatusReason != "" {
				fmt.Printf(" (%s)", stackStatus.StatusReason)
			}
			fmt.Println()

			outputs, err := deployer.Outputs(ctx)
			if err != nil {
				return err
			}

			if cluster, ok := outputs[stack.OutputClusterName]; ok {
				ecsService := di.MustGet[*services.ECSService](container)
				serviceStatus, err := ecsService.ServiceStatus(ctx, cluster, cfg.ServiceName())
				if err != nil {
					logger.Warn().Err(err).Msg("Failed to read agent service status")
				} else {
					fmt.Printf("Service   %s: %s, %d/%d running (%d pending)\n",
						cfg.ServiceName(), serviceStatus.Status,
						serviceStatus.RunningCount, serviceStatus.DesiredCount, serviceStatus.PendingCount)
				}
			}

			if targetGroup, ok := outputs[stack.OutputTargetGroupArn]; ok {
				elbService := di.MustGet[*services.ELBService](container)
				health, err := elbService.TargetHealth(ctx, targetGroup)
				if err != nil {
					logger.Warn().Err(err).Msg("Failed to read target health")
				} else {
					fmt.Printf("Targets   %d healthy, %d unhealthy of %d\n",
						health.Healthy, health.Unhealthy, health.Total)
				}
			}

			if dns, ok := outputs[stack.OutputLoadBalancerDNSName]; ok {
				fmt.Printf("Endpoint  http://%s/api/health\n", dns)
			}

			if !c.Bool("offline") {
				client := di.MustGet[*prefect.Client](container)
				agents, err := client.Agents(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("Failed to list Prefect agents")
				} else if agent, ok := prefect.MatchAgent(agents, cfg.AgentLabels); ok {
					freshness := "never queried"
					if agent.LastQueried != nil {
						freshness = fmt.Sprintf("last queried %s ago",
							time.Since(*agent.LastQueried).Round(time.Second))
					}
					fmt.Printf("Agent     %s serving %v, %s\n", agent.ID, agent.Labels, freshness)
				} else {
					fmt.Printf("Agent     no agent registered for labels %v\n", cfg.AgentLabels)
				}
			}

			return nil
		},
	}
}
