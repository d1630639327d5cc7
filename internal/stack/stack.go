// Package stack synthesizes the bakery CloudFormation template: the VPC,
// ECS cluster, Fargate agent service behind an ALB, and the flow storage
// bucket, all derived from a single Config.
package stack

import (
	"strconv"

	"github.com/pangeo-forge/aws-bakery/internal/cfn"
	"github.com/pangeo-forge/aws-bakery/internal/config"
)

// Template parameters. Values are supplied at deploy time so image and
// scale changes do not require a template change.
const (
	ParamAgentImage        = "AgentImage"
	ParamAgentDesiredCount = "AgentDesiredCount"
)

// ContainerName is the agent container inside the task definition. Log
// streams are named <StreamPrefix>/<ContainerName>/<task-id>.
const (
	ContainerName = "agent"
	StreamPrefix  = "ecs-agent"
)

// PrefectAPI is the cloud endpoint the agent registers against.
const PrefectAPI = "https://api.prefect.io"

// Output keys exported by the stack.
const (
	OutputClusterName         = "ClusterName"
	OutputClusterArn          = "ClusterArn"
	OutputServiceName         = "ServiceName"
	OutputLoadBalancerDNSName = "LoadBalancerDNSName"
	OutputFlowBucketName      = "FlowBucketName"
	OutputAgentLogGroupName   = "AgentLogGroupName"
	OutputTargetGroupArn      = "TargetGroupArn"
	OutputVpcID               = "VpcId"
)

// Synthesize builds the bakery template. The result depends only on cfg, so
// repeated calls produce identical bodies.
func Synthesize(cfg *config.Config) *cfn.Template {
	t := cfn.New("Pangeo Forge bakery: Prefect agent environment for " + cfg.Identifier)

	t.Parameters[ParamAgentImage] = cfn.Parameter{
		Type:        "String",
		Default:     cfg.AgentImage,
		Description: "Container image the Prefect agent runs",
	}
	t.Parameters[ParamAgentDesiredCount] = cfn.Parameter{
		Type:        "Number",
		Default:     strconv.Itoa(cfg.AgentDesiredCount),
		Description: "Number of agent tasks to keep running",
	}

	addNetwork(t, cfg)
	addFlowStorage(t, cfg)
	addAgentService(t, cfg)
	addOutputs(t)

	return t
}

// Parameters returns the deploy-time parameter values derived from cfg.
func Parameters(cfg *config.Config) map[string]string {
	return map[string]string{
		ParamAgentImage:        cfg.AgentImage,
		ParamAgentDesiredCount: strconv.Itoa(cfg.AgentDesiredCount),
	}
}

func addOutputs(t *cfn.Template) {
	t.Outputs[OutputClusterName] = cfn.Output{
		Description: "ECS cluster hosting the agent",
		Value:       cfn.Ref("Cluster"),
	}
	t.Outputs[OutputClusterArn] = cfn.Output{
		Value: cfn.GetAtt("Cluster", "Arn"),
	}
	t.Outputs[OutputServiceName] = cfn.Output{
		Description: "Agent service name",
		Value:       cfn.GetAtt("Service", "Name"),
	}
	t.Outputs[OutputLoadBalancerDNSName] = cfn.Output{
		Description: "Public endpoint for the agent health API",
		Value:       cfn.GetAtt("LoadBalancer", "DNSName"),
	}
	t.Outputs[OutputFlowBucketName] = cfn.Output{
		Description: "Bucket flows are registered into",
		Value:       cfn.Ref("FlowBucket"),
	}
	t.Outputs[OutputAgentLogGroupName] = cfn.Output{
		Value: cfn.Ref("AgentLogGroup"),
	}
	t.Outputs[OutputTargetGroupArn] = cfn.Output{
		Value: cfn.Ref("TargetGroup"),
	}
	t.Outputs[OutputVpcID] = cfn.Output{
		Value: cfn.Ref("Vpc"),
	}
}
