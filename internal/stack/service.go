package stack

import (
	"strconv"

	"github.com/pangeo-forge/aws-bakery/internal/cfn"
	"github.com/pangeo-forge/aws-bakery/internal/config"
)

// agentPort is the port the Prefect agent serves its health API on.
const agentPort = 8080

// healthCheckPath is served by the agent when an agent address is configured.
const healthCheckPath = "/api/health"

// addAgentService declares the ECS side of the bakery: cluster, log group,
// task roles, the agent task definition, and the load-balanced service.
func addAgentService(t *cfn.Template, cfg *config.Config) {
	t.Add("Cluster", cfn.Resource{
		Type: "AWS::ECS::Cluster",
		Properties: map[string]interface{}{
			"ClusterName": cfg.ClusterName(),
		},
	})

	t.Add("AgentLogGroup", cfn.Resource{
		Type: "AWS::Logs::LogGroup",
		Properties: map[string]interface{}{
			"LogGroupName":    cfg.LogGroupName(),
			"RetentionInDays": cfg.LogRetentionDays,
		},
	})

	addRoles(t, cfg)
	addTaskDefinition(t, cfg)
	addLoadBalancer(t)

	t.Add("Service", cfn.Resource{
		Type: "AWS::ECS::Service",
		// A service attached to a target group cannot start before the
		// listener exists.
		DependsOn: []string{"Listener"},
		Properties: map[string]interface{}{
			"ServiceName":                   cfg.ServiceName(),
			"Cluster":                       cfn.Ref("Cluster"),
			"TaskDefinition":                cfn.Ref("TaskDefinition"),
			"DesiredCount":                  cfn.Ref(ParamAgentDesiredCount),
			"LaunchType":                    "FARGATE",
			"PlatformVersion":               "LATEST",
			"PropagateTags":                 "SERVICE",
			"HealthCheckGracePeriodSeconds": 60,
			"NetworkConfiguration": map[string]interface{}{
				"AwsvpcConfiguration": map[string]interface{}{
					"AssignPublicIp": "ENABLED",
					"Subnets":        subnetRefs(),
					"SecurityGroups": []interface{}{cfn.Ref("AgentSecurityGroup")},
				},
			},
			"LoadBalancers": []map[string]interface{}{
				{
					"ContainerName":  ContainerName,
					"ContainerPort":  agentPort,
					"TargetGroupArn": cfn.Ref("TargetGroup"),
				},
			},
		},
	})
}

func addRoles(t *cfn.Template, cfg *config.Config) {
	assumeECSTasks := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect": "Allow",
				"Principal": map[string]interface{}{
					"Service": "ecs-tasks.amazonaws.com",
				},
				"Action": "sts:AssumeRole",
			},
		},
	}

	t.Add("ExecutionRole", cfn.Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]interface{}{
			"AssumeRolePolicyDocument": assumeECSTasks,
			"ManagedPolicyArns": []string{
				"arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy",
			},
			"Policies": []map[string]interface{}{
				{
					"PolicyName": "read-runner-token",
					"PolicyDocument": map[string]interface{}{
						"Version": "2012-10-17",
						"Statement": []map[string]interface{}{
							{
								"Effect":   "Allow",
								"Action":   "secretsmanager:GetSecretValue",
								"Resource": cfg.RunnerTokenSecretARN,
							},
						},
					},
				},
			},
		},
	})

	t.Add("TaskRole", cfn.Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]interface{}{
			"AssumeRolePolicyDocument": assumeECSTasks,
		},
	})

	// Attached as a separate policy: the statements reference the role ARNs,
	// which would be circular inside the role's own definition.
	t.Add("AgentPermissions", cfn.Resource{
		Type: "AWS::IAM::Policy",
		Properties: map[string]interface{}{
			"PolicyName": "bakery-agent-" + cfg.Identifier,
			"Roles":      []interface{}{cfn.Ref("TaskRole")},
			"PolicyDocument": map[string]interface{}{
				"Version": "2012-10-17",
				"Statement": []map[string]interface{}{
					{
						"Effect": "Allow",
						"Action": []string{
							"ecs:RegisterTaskDefinition",
							"ecs:DeregisterTaskDefinition",
							"ecs:DescribeTaskDefinition",
							"ecs:ListTaskDefinitions",
							"ecs:RunTask",
							"ecs:StopTask",
							"ecs:DescribeTasks",
							"ecs:DescribeClusters",
						},
						"Resource": "*",
					},
					{
						"Effect": "Allow",
						"Action": []string{
							"ec2:DescribeSubnets",
							"ec2:DescribeVpcs",
							"ec2:DescribeSecurityGroups",
						},
						"Resource": "*",
					},
					{
						"Effect": "Allow",
						"Action": []string{
							"logs:CreateLogGroup",
							"logs:CreateLogStream",
							"logs:PutLogEvents",
							"logs:GetLogEvents",
						},
						"Resource": "*",
					},
					{
						"Effect": "Allow",
						"Action": "iam:PassRole",
						"Resource": []interface{}{
							cfn.GetAtt("ExecutionRole", "Arn"),
							cfn.GetAtt("TaskRole", "Arn"),
						},
					},
					{
						"Effect": "Allow",
						"Action": []string{
							"s3:GetObject",
							"s3:PutObject",
							"s3:DeleteObject",
						},
						"Resource": cfn.Join("", "arn:aws:s3:::", cfn.Ref("FlowBucket"), "/*"),
					},
					{
						"Effect": "Allow",
						"Action": []string{
							"s3:ListBucket",
							"s3:GetBucketLocation",
						},
						"Resource": cfn.Join("", "arn:aws:s3:::", cfn.Ref("FlowBucket")),
					},
				},
			},
		},
	})
}

func addTaskDefinition(t *cfn.Template, cfg *config.Config) {
	t.Add("TaskDefinition", cfn.Resource{
		Type: "AWS::ECS::TaskDefinition",
		Properties: map[string]interface{}{
			"Family":                  cfg.ServiceName(),
			"Cpu":                     strconv.Itoa(cfg.AgentCPU),
			"Memory":                  strconv.Itoa(cfg.AgentMemory),
			"NetworkMode":             "awsvpc",
			"RequiresCompatibilities": []string{"FARGATE"},
			"ExecutionRoleArn":        cfn.GetAtt("ExecutionRole", "Arn"),
			"TaskRoleArn":             cfn.GetAtt("TaskRole", "Arn"),
			"ContainerDefinitions": []map[string]interface{}{
				{
					"Name":      ContainerName,
					"Image":     cfn.Ref(ParamAgentImage),
					"Essential": true,
					"PortMappings": []map[string]interface{}{
						{"ContainerPort": agentPort, "HostPort": agentPort, "Protocol": "tcp"},
					},
					"LogConfiguration": map[string]interface{}{
						"LogDriver": "awslogs",
						"Options": map[string]interface{}{
							"awslogs-group":         cfn.Ref("AgentLogGroup"),
							"awslogs-region":        cfn.Ref("AWS::Region"),
							"awslogs-stream-prefix": StreamPrefix,
						},
					},
					"Command": []interface{}{
						"prefect", "agent", "ecs", "start",
						"--cluster", cfn.GetAtt("Cluster", "Arn"),
					},
					"Environment": []map[string]interface{}{
						{"Name": "PREFECT__BACKEND", "Value": "cloud"},
						{"Name": "PREFECT__CLOUD__API", "Value": PrefectAPI},
						{"Name": "PREFECT__CLOUD__AGENT__LABELS", "Value": cfg.LabelsJSON()},
						{"Name": "PREFECT__CLOUD__AGENT__LEVEL", "Value": "INFO"},
						{"Name": "PREFECT__CLOUD__AGENT__AGENT_ADDRESS", "Value": "http://0.0.0.0:8080"},
					},
					"Secrets": []map[string]interface{}{
						{
							"Name":      "PREFECT__CLOUD__AGENT__AUTH_TOKEN",
							"ValueFrom": cfg.RunnerTokenSecretARN + ":RUNNER_TOKEN::",
						},
					},
				},
			},
		},
	})
}

func addLoadBalancer(t *cfn.Template) {
	t.Add("LoadBalancer", cfn.Resource{
		Type:      "AWS::ElasticLoadBalancingV2::LoadBalancer",
		DependsOn: []string{"GatewayAttachment"},
		Properties: map[string]interface{}{
			"Scheme":         "internet-facing",
			"Type":           "application",
			"Subnets":        subnetRefs(),
			"SecurityGroups": []interface{}{cfn.Ref("LoadBalancerSecurityGroup")},
		},
	})

	t.Add("TargetGroup", cfn.Resource{
		Type: "AWS::ElasticLoadBalancingV2::TargetGroup",
		Properties: map[string]interface{}{
			"VpcId":           cfn.Ref("Vpc"),
			"Port":            agentPort,
			"Protocol":        "HTTP",
			"TargetType":      "ip",
			"HealthCheckPath": healthCheckPath,
			"HealthCheckPort": strconv.Itoa(agentPort),
		},
	})

	t.Add("Listener", cfn.Resource{
		Type: "AWS::ElasticLoadBalancingV2::Listener",
		Properties: map[string]interface{}{
			"LoadBalancerArn": cfn.Ref("LoadBalancer"),
			"Port":            80,
			"Protocol":        "HTTP",
			"DefaultActions": []map[string]interface{}{
				{"Type": "forward", "TargetGroupArn": cfn.Ref("TargetGroup")},
			},
		},
	})
}
