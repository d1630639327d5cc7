package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/pangeo-forge/aws-bakery/internal/config"
)

func ProvideContext() context.Context {
	return context.Background()
}

// ProvideAWSConfig loads the SDK config targeting the region and profile
// from the bakery contract. An empty profile falls back to the SDK's
// default credential chain.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		optFns = append(optFns, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}

func ProvideCloudFormationClient(config aws.Config) *cloudformation.Client {
	return cloudformation.NewFromConfig(config)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideSecretsManagerClient(config aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(config)
}

func ProvideIAMClient(config aws.Config) *iam.Client {
	return iam.NewFromConfig(config)
}

func ProvideSTSClient(config aws.Config) *sts.Client {
	return sts.NewFromConfig(config)
}

func ProvideSSMClient(config aws.Config) *ssm.Client {
	return ssm.NewFromConfig(config)
}

func ProvideECRClient(config aws.Config) *ecr.Client {
	return ecr.NewFromConfig(config)
}

func ProvideECSClient(config aws.Config) *ecs.Client {
	return ecs.NewFromConfig(config)
}

func ProvideELBClient(config aws.Config) *elbv2.Client {
	return elbv2.NewFromConfig(config)
}

func ProvideLogsClient(config aws.Config) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(config)
}

func ProvideDynamoDBClient(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}
