package di

import (
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/pangeo-forge/aws-bakery/internal/config"
	"github.com/pangeo-forge/aws-bakery/internal/dao/historydao"
	"github.com/pangeo-forge/aws-bakery/internal/deploy"
	"github.com/pangeo-forge/aws-bakery/internal/policy"
	"github.com/pangeo-forge/aws-bakery/internal/prefect"
	"github.com/pangeo-forge/aws-bakery/internal/preflight"
	"github.com/pangeo-forge/aws-bakery/internal/services"
)

func ProvideStorageService(client *s3.Client) *services.StorageService {
	return services.NewStorageService(client)
}

func ProvideSecretsService(client *secretsmanager.Client) *services.SecretsService {
	return services.NewSecretsService(client)
}

func ProvideIAMService(client *iam.Client) *services.IAMService {
	return services.NewIAMService(client)
}

func ProvideSTSService(client *sts.Client) *services.STSService {
	return services.NewSTSService(client)
}

func ProvideECRService(client *ecr.Client) *services.ECRService {
	return services.NewECRService(client)
}

func ProvideECSService(client *ecs.Client) *services.ECSService {
	return services.NewECSService(client)
}

func ProvideELBService(client *elbv2.Client) *services.ELBService {
	return services.NewELBService(client)
}

func ProvideLogsService(client *cloudwatchlogs.Client) *services.LogsService {
	return services.NewLogsService(client)
}

func ProvideParameterStoreService(client *ssm.Client) *services.ParameterStoreService {
	return services.NewParameterStoreService(client)
}

func ProvidePrefectClient(cfg *config.Config) *prefect.Client {
	return prefect.New(cfg.PrefectAuthToken)
}

func ProvidePolicyValidator() (*policy.Validator, error) {
	return policy.NewValidator()
}

func ProvideDeployer(
	cfg *config.Config,
	client *cloudformation.Client,
	storage *services.StorageService,
	params *services.ParameterStoreService,
	history *historydao.DAO,
) *deploy.Deployer {
	return deploy.New(cfg, client, storage, params, history)
}

func ProvidePreflightRunner(
	cfg *config.Config,
	stsService *services.STSService,
	secrets *services.SecretsService,
	iamService *services.IAMService,
	ecrService *services.ECRService,
	deployer *deploy.Deployer,
	validator *policy.Validator,
	prefectClient *prefect.Client,
) *preflight.Runner {
	return preflight.NewRunner(cfg, stsService, secrets, iamService, ecrService, deployer, validator, prefectClient)
}
