package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	apperrors "github.com/pangeo-forge/aws-bakery/internal/errors"
)

// RunnerTokenField is the JSON field of the runner-token secret the agent
// container reads its Prefect auth token from.
const RunnerTokenField = "RUNNER_TOKEN"

type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsService struct {
	client SecretsAPI
}

func NewSecretsService(client SecretsAPI) *SecretsService {
	return &SecretsService{client: client}
}

type runnerTokenSecret struct {
	RunnerToken string `json:"RUNNER_TOKEN"`
}

// CheckRunnerToken verifies the secret exists, is readable, and carries a
// non-empty RUNNER_TOKEN field. The task definition references the field by
// name, so a structurally wrong secret would only surface at task start.
func (s *SecretsService) CheckRunnerToken(ctx context.Context, secretARN string) error {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return fmt.Errorf("failed to get secret %s: %w", secretARN, err)
	}

	if result.SecretString == nil {
		return fmt.Errorf("secret %s has no string value", secretARN)
	}

	var secret runnerTokenSecret
	if err := json.Unmarshal([]byte(*result.SecretString), &secret); err != nil {
		return fmt.Errorf("secret %s is not a JSON object: %w", secretARN, err)
	}

	if secret.RunnerToken == "" {
		return fmt.Errorf("%w: %s", apperrors.ErrSecretFieldMissing, secretARN)
	}

	return nil
}
