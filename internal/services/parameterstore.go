package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog"
)

type ParameterStoreAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
	DeleteParameters(ctx context.Context, params *ssm.DeleteParametersInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParametersOutput, error)
}

// ParameterStoreService exports stack outputs to SSM Parameter Store so
// flow registration tooling can discover the bakery without describing the
// stack itself.
type ParameterStoreService struct {
	client ParameterStoreAPI
}

func NewParameterStoreService(client ParameterStoreAPI) *ParameterStoreService {
	return &ParameterStoreService{client: client}
}

// ExportOutputs writes each output under prefix, overwriting stale values
// from earlier deploys.
func (s *ParameterStoreService) ExportOutputs(ctx context.Context, prefix string, outputs map[string]string) error {
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := prefix + key
		_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
			Name:      aws.String(name),
			Value:     aws.String(outputs[key]),
			Type:      types.ParameterTypeString,
			Overwrite: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("failed to put parameter %s: %w", name, err)
		}
	}

	zerolog.Ctx(ctx).Info().
		Str("prefix", prefix).
		Int("count", len(outputs)).
		Msg("Exported stack outputs to Parameter Store")
	return nil
}

// GetOutputs reads back every parameter under prefix, keyed without the
// prefix. A prefix with no parameters returns an empty map.
func (s *ParameterStoreService) GetOutputs(ctx context.Context, prefix string) (map[string]string, error) {
	outputs := map[string]string{}

	var token *string
	for {
		page, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:      aws.String(prefix),
			Recursive: aws.Bool(false),
			NextToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters under %s: %w", prefix, err)
		}

		for _, param := range page.Parameters {
			name := aws.ToString(param.Name)
			outputs[name[len(prefix):]] = aws.ToString(param.Value)
		}

		if page.NextToken == nil {
			break
		}
		token = page.NextToken
	}

	return outputs, nil
}

// DeleteOutputs removes every parameter under prefix. DeleteParameters
// accepts at most ten names per call.
func (s *ParameterStoreService) DeleteOutputs(ctx context.Context, prefix string) (deleted int, err error) {
	outputs, err := s.GetOutputs(ctx, prefix)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(outputs))
	for key := range outputs {
		names = append(names, prefix+key)
	}
	sort.Strings(names)

	for len(names) > 0 {
		batch := names
		if len(batch) > 10 {
			batch = batch[:10]
		}
		names = names[len(batch):]

		if _, err := s.client.DeleteParameters(ctx, &ssm.DeleteParametersInput{
			Names: batch,
		}); err != nil {
			return deleted, fmt.Errorf("failed to delete parameters under %s: %w", prefix, err)
		}
		deleted += len(batch)
	}

	return deleted, nil
}
