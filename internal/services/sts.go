package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type STSService struct {
	client STSAPI
}

func NewSTSService(client STSAPI) *STSService {
	return &STSService{client: client}
}

// CallerIdentity is the account the configured region/profile pair resolves
// to. Preflight surfaces it so a deploy against the wrong account is caught
// before CloudFormation starts creating resources.
type CallerIdentity struct {
	Account string
	ARN     string
	UserID  string
}

func (s *STSService) CallerIdentity(ctx context.Context) (*CallerIdentity, error) {
	result, err := s.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}

	return &CallerIdentity{
		Account: aws.ToString(result.Account),
		ARN:     aws.ToString(result.Arn),
		UserID:  aws.ToString(result.UserId),
	}, nil
}
