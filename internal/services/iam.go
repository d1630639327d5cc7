package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

type IAMAPI interface {
	GetUser(ctx context.Context, params *iam.GetUserInput, optFns ...func(*iam.Options)) (*iam.GetUserOutput, error)
}

type IAMService struct {
	client IAMAPI
}

func NewIAMService(client IAMAPI) *IAMService {
	return &IAMService{client: client}
}

// CheckBucketUser verifies the configured ARN names an existing IAM user.
// The flow bucket policy grants this principal access; a typo here deploys
// fine and then silently locks the flow registrar out.
func (s *IAMService) CheckBucketUser(ctx context.Context, userARN string) error {
	parsed, err := arn.Parse(userARN)
	if err != nil {
		return fmt.Errorf("invalid bucket user ARN %s: %w", userARN, err)
	}

	if parsed.Service != "iam" || !strings.HasPrefix(parsed.Resource, "user/") {
		return fmt.Errorf("bucket user ARN %s does not name an IAM user", userARN)
	}

	// Paths are part of the resource (user/path/name); GetUser wants the name.
	username := parsed.Resource[strings.LastIndex(parsed.Resource, "/")+1:]
	if username == "" {
		return fmt.Errorf("bucket user ARN %s has an empty user name", userARN)
	}

	if _, err := s.client.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(username)}); err != nil {
		return fmt.Errorf("failed to get user %s: %w", username, err)
	}

	return nil
}
