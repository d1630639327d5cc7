package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

type ELBAPI interface {
	DescribeTargetHealth(ctx context.Context, params *elbv2.DescribeTargetHealthInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error)
}

type ELBService struct {
	client ELBAPI
}

func NewELBService(client ELBAPI) *ELBService {
	return &ELBService{client: client}
}

// TargetHealth summarizes the target group backing the agent service.
type TargetHealth struct {
	Healthy   int
	Unhealthy int
	Total     int
}

func (s *ELBService) TargetHealth(ctx context.Context, targetGroupARN string) (*TargetHealth, error) {
	result, err := s.client.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe target health: %w", err)
	}

	health := &TargetHealth{Total: len(result.TargetHealthDescriptions)}
	for _, desc := range result.TargetHealthDescriptions {
		if desc.TargetHealth == nil {
			continue
		}
		switch desc.TargetHealth.State {
		case elbtypes.TargetHealthStateEnumHealthy:
			health.Healthy++
		case elbtypes.TargetHealthStateEnumUnhealthy:
			health.Unhealthy++
		}
	}

	return health, nil
}
