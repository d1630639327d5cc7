package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
)

type ECSAPI interface {
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
}

type ECSService struct {
	client ECSAPI
}

func NewECSService(client ECSAPI) *ECSService {
	return &ECSService{client: client}
}

// AgentServiceStatus is the running state of the agent service.
type AgentServiceStatus struct {
	Status       string
	DesiredCount int32
	RunningCount int32
	PendingCount int32
}

func (s *ECSService) ServiceStatus(ctx context.Context, cluster, service string) (*AgentServiceStatus, error) {
	result, err := s.client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe service %s: %w", service, err)
	}

	if len(result.Services) == 0 {
		return nil, fmt.Errorf("service %s not found in cluster %s", service, cluster)
	}

	svc := result.Services[0]
	return &AgentServiceStatus{
		Status:       aws.ToString(svc.Status),
		DesiredCount: svc.DesiredCount,
		RunningCount: svc.RunningCount,
		PendingCount: svc.PendingCount,
	}, nil
}
