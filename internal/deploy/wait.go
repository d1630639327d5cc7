package deploy

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/pangeo-forge/aws-bakery/internal/errors"
)

// terminal classifies a stack status into done/failed for a particular
// verb. Deploy and destroy disagree about DELETE_COMPLETE.
type terminal func(types.StackStatus) (done, failed bool)

func deployTerminal(status types.StackStatus) (bool, bool) {
	switch status {
	case types.StackStatusCreateComplete,
		types.StackStatusUpdateComplete:
		return true, false
	case types.StackStatusCreateFailed,
		types.StackStatusUpdateFailed,
		types.StackStatusDeleteFailed,
		types.StackStatusRollbackFailed,
		types.StackStatusRollbackComplete,
		types.StackStatusUpdateRollbackFailed,
		types.StackStatusUpdateRollbackComplete,
		types.StackStatusDeleteComplete:
		return true, true
	}
	return false, false
}

func destroyTerminal(status types.StackStatus) (bool, bool) {
	switch status {
	case types.StackStatusDeleteComplete:
		return true, false
	case types.StackStatusDeleteFailed:
		return true, true
	}
	return false, false
}

// waitForStack polls until the stack reaches a terminal status for the
// verb, logging stack events as they arrive. On failure the failing
// resource events are folded into the returned error.
func (d *Deployer) waitForStack(ctx context.Context, stackName string, isTerminal terminal) (types.StackStatus, error) {
	logger := zerolog.Ctx(ctx)
	seen := map[string]bool{}

	for {
		described, err := d.describeStack(ctx, stackName)
		if err != nil {
			// The stack vanishing is how destroy finishes.
			if stderrors.Is(err, errors.ErrStackNotFound) {
				if done, failed := isTerminal(types.StackStatusDeleteComplete); done && !failed {
					return types.StackStatusDeleteComplete, nil
				}
			}
			return "", err
		}

		d.streamEvents(ctx, stackName, seen)

		status := described.StackStatus
		done, failed := isTerminal(status)
		if done && !failed {
			return status, nil
		}
		if failed {
			reason := aws.ToString(described.StackStatusReason)
			failures := d.failedEvents(ctx, stackName)
			for _, failure := range failures {
				logger.Error().
					Str("resource_id", failure.logicalID).
					Str("status", failure.status).
					Str("reason", failure.reason).
					Msg("Stack resource failed")
			}
			if reason == "" && len(failures) > 0 {
				reason = failures[0].reason
			}
			return status, fmt.Errorf("stack %s reached %s: %s", stackName, status, reason)
		}

		logger.Info().
			Str("stack_name", stackName).
			Str("status", string(status)).
			Msg("Waiting for stack")

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(d.PollInterval):
		}
	}
}

// streamEvents logs stack events not yet seen. Event order from the API is
// newest first; replay oldest first so the log reads chronologically.
func (d *Deployer) streamEvents(ctx context.Context, stackName string, seen map[string]bool) {
	logger := zerolog.Ctx(ctx)

	out, err := d.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to describe stack events")
		return
	}

	var fresh []types.StackEvent
	for _, event := range out.StackEvents {
		id := aws.ToString(event.EventId)
		if seen[id] {
			continue
		}
		seen[id] = true
		fresh = append(fresh, event)
	}

	for i := len(fresh) - 1; i >= 0; i-- {
		event := fresh[i]
		logger.Info().
			Str("resource_id", aws.ToString(event.LogicalResourceId)).
			Str("type", aws.ToString(event.ResourceType)).
			Str("status", string(event.ResourceStatus)).
			Msg("Stack event")
	}
}

type resourceFailure struct {
	logicalID string
	status    string
	reason    string
}

// failedEvents collects the most recent failed resource events, which name
// the actual culprit; the stack-level reason is usually just "resource
// creation cancelled".
func (d *Deployer) failedEvents(ctx context.Context, stackName string) []resourceFailure {
	out, err := d.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil
	}

	var failures []resourceFailure
	for _, event := range out.StackEvents {
		if len(failures) >= 10 {
			break
		}
		switch event.ResourceStatus {
		case types.ResourceStatusCreateFailed,
			types.ResourceStatusUpdateFailed,
			types.ResourceStatusDeleteFailed:
			failures = append(failures, resourceFailure{
				logicalID: aws.ToString(event.LogicalResourceId),
				status:    string(event.ResourceStatus),
				reason:    aws.ToString(event.ResourceStatusReason),
			})
		}
	}
	return failures
}

// describeStacksWithRetry backs off on throttled reads. Only reads retry;
// mutations go through once and CloudFormation owns the rest.
var retryBaseBackoff = time.Second

func describeStacksWithRetry(ctx context.Context, client CloudFormationAPI, input *cloudformation.DescribeStacksInput) (*cloudformation.DescribeStacksOutput, error) {
	backoff := retryBaseBackoff
	for attempt := 0; ; attempt++ {
		out, err := client.DescribeStacks(ctx, input)
		if err == nil || attempt >= 4 || !isThrottleError(err) {
			return out, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func isThrottleError(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return true
		}
	}
	return false
}
