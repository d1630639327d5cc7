package deploy

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/pangeo-forge/aws-bakery/internal/errors"
	"github.com/pangeo-forge/aws-bakery/internal/stack"
)

// Change is one pending resource change from a diff.
type Change struct {
	Action       string `json:"action"`
	LogicalID    string `json:"logical_id"`
	ResourceType string `json:"resource_type"`
	Replacement  string `json:"replacement,omitempty"`
}

// DiffResult is the pending change list for the stack. StackExists false
// means the whole template would be created.
type DiffResult struct {
	StackName   string   `json:"stack_name"`
	StackExists bool     `json:"stack_exists"`
	Changes     []Change `json:"changes"`
}

// Diff compares the synthesized template against the deployed stack via a
// throwaway change set. No changes is an empty list, not an error, and the
// change set is always cleaned up.
func (d *Deployer) Diff(ctx context.Context) (*DiffResult, error) {
	logger := zerolog.Ctx(ctx)
	stackName := d.cfg.StackName()

	tpl := stack.Synthesize(d.cfg)
	body, err := tpl.JSON()
	if err != nil {
		return nil, err
	}

	exists, err := d.stackExists(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if stack exists: %w", err)
	}

	result := &DiffResult{StackName: stackName, StackExists: exists}
	if !exists {
		for _, id := range tpl.LogicalIDs() {
			result.Changes = append(result.Changes, Change{
				Action:       "Add",
				LogicalID:    id,
				ResourceType: tpl.Resources[id].Type,
			})
		}
		return result, nil
	}

	changeSetName := "bakery-diff-" + ksuid.New().String()
	if _, err := d.client.CreateChangeSet(ctx, &cloudformation.CreateChangeSetInput{
		StackName:     aws.String(stackName),
		ChangeSetName: aws.String(changeSetName),
		ChangeSetType: types.ChangeSetTypeUpdate,
		TemplateBody:  aws.String(body),
		Parameters:    deployParameters(d.cfg),
		Capabilities: []types.Capability{
			types.CapabilityCapabilityIam,
			types.CapabilityCapabilityNamedIam,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to create change set: %w", err)
	}

	defer func() {
		if _, err := d.client.DeleteChangeSet(ctx, &cloudformation.DeleteChangeSetInput{
			StackName:     aws.String(stackName),
			ChangeSetName: aws.String(changeSetName),
		}); err != nil {
			logger.Warn().Err(err).Str("change_set", changeSetName).Msg("Failed to delete change set")
		}
	}()

	described, err := d.waitForChangeSet(ctx, stackName, changeSetName)
	if err != nil {
		if stderrors.Is(err, errors.ErrNoChanges) {
			return result, nil
		}
		return nil, err
	}

	for _, change := range described.Changes {
		if change.ResourceChange == nil {
			continue
		}
		rc := change.ResourceChange
		result.Changes = append(result.Changes, Change{
			Action:       string(rc.Action),
			LogicalID:    aws.ToString(rc.LogicalResourceId),
			ResourceType: aws.ToString(rc.ResourceType),
			Replacement:  string(rc.Replacement),
		})
	}
	return result, nil
}

func (d *Deployer) waitForChangeSet(ctx context.Context, stackName, changeSetName string) (*cloudformation.DescribeChangeSetOutput, error) {
	for {
		out, err := d.client.DescribeChangeSet(ctx, &cloudformation.DescribeChangeSetInput{
			StackName:     aws.String(stackName),
			ChangeSetName: aws.String(changeSetName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe change set %s: %w", changeSetName, err)
		}

		switch out.Status {
		case types.ChangeSetStatusCreateComplete:
			return out, nil
		case types.ChangeSetStatusFailed:
			reason := aws.ToString(out.StatusReason)
			if isNoChangesReason(reason) {
				return nil, errors.ErrNoChanges
			}
			return nil, fmt.Errorf("change set %s failed: %s", changeSetName, reason)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.PollInterval):
		}
	}
}

// CloudFormation reports an empty diff as a FAILED change set with one of
// these phrasings in the status reason.
func isNoChangesReason(reason string) bool {
	return strings.Contains(reason, "didn't contain changes") ||
		strings.Contains(reason, "No updates are to be performed")
}
