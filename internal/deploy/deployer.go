// Package deploy drives the bakery stack through its CloudFormation
// lifecycle. The tool adds no rollback logic of its own: CloudFormation
// owns failure recovery, and this package only classifies terminal states
// and surfaces the failing resource events.
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
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/pangeo-forge/aws-bakery/internal/config"
	"github.com/pangeo-forge/aws-bakery/internal/dao/historydao"
	"github.com/pangeo-forge/aws-bakery/internal/errors"
	"github.com/pangeo-forge/aws-bakery/internal/services"
	"github.com/pangeo-forge/aws-bakery/internal/stack"
	"github.com/pangeo-forge/aws-bakery/internal/utils"
)

type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
	CreateChangeSet(ctx context.Context, params *cloudformation.CreateChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateChangeSetOutput, error)
	DescribeChangeSet(ctx context.Context, params *cloudformation.DescribeChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeChangeSetOutput, error)
	DeleteChangeSet(ctx context.Context, params *cloudformation.DeleteChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteChangeSetOutput, error)
	ValidateTemplate(ctx context.Context, params *cloudformation.ValidateTemplateInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ValidateTemplateOutput, error)
}

// Deployer coordinates the bakery lifecycle verbs against a single stack.
type Deployer struct {
	cfg     *config.Config
	client  CloudFormationAPI
	storage *services.StorageService
	params  *services.ParameterStoreService
	history *historydao.DAO

	// PollInterval spaces the status polls while waiting on a stack or
	// change set. Tests shrink it.
	PollInterval time.Duration
}

func New(
	cfg *config.Config,
	client CloudFormationAPI,
	storage *services.StorageService,
	params *services.ParameterStoreService,
	history *historydao.DAO,
) *Deployer {
	return &Deployer{
		cfg:          cfg,
		client:       client,
		storage:      storage,
		params:       params,
		history:      history,
		PollInterval: 5 * time.Second,
	}
}

// Result describes a finished deploy or destroy.
type Result struct {
	StackName    string            `json:"stack_name"`
	StackID      string            `json:"stack_id,omitempty"`
	Operation    string            `json:"operation"`
	Status       string            `json:"status"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	TemplateHash string            `json:"template_hash,omitempty"`
	NoChanges    bool              `json:"no_changes,omitempty"`
}

// Deploy synthesizes the template and creates or updates the stack,
// waiting for a terminal status. "No updates are to be performed" counts
// as success. On success the outputs are exported to Parameter Store and
// the deployment is recorded; a failed history write never fails the verb.
func (d *Deployer) Deploy(ctx context.Context) (result *Result, err error) {
	logger := zerolog.Ctx(ctx)
	stackName := d.cfg.StackName()
	started := time.Now()

	defer func(begin time.Time) {
		logger.Info().
			Err(err).
			Str("stack_name", stackName).
			Dur("elapsed", time.Since(begin)).
			Msg("Deploy completed")
	}(started)

	tpl := stack.Synthesize(d.cfg)
	body, err := tpl.JSON()
	if err != nil {
		return nil, err
	}
	hash, err := tpl.Hash()
	if err != nil {
		return nil, err
	}

	exists, err := d.stackExists(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if stack exists: %w", err)
	}

	parameters := deployParameters(d.cfg)
	tags := utils.MergeTags(d.cfg.Tags())

	result = &Result{StackName: stackName, TemplateHash: hash}
	if exists {
		result.Operation = historydao.OperationUpdate
		err = d.updateStack(ctx, result, stackName, body, parameters, tags)
	} else {
		result.Operation = historydao.OperationCreate
		err = d.createStack(ctx, result, stackName, body, parameters, tags)
	}
	if err != nil {
		d.record(ctx, historydao.VerbDeploy, result, started, err)
		return nil, err
	}

	if result.NoChanges {
		logger.Info().Str("stack_name", stackName).Msg("No updates needed for stack")
		result.Status = string(types.StackStatusUpdateComplete)
	} else {
		status, waitErr := d.waitForStack(ctx, stackName, deployTerminal)
		result.Status = string(status)
		if waitErr != nil {
			d.record(ctx, historydao.VerbDeploy, result, started, waitErr)
			return nil, waitErr
		}
	}

	outputs, err := d.Outputs(ctx)
	if err != nil {
		return nil, err
	}
	result.Outputs = outputs

	if err := d.params.ExportOutputs(ctx, d.cfg.ParameterPrefix(), outputs); err != nil {
		return nil, err
	}

	d.record(ctx, historydao.VerbDeploy, result, started, nil)
	return result, nil
}

// Destroy empties the flow bucket, deletes the stack, and waits until the
// stack is gone. A stack that never existed is a clean no-op. With
// retainStorage the bucket keeps its objects, and stack deletion is
// expected to fail if any remain; that failure belongs to CloudFormation.
func (d *Deployer) Destroy(ctx context.Context, retainStorage bool) (result *Result, err error) {
	logger := zerolog.Ctx(ctx)
	stackName := d.cfg.StackName()
	started := time.Now()

	defer func(begin time.Time) {
		logger.Info().
			Err(err).
			Str("stack_name", stackName).
			Dur("elapsed", time.Since(begin)).
			Msg("Destroy completed")
	}(started)

	exists, err := d.stackExists(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if stack exists: %w", err)
	}

	result = &Result{StackName: stackName, Operation: historydao.OperationDelete}
	if !exists {
		logger.Info().Str("stack_name", stackName).Msg("Stack does not exist, nothing to destroy")
		result.Status = string(types.StackStatusDeleteComplete)
		result.NoChanges = true
		return result, nil
	}

	if !retainStorage {
		deleted, err := d.storage.EmptyBucket(ctx, d.cfg.FlowBucketName())
		if err != nil {
			return nil, fmt.Errorf("failed to empty flow bucket: %w", err)
		}
		logger.Info().
			Str("bucket", d.cfg.FlowBucketName()).
			Int("deleted", deleted).
			Msg("Flow bucket emptied")
	}

	if _, err := d.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	}); err != nil {
		return nil, fmt.Errorf("failed to delete stack %s: %w", stackName, err)
	}

	status, waitErr := d.waitForStack(ctx, stackName, destroyTerminal)
	result.Status = string(status)
	if waitErr != nil {
		d.record(ctx, historydao.VerbDestroy, result, started, waitErr)
		return nil, waitErr
	}

	if _, err := d.params.DeleteOutputs(ctx, d.cfg.ParameterPrefix()); err != nil {
		logger.Warn().Err(err).Msg("Failed to delete exported parameters")
	}

	d.record(ctx, historydao.VerbDestroy, result, started, nil)
	return result, nil
}

// Outputs returns the deployed stack's outputs keyed by output name.
func (d *Deployer) Outputs(ctx context.Context) (map[string]string, error) {
	stackName := d.cfg.StackName()

	described, err := d.describeStack(ctx, stackName)
	if err != nil {
		return nil, err
	}

	outputs := map[string]string{}
	for _, output := range described.Outputs {
		outputs[aws.ToString(output.OutputKey)] = aws.ToString(output.OutputValue)
	}
	return outputs, nil
}

// StackStatus is the deployed stack's state for the status verb.
type StackStatus struct {
	StackName    string     `json:"stack_name"`
	Status       string     `json:"status"`
	StatusReason string     `json:"status_reason,omitempty"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
}

func (d *Deployer) Status(ctx context.Context) (*StackStatus, error) {
	stackName := d.cfg.StackName()

	described, err := d.describeStack(ctx, stackName)
	if err != nil {
		return nil, err
	}

	status := &StackStatus{
		StackName:    stackName,
		Status:       string(described.StackStatus),
		StatusReason: aws.ToString(described.StackStatusReason),
	}
	if described.LastUpdatedTime != nil {
		status.LastUpdated = described.LastUpdatedTime
	} else if described.CreationTime != nil {
		status.LastUpdated = described.CreationTime
	}
	return status, nil
}

// Validate submits the synthesized template to CloudFormation's
// ValidateTemplate API.
func (d *Deployer) Validate(ctx context.Context) error {
	body, err := stack.Synthesize(d.cfg).JSON()
	if err != nil {
		return err
	}

	if _, err := d.client.ValidateTemplate(ctx, &cloudformation.ValidateTemplateInput{
		TemplateBody: aws.String(body),
	}); err != nil {
		return fmt.Errorf("template validation failed: %w", err)
	}
	return nil
}

func (d *Deployer) createStack(
	ctx context.Context,
	result *Result,
	stackName, body string,
	parameters []types.Parameter,
	tags []types.Tag,
) error {
	out, err := d.client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(body),
		Parameters:   parameters,
		Capabilities: []types.Capability{
			types.CapabilityCapabilityIam,
			types.CapabilityCapabilityNamedIam,
		},
		Tags: tags,
	})
	if err != nil {
		return fmt.Errorf("failed to create stack %s: %w", stackName, err)
	}
	result.StackID = aws.ToString(out.StackId)
	return nil
}

func (d *Deployer) updateStack(
	ctx context.Context,
	result *Result,
	stackName, body string,
	parameters []types.Parameter,
	tags []types.Tag,
) error {
	out, err := d.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(body),
		Parameters:   parameters,
		Capabilities: []types.Capability{
			types.CapabilityCapabilityIam,
			types.CapabilityCapabilityNamedIam,
		},
		Tags: tags,
	})
	if err != nil {
		if isNoUpdatesError(err) {
			result.StackID = stackName
			result.NoChanges = true
			return nil
		}
		return fmt.Errorf("failed to update stack %s: %w", stackName, err)
	}
	result.StackID = aws.ToString(out.StackId)
	return nil
}

func (d *Deployer) stackExists(ctx context.Context, stackName string) (bool, error) {
	_, err := d.describeStack(ctx, stackName)
	if err != nil {
		if stderrors.Is(err, errors.ErrStackNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Deployer) describeStack(ctx context.Context, stackName string) (*types.Stack, error) {
	out, err := describeStacksWithRetry(ctx, d.client, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissingError(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrStackNotFound, stackName)
		}
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrStackNotFound, stackName)
	}

	// DELETE_COMPLETE stacks still describe by ID; by name they disappear,
	// but guard anyway so destroy polling converges.
	if out.Stacks[0].StackStatus == types.StackStatusDeleteComplete {
		return nil, fmt.Errorf("%w: %s", errors.ErrStackNotFound, stackName)
	}
	return &out.Stacks[0], nil
}

// record writes the audit record. Best effort: the lifecycle verb already
// succeeded or failed on its own merits.
func (d *Deployer) record(ctx context.Context, verb string, result *Result, started time.Time, opErr error) {
	if d.history == nil {
		return
	}

	input := historydao.RecordInput{
		Identifier:   d.cfg.Identifier,
		Verb:         verb,
		StackName:    result.StackName,
		Operation:    result.Operation,
		Status:       result.Status,
		TemplateHash: result.TemplateHash,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}
	if opErr != nil {
		input.Error = opErr.Error()
	}

	if _, err := d.history.Record(ctx, input); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to record deployment history")
	}
}

func deployParameters(cfg *config.Config) []types.Parameter {
	return utils.MergeParameters(stack.Parameters(cfg))
}

func isNoUpdatesError(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "No updates")
	}
	return false
}

func isStackMissingError(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}
