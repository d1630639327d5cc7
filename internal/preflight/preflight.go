// Package preflight runs the named checks gating a deploy. Every check
// reports its own result so a broken environment surfaces all at once
// instead of one failure per attempt.
package preflight

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pangeo-forge/aws-bakery/internal/config"
	"github.com/pangeo-forge/aws-bakery/internal/errors"
	"github.com/pangeo-forge/aws-bakery/internal/policy"
	"github.com/pangeo-forge/aws-bakery/internal/prefect"
	"github.com/pangeo-forge/aws-bakery/internal/services"
	"github.com/pangeo-forge/aws-bakery/internal/stack"
)

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusWarn Status = "WARN"
	StatusSkip Status = "SKIP"
)

// Result is one named check's outcome.
type Result struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// TemplateValidator submits the synthesized template to CloudFormation.
type TemplateValidator interface {
	Validate(ctx context.Context) error
}

// PrefectAPI is the slice of the Prefect client preflight needs.
type PrefectAPI interface {
	AuthInfo(ctx context.Context) (*prefect.TenantInfo, error)
	ProjectByName(ctx context.Context, name string) (*prefect.Project, error)
}

// Runner executes the full preflight suite.
type Runner struct {
	cfg            *config.Config
	sts            *services.STSService
	secrets        *services.SecretsService
	iam            *services.IAMService
	ecr            *services.ECRService
	cloudformation TemplateValidator
	policy         *policy.Validator
	prefect        PrefectAPI

	// Offline skips the Prefect Cloud checks entirely; the SaaS being
	// down must not block infrastructure work.
	Offline bool
}

func NewRunner(
	cfg *config.Config,
	sts *services.STSService,
	secrets *services.SecretsService,
	iam *services.IAMService,
	ecr *services.ECRService,
	cloudformation TemplateValidator,
	validator *policy.Validator,
	prefectClient PrefectAPI,
) *Runner {
	return &Runner{
		cfg:            cfg,
		sts:            sts,
		secrets:        secrets,
		iam:            iam,
		ecr:            ecr,
		cloudformation: cloudformation,
		policy:         validator,
		prefect:        prefectClient,
	}
}

// Run executes every check and returns all results. A FAIL anywhere means
// the deploy should not proceed; see Passed.
func (r *Runner) Run(ctx context.Context) []Result {
	logger := zerolog.Ctx(ctx)

	results := []Result{
		r.checkEnvironment(),
		r.checkCallerIdentity(ctx),
		r.checkRunnerTokenSecret(ctx),
		r.checkBucketUser(ctx),
		r.checkAgentImage(ctx),
		r.checkTemplateValidation(ctx),
		r.checkTemplatePolicy(ctx),
	}
	results = append(results, r.checkPrefect(ctx)...)

	for _, result := range results {
		logger.Info().
			Str("check", result.Name).
			Str("status", string(result.Status)).
			Str("detail", result.Detail).
			Msg("Preflight check")
	}
	return results
}

// Passed reports whether no check failed. Warnings and skips pass.
func Passed(results []Result) bool {
	for _, result := range results {
		if result.Status == StatusFail {
			return false
		}
	}
	return true
}

func (r *Runner) checkEnvironment() Result {
	if err := r.cfg.Validate(); err != nil {
		return Result{Name: "environment", Status: StatusFail, Detail: err.Error()}
	}
	return Result{Name: "environment", Status: StatusPass, Detail: "all required keys present"}
}

func (r *Runner) checkCallerIdentity(ctx context.Context) Result {
	identity, err := r.sts.CallerIdentity(ctx)
	if err != nil {
		return Result{Name: "caller-identity", Status: StatusFail, Detail: err.Error()}
	}
	return Result{
		Name:   "caller-identity",
		Status: StatusPass,
		Detail: fmt.Sprintf("account %s as %s", identity.Account, identity.ARN),
	}
}

func (r *Runner) checkRunnerTokenSecret(ctx context.Context) Result {
	if err := r.secrets.CheckRunnerToken(ctx, r.cfg.RunnerTokenSecretARN); err != nil {
		return Result{Name: "runner-token-secret", Status: StatusFail, Detail: err.Error()}
	}
	return Result{
		Name:   "runner-token-secret",
		Status: StatusPass,
		Detail: "secret readable with a RUNNER_TOKEN field",
	}
}

func (r *Runner) checkBucketUser(ctx context.Context) Result {
	if err := r.iam.CheckBucketUser(ctx, r.cfg.BucketUserARN); err != nil {
		return Result{Name: "bucket-user", Status: StatusFail, Detail: err.Error()}
	}
	return Result{Name: "bucket-user", Status: StatusPass, Detail: r.cfg.BucketUserARN}
}

func (r *Runner) checkAgentImage(ctx context.Context) Result {
	checked, err := r.ecr.CheckImage(ctx, r.cfg.AgentImage)
	if err != nil {
		return Result{Name: "agent-image", Status: StatusFail, Detail: err.Error()}
	}
	if !checked {
		return Result{
			Name:   "agent-image",
			Status: StatusSkip,
			Detail: fmt.Sprintf("%s is not an ECR reference", r.cfg.AgentImage),
		}
	}
	return Result{Name: "agent-image", Status: StatusPass, Detail: r.cfg.AgentImage}
}

func (r *Runner) checkTemplateValidation(ctx context.Context) Result {
	if err := r.cloudformation.Validate(ctx); err != nil {
		return Result{Name: "template-validation", Status: StatusFail, Detail: err.Error()}
	}
	return Result{Name: "template-validation", Status: StatusPass}
}

func (r *Runner) checkTemplatePolicy(ctx context.Context) Result {
	body, err := stack.Synthesize(r.cfg).JSON()
	if err != nil {
		return Result{Name: "template-policy", Status: StatusFail, Detail: err.Error()}
	}

	validation, err := r.policy.ValidateTemplate(ctx, body)
	if err != nil {
		return Result{Name: "template-policy", Status: StatusFail, Detail: err.Error()}
	}
	if !validation.Allowed {
		return Result{
			Name:   "template-policy",
			Status: StatusFail,
			Detail: strings.Join(validation.Violations, "; "),
		}
	}
	return Result{Name: "template-policy", Status: StatusPass}
}

func (r *Runner) checkPrefect(ctx context.Context) []Result {
	if r.Offline {
		return []Result{
			{Name: "prefect-auth", Status: StatusSkip, Detail: "offline"},
			{Name: "prefect-project", Status: StatusSkip, Detail: "offline"},
		}
	}

	// Prefect calls get their own deadline so a hanging SaaS cannot stall
	// the whole preflight.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tenant, err := r.prefect.AuthInfo(ctx)
	if err != nil {
		return []Result{
			prefectResult("prefect-auth", err),
			{Name: "prefect-project", Status: StatusSkip, Detail: "auth check did not pass"},
		}
	}

	results := []Result{{
		Name:   "prefect-auth",
		Status: StatusPass,
		Detail: "tenant " + tenant.TenantID,
	}}

	project, err := r.prefect.ProjectByName(ctx, r.cfg.PrefectProject)
	if err != nil {
		results = append(results, prefectResult("prefect-project", err))
	} else {
		results = append(results, Result{
			Name:   "prefect-project",
			Status: StatusPass,
			Detail: fmt.Sprintf("%s (%s)", project.Name, project.ID),
		})
	}
	return results
}

// prefectResult degrades network-level failures to warnings; only the API
// actively rejecting the request fails the check.
func prefectResult(name string, err error) Result {
	if stderrors.Is(err, errors.ErrPrefectUnreachable) {
		return Result{Name: name, Status: StatusWarn, Detail: err.Error()}
	}
	return Result{Name: name, Status: StatusFail, Detail: err.Error()}
}
