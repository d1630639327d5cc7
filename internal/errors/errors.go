package errors

import "errors"

var (
	ErrConfigIncomplete   = errors.New("bakery config is missing required keys")
	ErrStackNotFound      = errors.New("stack not found")
	ErrStackNotDeployed   = errors.New("stack has not been deployed")
	ErrNoChanges          = errors.New("no changes to deploy")
	ErrSecretFieldMissing = errors.New("secret does not contain a RUNNER_TOKEN field")
	ErrImageNotFound      = errors.New("agent image not found in ECR")
	ErrPolicyViolation    = errors.New("template violates bakery policy")
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrProjectNotFound    = errors.New("prefect project not found")
	ErrPrefectUnreachable = errors.New("prefect api unreachable")
)
