package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed bakery.rego
var policyContent string

// Validator evaluates synthesized templates against the bakery guardrails.
type Validator struct {
	allow      rego.PreparedEvalQuery
	violations rego.PreparedEvalQuery
}

type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

func NewValidator() (*Validator, error) {
	ctx := context.Background()

	allow, err := rego.New(
		rego.Query("data.bakery.allow"),
		rego.Module("bakery.rego", policyContent),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	violations, err := rego.New(
		rego.Query("data.bakery.violations"),
		rego.Module("bakery.rego", policyContent),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare violations query: %w", err)
	}

	return &Validator{
		allow:      allow,
		violations: violations,
	}, nil
}

// ValidateTemplate evaluates a rendered JSON template body and returns the
// full set of violations when the template is rejected.
func (v *Validator) ValidateTemplate(ctx context.Context, body string) (*ValidationResult, error) {
	var template map[string]interface{}
	if err := json.Unmarshal([]byte(body), &template); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}

	input := map[string]interface{}{
		"Resources": template["Resources"],
	}

	results, err := v.allow.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned no results"},
		}, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned non-boolean result"},
		}, nil
	}

	result := &ValidationResult{Allowed: allowed}
	if !allowed {
		violations, err := v.getViolations(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get violations: %w", err)
		}
		result.Violations = violations
	}

	return result, nil
}

func (v *Validator) getViolations(ctx context.Context, input map[string]interface{}) ([]string, error) {
	results, err := v.violations.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate violations: %w", err)
	}

	if len(results) == 0 {
		return []string{"unknown policy violation"}, nil
	}

	var violations []string
	switch value := results[0].Expressions[0].Value.(type) {
	case []interface{}:
		for _, violation := range value {
			if s, ok := violation.(string); ok {
				violations = append(violations, s)
			}
		}
	case map[string]interface{}:
		// Rego sets can surface as objects
		for violation := range value {
			violations = append(violations, violation)
		}
	}
	sort.Strings(violations)

	if len(violations) == 0 {
		return []string{"policy validation failed but no specific violations found"}, nil
	}

	return violations, nil
}
