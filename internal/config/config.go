package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pangeo-forge/aws-bakery/internal/errors"
)

// Environment keys that make up the bakery contract. A deployment is driven
// entirely by these values, typically sourced from a .env file.
const (
	EnvOwner             = "OWNER"
	EnvIdentifier        = "IDENTIFIER"
	EnvRegion            = "AWS_DEFAULT_REGION"
	EnvProfile           = "AWS_DEFAULT_PROFILE"
	EnvRunnerTokenSecret = "RUNNER_TOKEN_SECRET_ARN"
	EnvPrefectAuthToken  = "PREFECT__CLOUD__AUTH_TOKEN"
	EnvPrefectProject    = "PREFECT_PROJECT"
	EnvAgentLabels       = "PREFECT_AGENT_LABELS"
	EnvBucketUserARN     = "BUCKET_USER_ARN"

	EnvAgentCPU          = "BAKERY_AGENT_CPU"
	EnvAgentMemory       = "BAKERY_AGENT_MEMORY"
	EnvAgentImage        = "BAKERY_AGENT_IMAGE"
	EnvAgentDesiredCount = "BAKERY_AGENT_DESIRED_COUNT"
	EnvLogRetentionDays  = "BAKERY_LOG_RETENTION_DAYS"
)

// Task sizing defaults match what the bakery has always shipped with.
const (
	DefaultAgentCPU          = 512
	DefaultAgentMemory       = 2048
	DefaultAgentImage        = "prefecthq/prefect:0.14.22-python3.8"
	DefaultAgentDesiredCount = 1
	DefaultLogRetentionDays  = 30
)

// maxIdentifierLength keeps derived bucket names inside the S3 63-char limit.
const maxIdentifierLength = 32

var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Config carries everything needed to synthesize and drive a bakery stack.
type Config struct {
	Owner                string
	Identifier           string
	Region               string
	Profile              string
	RunnerTokenSecretARN string
	PrefectAuthToken     string
	PrefectProject       string
	AgentLabels          []string
	BucketUserARN        string

	AgentCPU          int
	AgentMemory       int
	AgentImage        string
	AgentDesiredCount int
	LogRetentionDays  int
}

// Load reads the env file (when present), then builds a Config from the
// process environment. Variables already set in the environment win over the
// file. An explicit envFile that does not exist is an error; the default
// .env is optional.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from the current process environment and validates
// it. Validation reports every problem at once rather than the first.
func FromEnv() (*Config, error) {
	labels, err := ParseLabels(os.Getenv(EnvAgentLabels))
	if err != nil {
		return nil, err
	}

	c := &Config{
		Owner:                os.Getenv(EnvOwner),
		Identifier:           os.Getenv(EnvIdentifier),
		Region:               os.Getenv(EnvRegion),
		Profile:              os.Getenv(EnvProfile),
		RunnerTokenSecretARN: os.Getenv(EnvRunnerTokenSecret),
		PrefectAuthToken:     os.Getenv(EnvPrefectAuthToken),
		PrefectProject:       os.Getenv(EnvPrefectProject),
		AgentLabels:          labels,
		BucketUserARN:        os.Getenv(EnvBucketUserARN),
		AgentCPU:             DefaultAgentCPU,
		AgentMemory:          DefaultAgentMemory,
		AgentImage:           DefaultAgentImage,
		AgentDesiredCount:    DefaultAgentDesiredCount,
		LogRetentionDays:     DefaultLogRetentionDays,
	}

	if v := os.Getenv(EnvAgentImage); v != "" {
		c.AgentImage = v
	}
	for _, override := range []struct {
		key    string
		target *int
	}{
		{EnvAgentCPU, &c.AgentCPU},
		{EnvAgentMemory, &c.AgentMemory},
		{EnvAgentDesiredCount, &c.AgentDesiredCount},
		{EnvLogRetentionDays, &c.LogRetentionDays},
	} {
		v := os.Getenv(override.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", override.key, v, err)
		}
		*override.target = n
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the required contract. All problems are reported in a
// single error so a broken .env can be fixed in one pass.
func (c *Config) Validate() error {
	var problems []string
	for _, field := range []struct {
		key   string
		value string
	}{
		{EnvOwner, c.Owner},
		{EnvIdentifier, c.Identifier},
		{EnvRegion, c.Region},
		{EnvRunnerTokenSecret, c.RunnerTokenSecretARN},
		{EnvPrefectAuthToken, c.PrefectAuthToken},
		{EnvPrefectProject, c.PrefectProject},
		{EnvBucketUserARN, c.BucketUserARN},
	} {
		if strings.TrimSpace(field.value) == "" {
			problems = append(problems, fmt.Sprintf("%s is not set", field.key))
		}
	}
	if len(c.AgentLabels) == 0 {
		problems = append(problems, fmt.Sprintf("%s is not set", EnvAgentLabels))
	}

	if c.Identifier != "" {
		if !identifierPattern.MatchString(c.Identifier) {
			problems = append(problems, fmt.Sprintf("%s must be lowercase alphanumeric with hyphens", EnvIdentifier))
		}
		if len(c.Identifier) > maxIdentifierLength {
			problems = append(problems, fmt.Sprintf("%s must be at most %d characters", EnvIdentifier, maxIdentifierLength))
		}
	}

	if c.AgentCPU <= 0 || c.AgentMemory <= 0 {
		problems = append(problems, "agent cpu and memory must be positive")
	}
	if c.AgentDesiredCount < 0 {
		problems = append(problems, "agent desired count must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrConfigIncomplete, strings.Join(problems, "; "))
	}
	return nil
}

// ParseLabels accepts the canonical JSON list form (["aws","dev"]) or a bare
// comma-separated list and normalizes to a slice.
func ParseLabels(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var labels []string
		if err := json.Unmarshal([]byte(raw), &labels); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvAgentLabels, raw, err)
		}
		return labels, nil
	}

	var labels []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			labels = append(labels, part)
		}
	}
	return labels, nil
}

// LabelsJSON renders the agent labels in the form the agent container
// expects in PREFECT__CLOUD__AGENT__LABELS.
func (c *Config) LabelsJSON() string {
	data, _ := json.Marshal(c.AgentLabels)
	return string(data)
}

// StackName is the CloudFormation stack the bakery deploys to.
func (c *Config) StackName() string {
	return "pangeo-forge-bakery-" + c.Identifier
}

// ClusterName is the ECS cluster hosting the agent service.
func (c *Config) ClusterName() string {
	return "bakery-cluster-" + c.Identifier
}

// ServiceName doubles as the Fargate task family.
func (c *Config) ServiceName() string {
	return "bakery-agent-" + c.Identifier
}

// FlowBucketName is the S3 bucket flows are registered into.
func (c *Config) FlowBucketName() string {
	return "pangeo-forge-bakery-flows-" + c.Identifier
}

// LogGroupName is the CloudWatch log group the agent container writes to.
func (c *Config) LogGroupName() string {
	return "/ecs/bakery-agent-" + c.Identifier
}

// ParameterPrefix scopes the Parameter Store export of stack outputs.
func (c *Config) ParameterPrefix() string {
	return "/pangeo-forge/bakery/" + c.Identifier + "/"
}

// Tags returns the tag set applied to the stack and propagated to resources.
func (c *Config) Tags() map[string]string {
	return map[string]string{
		"Owner":      c.Owner,
		"Identifier": c.Identifier,
		"ManagedBy":  "bakery",
	}
}
