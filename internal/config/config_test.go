package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pangeo-forge/aws-bakery/internal/errors"
)

func setCompleteEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvOwner, "pangeo-forge")
	t.Setenv(EnvIdentifier, "dev-west")
	t.Setenv(EnvRegion, "us-west-2")
	t.Setenv(EnvProfile, "bakery")
	t.Setenv(EnvRunnerTokenSecret, "arn:aws:secretsmanager:us-west-2:111122223333:secret:bakery-token-AbCdEf")
	t.Setenv(EnvPrefectAuthToken, "pcs-test-token")
	t.Setenv(EnvPrefectProject, "pangeo-forge")
	t.Setenv(EnvAgentLabels, `["aws","dev"]`)
	t.Setenv(EnvBucketUserARN, "arn:aws:iam::111122223333:user/bakery-flows")
	t.Setenv(EnvAgentCPU, "")
	t.Setenv(EnvAgentMemory, "")
	t.Setenv(EnvAgentImage, "")
	t.Setenv(EnvAgentDesiredCount, "")
	t.Setenv(EnvLogRetentionDays, "")
}

func TestFromEnv(t *testing.T) {
	setCompleteEnv(t)

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "pangeo-forge", c.Owner)
	assert.Equal(t, "dev-west", c.Identifier)
	assert.Equal(t, "us-west-2", c.Region)
	assert.Equal(t, "bakery", c.Profile)
	assert.Equal(t, []string{"aws", "dev"}, c.AgentLabels)

	assert.Equal(t, DefaultAgentCPU, c.AgentCPU)
	assert.Equal(t, DefaultAgentMemory, c.AgentMemory)
	assert.Equal(t, DefaultAgentImage, c.AgentImage)
	assert.Equal(t, DefaultAgentDesiredCount, c.AgentDesiredCount)

	assert.Equal(t, "pangeo-forge-bakery-dev-west", c.StackName())
	assert.Equal(t, "bakery-cluster-dev-west", c.ClusterName())
	assert.Equal(t, "bakery-agent-dev-west", c.ServiceName())
	assert.Equal(t, "pangeo-forge-bakery-flows-dev-west", c.FlowBucketName())
	assert.Equal(t, "/ecs/bakery-agent-dev-west", c.LogGroupName())
	assert.Equal(t, "/pangeo-forge/bakery/dev-west/", c.ParameterPrefix())
	assert.Equal(t, `["aws","dev"]`, c.LabelsJSON())

	tags := c.Tags()
	assert.Equal(t, "pangeo-forge", tags["Owner"])
	assert.Equal(t, "dev-west", tags["Identifier"])
	assert.Equal(t, "bakery", tags["ManagedBy"])
}

func TestFromEnvReportsAllMissingKeys(t *testing.T) {
	setCompleteEnv(t)
	t.Setenv(EnvOwner, "")
	t.Setenv(EnvRunnerTokenSecret, "")
	t.Setenv(EnvBucketUserARN, "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfigIncomplete)
	assert.Contains(t, err.Error(), EnvOwner)
	assert.Contains(t, err.Error(), EnvRunnerTokenSecret)
	assert.Contains(t, err.Error(), EnvBucketUserARN)
	assert.NotContains(t, err.Error(), EnvPrefectProject)
}

func TestFromEnvSizingOverrides(t *testing.T) {
	setCompleteEnv(t)
	t.Setenv(EnvAgentCPU, "1024")
	t.Setenv(EnvAgentMemory, "4096")
	t.Setenv(EnvAgentImage, "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent:v3")
	t.Setenv(EnvAgentDesiredCount, "2")
	t.Setenv(EnvLogRetentionDays, "14")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1024, c.AgentCPU)
	assert.Equal(t, 4096, c.AgentMemory)
	assert.Equal(t, "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent:v3", c.AgentImage)
	assert.Equal(t, 2, c.AgentDesiredCount)
	assert.Equal(t, 14, c.LogRetentionDays)
}

func TestFromEnvRejectsBadSizing(t *testing.T) {
	setCompleteEnv(t)
	t.Setenv(EnvAgentCPU, "lots")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAgentCPU)
}

func TestValidateIdentifierShape(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantErr    bool
	}{
		{name: "lowercase with hyphens", identifier: "dev-west-2", wantErr: false},
		{name: "uppercase rejected", identifier: "Dev", wantErr: true},
		{name: "leading hyphen rejected", identifier: "-dev", wantErr: true},
		{name: "underscore rejected", identifier: "dev_west", wantErr: true},
		{name: "too long rejected", identifier: "abcdefghijklmnopqrstuvwxyz-0123456789", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCompleteEnv(t)
			t.Setenv(EnvIdentifier, tt.identifier)

			_, err := FromEnv()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrConfigIncomplete)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "json list", raw: `["aws","dev"]`, want: []string{"aws", "dev"}},
		{name: "json list with spaces", raw: ` ["aws", "dev"] `, want: []string{"aws", "dev"}},
		{name: "comma list", raw: "aws,dev", want: []string{"aws", "dev"}},
		{name: "comma list with spaces", raw: " aws , dev ", want: []string{"aws", "dev"}},
		{name: "single label", raw: "aws", want: []string{"aws"}},
		{name: "empty", raw: "", want: nil},
		{name: "only commas", raw: ",,", want: nil},
		{name: "broken json", raw: `["aws"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabels(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDoesNotClobberEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "bakery.env")
	require.NoError(t, os.WriteFile(envFile, []byte("OWNER=file-owner\nPREFECT_PROJECT=file-project\n"), 0o644))

	setCompleteEnv(t)
	t.Setenv(EnvOwner, "env-owner")
	t.Setenv(EnvPrefectProject, "placeholder")
	os.Unsetenv(EnvPrefectProject)

	c, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "env-owner", c.Owner, "environment wins over file")
	assert.Equal(t, "file-project", c.PrefectProject, "file fills unset keys")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
}
