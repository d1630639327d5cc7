package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/pangeo-forge/aws-bakery/internal/config"
	"github.com/pangeo-forge/aws-bakery/internal/stack"
)

func TestValidator_ValidateTemplate(t *testing.T) {
	validator, err := NewValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name             string
		template         string
		expectAllow      bool
		expectViolations []string
	}{
		{
			name: "task definition without log configuration",
			template: `{
				"Resources": {
					"TaskDefinition": {
						"Type": "AWS::ECS::TaskDefinition",
						"Properties": {
							"ContainerDefinitions": [
								{"Name": "agent", "Image": "prefecthq/prefect:0.14.22-python3.8"}
							]
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"container 'agent' in task definition 'TaskDefinition' has no log configuration",
			},
		},
		{
			name: "task definition with wrong log driver",
			template: `{
				"Resources": {
					"TaskDefinition": {
						"Type": "AWS::ECS::TaskDefinition",
						"Properties": {
							"ContainerDefinitions": [
								{
									"Name": "agent",
									"LogConfiguration": {"LogDriver": "json-file"}
								}
							]
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"container 'agent' in task definition 'TaskDefinition' must use the awslogs log driver",
			},
		},
		{
			name: "plaintext auth token",
			template: `{
				"Resources": {
					"TaskDefinition": {
						"Type": "AWS::ECS::TaskDefinition",
						"Properties": {
							"ContainerDefinitions": [
								{
									"Name": "agent",
									"LogConfiguration": {"LogDriver": "awslogs"},
									"Environment": [
										{"Name": "PREFECT__CLOUD__AGENT__AUTH_TOKEN", "Value": "pcs-secret"}
									]
								}
							]
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"container 'agent' in task definition 'TaskDefinition' passes PREFECT__CLOUD__AGENT__AUTH_TOKEN as plaintext environment",
			},
		},
		{
			name: "privileged container",
			template: `{
				"Resources": {
					"TaskDefinition": {
						"Type": "AWS::ECS::TaskDefinition",
						"Properties": {
							"ContainerDefinitions": [
								{
									"Name": "agent",
									"Privileged": true,
									"LogConfiguration": {"LogDriver": "awslogs"}
								}
							]
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"container 'agent' in task definition 'TaskDefinition' must not run privileged",
			},
		},
		{
			name: "security group open to the world on ssh",
			template: `{
				"Resources": {
					"BadGroup": {
						"Type": "AWS::EC2::SecurityGroup",
						"Properties": {
							"GroupDescription": "bad",
							"SecurityGroupIngress": [
								{"IpProtocol": "tcp", "FromPort": 22, "ToPort": 22, "CidrIp": "0.0.0.0/0"}
							]
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"security group 'BadGroup' opens ports 22-22 to 0.0.0.0/0",
			},
		},
		{
			name: "security group open on http only",
			template: `{
				"Resources": {
					"WebGroup": {
						"Type": "AWS::EC2::SecurityGroup",
						"Properties": {
							"GroupDescription": "web",
							"SecurityGroupIngress": [
								{"IpProtocol": "tcp", "FromPort": 80, "ToPort": 80, "CidrIp": "0.0.0.0/0"}
							]
						}
					}
				}
			}`,
			expectAllow:      true,
			expectViolations: nil,
		},
		{
			name: "security group restricted to another group",
			template: `{
				"Resources": {
					"AgentGroup": {
						"Type": "AWS::EC2::SecurityGroup",
						"Properties": {
							"GroupDescription": "agent",
							"SecurityGroupIngress": [
								{"IpProtocol": "tcp", "FromPort": 8080, "ToPort": 8080, "SourceSecurityGroupId": "sg-12345"}
							]
						}
					}
				}
			}`,
			expectAllow:      true,
			expectViolations: nil,
		},
		{
			name: "bucket without encryption or public access block",
			template: `{
				"Resources": {
					"Bucket": {
						"Type": "AWS::S3::Bucket",
						"Properties": {
							"BucketName": "open-bucket"
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"bucket 'Bucket' has no server-side encryption",
				"bucket 'Bucket' does not block all public access",
			},
		},
		{
			name: "bucket with partial public access block",
			template: `{
				"Resources": {
					"Bucket": {
						"Type": "AWS::S3::Bucket",
						"Properties": {
							"BucketName": "half-open-bucket",
							"BucketEncryption": {
								"ServerSideEncryptionConfiguration": [
									{"ServerSideEncryptionByDefault": {"SSEAlgorithm": "AES256"}}
								]
							},
							"PublicAccessBlockConfiguration": {
								"BlockPublicAcls": true,
								"BlockPublicPolicy": false,
								"IgnorePublicAcls": true,
								"RestrictPublicBuckets": true
							}
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"bucket 'Bucket' does not block all public access",
			},
		},
		{
			name: "multiple violations reported together",
			template: `{
				"Resources": {
					"Bucket": {
						"Type": "AWS::S3::Bucket",
						"Properties": {}
					},
					"BadGroup": {
						"Type": "AWS::EC2::SecurityGroup",
						"Properties": {
							"GroupDescription": "bad",
							"SecurityGroupIngress": [
								{"IpProtocol": "tcp", "FromPort": 443, "ToPort": 443, "CidrIp": "0.0.0.0/0"}
							]
						}
					}
				}
			}`,
			expectAllow: false,
			expectViolations: []string{
				"bucket 'Bucket' has no server-side encryption",
				"bucket 'Bucket' does not block all public access",
				"security group 'BadGroup' opens ports 443-443 to 0.0.0.0/0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateTemplate(context.Background(), tt.template)
			if err != nil {
				t.Fatalf("Validation failed with error: %v", err)
			}

			if result.Allowed != tt.expectAllow {
				t.Errorf("Expected allowed=%v, got allowed=%v. Violations: %v", tt.expectAllow, result.Allowed, result.Violations)
			}

			if tt.expectViolations == nil && len(result.Violations) > 0 {
				t.Errorf("Expected no violations, got: %v", result.Violations)
			}

			if tt.expectViolations != nil {
				violationMap := make(map[string]bool)
				for _, v := range result.Violations {
					violationMap[v] = true
				}
				for _, expected := range tt.expectViolations {
					if !violationMap[expected] {
						t.Errorf("Expected violation '%s' not found in %v", expected, result.Violations)
					}
				}
			}
		})
	}
}

// The synthesized template must always clear its own policy.
func TestValidator_SynthesizedTemplatePasses(t *testing.T) {
	validator, err := NewValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	cfg := &config.Config{
		Owner:                "pangeo-forge",
		Identifier:           "dev",
		Region:               "us-west-2",
		RunnerTokenSecretARN: "arn:aws:secretsmanager:us-west-2:111122223333:secret:bakery-token-AbCdEf",
		PrefectAuthToken:     "pcs-token",
		PrefectProject:       "pangeo-forge",
		AgentLabels:          []string{"aws", "dev"},
		BucketUserARN:        "arn:aws:iam::111122223333:user/bakery-flows",
		AgentCPU:             config.DefaultAgentCPU,
		AgentMemory:          config.DefaultAgentMemory,
		AgentImage:           config.DefaultAgentImage,
		AgentDesiredCount:    config.DefaultAgentDesiredCount,
		LogRetentionDays:     config.DefaultLogRetentionDays,
	}

	body, err := stack.Synthesize(cfg).JSON()
	if err != nil {
		t.Fatalf("Failed to synthesize template: %v", err)
	}

	result, err := validator.ValidateTemplate(context.Background(), body)
	if err != nil {
		t.Fatalf("Validation failed with error: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Synthesized template rejected: %v", result.Violations)
	}
}

func TestValidator_BadTemplateBody(t *testing.T) {
	validator, err := NewValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	_, err = validator.ValidateTemplate(context.Background(), "{not json")
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("Expected decode error, got %v", err)
	}
}
