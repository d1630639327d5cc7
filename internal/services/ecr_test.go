package services

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pangeo-forge/aws-bakery/internal/errors"
)

func TestParseECRImage(t *testing.T) {
	tests := []struct {
		name  string
		image string
		want  ECRImageRef
		ok    bool
	}{
		{
			name:  "repository with tag",
			image: "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent:v1.2",
			want: ECRImageRef{
				Registry:   "111122223333.dkr.ecr.us-west-2.amazonaws.com",
				Repository: "bakery-agent",
				Tag:        "v1.2",
			},
			ok: true,
		},
		{
			name:  "repository without tag defaults to latest",
			image: "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent",
			want: ECRImageRef{
				Registry:   "111122223333.dkr.ecr.us-west-2.amazonaws.com",
				Repository: "bakery-agent",
				Tag:        "latest",
			},
			ok: true,
		},
		{
			name:  "digest reference",
			image: "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent@sha256:abc123",
			want: ECRImageRef{
				Registry:   "111122223333.dkr.ecr.us-west-2.amazonaws.com",
				Repository: "bakery-agent",
				Digest:     "sha256:abc123",
			},
			ok: true,
		},
		{
			name:  "tag and digest keeps repository clean",
			image: "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent:v1@sha256:deadbeef",
			want: ECRImageRef{
				Registry:   "111122223333.dkr.ecr.us-west-2.amazonaws.com",
				Repository: "bakery-agent",
				Digest:     "sha256:deadbeef",
			},
			ok: true,
		},
		{
			name:  "nested repository",
			image: "111122223333.dkr.ecr.eu-west-1.amazonaws.com/pangeo/agent:dev",
			want: ECRImageRef{
				Registry:   "111122223333.dkr.ecr.eu-west-1.amazonaws.com",
				Repository: "pangeo/agent",
				Tag:        "dev",
			},
			ok: true,
		},
		{
			name:  "docker hub image",
			image: "prefecthq/prefect:0.14.22-python3.8",
			ok:    false,
		},
		{
			name:  "bare image",
			image: "ubuntu",
			ok:    false,
		},
		{
			name:  "other registry",
			image: "ghcr.io/pangeo-forge/agent:latest",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ParseECRImage(tt.image)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, ref)
			}
		})
	}
}

type mockECRAPI struct {
	describeImagesFunc func(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

func (m *mockECRAPI) DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	if m.describeImagesFunc != nil {
		return m.describeImagesFunc(ctx, params, optFns...)
	}
	return &ecr.DescribeImagesOutput{}, nil
}

func TestCheckImageSkipsNonECR(t *testing.T) {
	service := NewECRService(&mockECRAPI{
		describeImagesFunc: func(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
			t.Fatal("non-ECR images must not reach the API")
			return nil, nil
		},
	})

	checked, err := service.CheckImage(context.Background(), "prefecthq/prefect:0.14.22-python3.8")
	require.NoError(t, err)
	assert.False(t, checked)
}

func TestCheckImageFound(t *testing.T) {
	var described *ecr.DescribeImagesInput
	service := NewECRService(&mockECRAPI{
		describeImagesFunc: func(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
			described = params
			return &ecr.DescribeImagesOutput{}, nil
		},
	})

	checked, err := service.CheckImage(context.Background(), "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent:v1")
	require.NoError(t, err)
	assert.True(t, checked)
	require.NotNil(t, described)
	assert.Equal(t, "bakery-agent", aws.ToString(described.RepositoryName))
	require.Len(t, described.ImageIds, 1)
	assert.Equal(t, "v1", aws.ToString(described.ImageIds[0].ImageTag))
}

func TestCheckImageMissing(t *testing.T) {
	service := NewECRService(&mockECRAPI{
		describeImagesFunc: func(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "ImageNotFoundException", Message: "image not found"}
		},
	})

	checked, err := service.CheckImage(context.Background(), "111122223333.dkr.ecr.us-west-2.amazonaws.com/bakery-agent:gone")
	assert.True(t, checked)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrImageNotFound))
}
