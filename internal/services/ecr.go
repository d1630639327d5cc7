package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/pangeo-forge/aws-bakery/internal/errors"
)

// ECRImageRef is a parsed private-registry image reference.
type ECRImageRef struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string
}

// ParseECRImage splits an image reference of the form
// <account>.dkr.ecr.<region>.amazonaws.com/<repo>[:tag][@digest].
// ok is false for references hosted anywhere else.
func ParseECRImage(image string) (ECRImageRef, bool) {
	host, rest, found := strings.Cut(image, "/")
	if !found || !strings.Contains(host, ".dkr.ecr.") || !strings.HasSuffix(host, ".amazonaws.com") {
		return ECRImageRef{}, false
	}

	ref := ECRImageRef{Registry: host, Repository: rest, Tag: "latest"}
	if repo, digest, found := strings.Cut(ref.Repository, "@"); found {
		ref.Repository = repo
		ref.Digest = digest
		ref.Tag = ""
	}
	// A reference may carry both a tag and a digest; the digest wins but the
	// tag still has to come off the repository name.
	if repo, tag, found := strings.Cut(ref.Repository, ":"); found {
		ref.Repository = repo
		if ref.Digest == "" {
			ref.Tag = tag
		}
	}

	if ref.Repository == "" {
		return ECRImageRef{}, false
	}
	return ref, true
}

type ECRAPI interface {
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

type ECRService struct {
	client ECRAPI
}

func NewECRService(client ECRAPI) *ECRService {
	return &ECRService{client: client}
}

// CheckImage verifies an ECR-hosted agent image exists before a deploy ties
// the service to it. checked is false for images on other registries, which
// are taken on faith.
func (s *ECRService) CheckImage(ctx context.Context, image string) (checked bool, err error) {
	ref, ok := ParseECRImage(image)
	if !ok {
		return false, nil
	}

	imageID := types.ImageIdentifier{}
	if ref.Digest != "" {
		imageID.ImageDigest = aws.String(ref.Digest)
	} else {
		imageID.ImageTag = aws.String(ref.Tag)
	}

	_, err = s.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(ref.Repository),
		ImageIds:       []types.ImageIdentifier{imageID},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ImageNotFoundException", "RepositoryNotFoundException":
				return true, fmt.Errorf("%w: %s", apperrors.ErrImageNotFound, image)
			}
		}
		return true, fmt.Errorf("failed to describe image %s: %w", image, err)
	}

	return true, nil
}
