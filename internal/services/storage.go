package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

type StorageAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type StorageService struct {
	client StorageAPI
}

func NewStorageService(client StorageAPI) *StorageService {
	return &StorageService{client: client}
}

// EmptyBucket deletes every object so CloudFormation can remove the bucket.
// A bucket that no longer exists counts as already empty; destroy has to
// cope with half-created stacks.
func (s *StorageService) EmptyBucket(ctx context.Context, bucket string) (deleted int, err error) {
	logger := zerolog.Ctx(ctx)

	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
				logger.Info().Str("bucket", bucket).Msg("Bucket does not exist, nothing to empty")
				return deleted, nil
			}
			return deleted, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
		}

		if len(page.Contents) > 0 {
			objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
			}

			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return deleted, fmt.Errorf("failed to delete objects from %s: %w", bucket, err)
			}
			if len(out.Errors) > 0 {
				first := out.Errors[0]
				return deleted, fmt.Errorf("failed to delete %s from %s: %s",
					aws.ToString(first.Key), bucket, aws.ToString(first.Message))
			}
			deleted += len(objects)
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	if deleted > 0 {
		logger.Info().Str("bucket", bucket).Int("deleted", deleted).Msg("Emptied bucket")
	}
	return deleted, nil
}
