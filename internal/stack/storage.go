package stack

import (
	"github.com/pangeo-forge/aws-bakery/internal/cfn"
	"github.com/pangeo-forge/aws-bakery/internal/config"
)

// cacheExpirationDays bounds how long intermediate cache/ objects from flow
// runs survive in the bucket.
const cacheExpirationDays = 30

// addFlowStorage declares the flow storage bucket and the policy granting
// the external bucket user access to it. The agent task role gets the same
// access through AgentPermissions.
func addFlowStorage(t *cfn.Template, cfg *config.Config) {
	t.Add("FlowBucket", cfn.Resource{
		Type: "AWS::S3::Bucket",
		Properties: map[string]interface{}{
			"BucketName": cfg.FlowBucketName(),
			"BucketEncryption": map[string]interface{}{
				"ServerSideEncryptionConfiguration": []map[string]interface{}{
					{
						"ServerSideEncryptionByDefault": map[string]interface{}{
							"SSEAlgorithm": "AES256",
						},
					},
				},
			},
			"PublicAccessBlockConfiguration": map[string]interface{}{
				"BlockPublicAcls":       true,
				"BlockPublicPolicy":     true,
				"IgnorePublicAcls":      true,
				"RestrictPublicBuckets": true,
			},
			"LifecycleConfiguration": map[string]interface{}{
				"Rules": []map[string]interface{}{
					{
						"Id":               "expire-cache",
						"Prefix":           "cache/",
						"Status":           "Enabled",
						"ExpirationInDays": cacheExpirationDays,
					},
				},
			},
		},
	})

	t.Add("FlowBucketPolicy", cfn.Resource{
		Type: "AWS::S3::BucketPolicy",
		Properties: map[string]interface{}{
			"Bucket": cfn.Ref("FlowBucket"),
			"PolicyDocument": map[string]interface{}{
				"Version": "2012-10-17",
				"Statement": []map[string]interface{}{
					{
						"Sid":    "FlowUserObjectAccess",
						"Effect": "Allow",
						"Principal": map[string]interface{}{
							"AWS": cfg.BucketUserARN,
						},
						"Action": []string{
							"s3:GetObject",
							"s3:PutObject",
							"s3:DeleteObject",
						},
						"Resource": cfn.Join("", "arn:aws:s3:::", cfn.Ref("FlowBucket"), "/*"),
					},
					{
						"Sid":    "FlowUserBucketAccess",
						"Effect": "Allow",
						"Principal": map[string]interface{}{
							"AWS": cfg.BucketUserARN,
						},
						"Action": []string{
							"s3:ListBucket",
							"s3:GetBucketLocation",
						},
						"Resource": cfn.Join("", "arn:aws:s3:::", cfn.Ref("FlowBucket")),
					},
				},
			},
		},
	})
}
