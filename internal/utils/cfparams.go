package utils

import (
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// MergeParameters merges parameter maps, later maps winning, and returns the
// CloudFormation parameter list in stable key order.
func MergeParameters(pp ...map[string]string) []types.Parameter {
	m := map[string]string{}
	for _, p := range pp {
		maps.Copy(m, p)
	}

	var results []types.Parameter
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, types.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(m[k]),
		})
	}

	return results
}

// MergeTags merges tag maps, later maps winning, and returns the stack tag
// list in stable key order.
func MergeTags(tt ...map[string]string) []types.Tag {
	m := map[string]string{}
	for _, t := range tt {
		maps.Copy(m, t)
	}

	var results []types.Tag
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, types.Tag{
			Key:   aws.String(k),
			Value: aws.String(m[k]),
		})
	}

	return results
}
