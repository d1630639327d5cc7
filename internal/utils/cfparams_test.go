package utils

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

func TestMergeParameters(t *testing.T) {
	tests := []struct {
		name   string
		inputs []map[string]string
		want   []types.Parameter
	}{
		{
			name: "single map",
			inputs: []map[string]string{
				{"AgentImage": "prefecthq/prefect:0.14.22-python3.8", "AgentDesiredCount": "1"},
			},
			want: []types.Parameter{
				{ParameterKey: aws.String("AgentDesiredCount"), ParameterValue: aws.String("1")},
				{ParameterKey: aws.String("AgentImage"), ParameterValue: aws.String("prefecthq/prefect:0.14.22-python3.8")},
			},
		},
		{
			name: "override wins",
			inputs: []map[string]string{
				{"AgentImage": "prefecthq/prefect:0.14.22-python3.8", "AgentDesiredCount": "1"},
				{"AgentDesiredCount": "3"},
			},
			want: []types.Parameter{
				{ParameterKey: aws.String("AgentDesiredCount"), ParameterValue: aws.String("3")},
				{ParameterKey: aws.String("AgentImage"), ParameterValue: aws.String("prefecthq/prefect:0.14.22-python3.8")},
			},
		},
		{
			name:   "empty maps",
			inputs: []map[string]string{},
			want:   []types.Parameter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeParameters(tt.inputs...)

			if len(got) != len(tt.want) {
				t.Fatalf("MergeParameters() length = %v, want %v", len(got), len(tt.want))
			}
			for i := range got {
				if aws.ToString(got[i].ParameterKey) != aws.ToString(tt.want[i].ParameterKey) {
					t.Errorf("key[%d] = %v, want %v", i, aws.ToString(got[i].ParameterKey), aws.ToString(tt.want[i].ParameterKey))
				}
				if aws.ToString(got[i].ParameterValue) != aws.ToString(tt.want[i].ParameterValue) {
					t.Errorf("value[%d] = %v, want %v", i, aws.ToString(got[i].ParameterValue), aws.ToString(tt.want[i].ParameterValue))
				}
			}
		})
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags(
		map[string]string{"Owner": "pangeo-forge", "ManagedBy": "bakery"},
		map[string]string{"Identifier": "dev", "Owner": "someone-else"},
	)

	want := []struct {
		key   string
		value string
	}{
		{"Identifier", "dev"},
		{"ManagedBy", "bakery"},
		{"Owner", "someone-else"},
	}

	if len(got) != len(want) {
		t.Fatalf("MergeTags() length = %v, want %v", len(got), len(want))
	}
	for i, w := range want {
		if aws.ToString(got[i].Key) != w.key || aws.ToString(got[i].Value) != w.value {
			t.Errorf("tag[%d] = %v=%v, want %v=%v", i, aws.ToString(got[i].Key), aws.ToString(got[i].Value), w.key, w.value)
		}
	}
}
