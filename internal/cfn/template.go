// Package cfn is a minimal CloudFormation template model: enough structure
// to compose the bakery stack programmatically and render it deterministically.
package cfn

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

const FormatVersion = "2010-09-09"

// Template is a CloudFormation template document.
type Template struct {
	AWSTemplateFormatVersion string               `json:"AWSTemplateFormatVersion"`
	Description              string               `json:"Description,omitempty"`
	Parameters               map[string]Parameter `json:"Parameters,omitempty"`
	Resources                map[string]Resource  `json:"Resources"`
	Outputs                  map[string]Output    `json:"Outputs,omitempty"`
}

// Parameter declares a template parameter.
type Parameter struct {
	Type        string `json:"Type"`
	Default     string `json:"Default,omitempty"`
	Description string `json:"Description,omitempty"`
}

// Resource declares a single resource.
type Resource struct {
	Type           string                 `json:"Type"`
	Properties     map[string]interface{} `json:"Properties,omitempty"`
	DependsOn      []string               `json:"DependsOn,omitempty"`
	DeletionPolicy string                 `json:"DeletionPolicy,omitempty"`
}

// Output declares a stack output.
type Output struct {
	Description string      `json:"Description,omitempty"`
	Value       interface{} `json:"Value"`
}

// New returns an empty template.
func New(description string) *Template {
	return &Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              description,
		Parameters:               map[string]Parameter{},
		Resources:                map[string]Resource{},
		Outputs:                  map[string]Output{},
	}
}

// Add registers a resource under the given logical ID and returns the
// template for chaining. Reusing a logical ID is a programming error.
func (t *Template) Add(logicalID string, r Resource) *Template {
	if _, exists := t.Resources[logicalID]; exists {
		panic(fmt.Sprintf("duplicate logical id %s", logicalID))
	}
	t.Resources[logicalID] = r
	return t
}

// JSON renders the canonical template body. encoding/json emits map keys in
// sorted order, so the same template always renders to the same bytes.
func (t *Template) JSON() (string, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %w", err)
	}
	return string(data), nil
}

// YAML renders the template for human consumption (synth and diff output).
func (t *Template) YAML() (string, error) {
	body, err := t.JSON()
	if err != nil {
		return "", err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return "", fmt.Errorf("failed to decode template: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template yaml: %w", err)
	}
	return string(data), nil
}

// Hash fingerprints the canonical body. Deployment history records it so two
// deploys can be compared without storing full templates.
func (t *Template) Hash() (string, error) {
	body, err := t.JSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:]), nil
}

// LogicalIDs returns the resource logical IDs in sorted order.
func (t *Template) LogicalIDs() []string {
	ids := make([]string, 0, len(t.Resources))
	for id := range t.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
