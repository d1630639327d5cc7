// Package prefect is a minimal GraphQL-over-HTTP client for the Prefect
// Cloud API: just the auth, project, and agent queries the bakery needs.
package prefect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pangeo-forge/aws-bakery/internal/errors"
)

// DefaultEndpoint is the Prefect Cloud GraphQL endpoint.
const DefaultEndpoint = "https://api.prefect.io"

type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithEndpoint points the client at a different API, e.g. a test server or
// a self-hosted Prefect Server.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(token string, opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

// query posts a GraphQL document and decodes the data payload into out.
// GraphQL-level errors come back as Go errors; callers never see partial
// data.
func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPrefectUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("prefect api returned status %d: %s", resp.StatusCode, string(data))
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return fmt.Errorf("prefect api error: %s", decoded.Errors[0].Message)
	}
	if len(decoded.Data) == 0 || bytes.Equal(decoded.Data, []byte("null")) {
		return fmt.Errorf("prefect api returned no data")
	}

	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

// TenantInfo identifies the tenant the auth token belongs to.
type TenantInfo struct {
	TenantID string `json:"tenant_id"`
}

// AuthInfo verifies the auth token by asking who it belongs to.
func (c *Client) AuthInfo(ctx context.Context) (*TenantInfo, error) {
	var data struct {
		AuthInfo TenantInfo `json:"auth_info"`
	}
	err := c.query(ctx, `query { auth_info { tenant_id } }`, nil, &data)
	if err != nil {
		return nil, err
	}
	if data.AuthInfo.TenantID == "" {
		return nil, fmt.Errorf("auth token resolved to no tenant")
	}
	return &data.AuthInfo, nil
}

// Project is a Prefect project flows register under.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectByName looks a project up by exact name.
func (c *Client) ProjectByName(ctx context.Context, name string) (*Project, error) {
	var data struct {
		Project []Project `json:"project"`
	}
	err := c.query(ctx, `query($name: String!) {
		project(where: { name: { _eq: $name } }) { id name }
	}`, map[string]interface{}{"name": name}, &data)
	if err != nil {
		return nil, err
	}
	if len(data.Project) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrProjectNotFound, name)
	}
	return &data.Project[0], nil
}

// CreateProject creates a project with the given name.
func (c *Client) CreateProject(ctx context.Context, name string) (*Project, error) {
	var data struct {
		CreateProject struct {
			ID string `json:"id"`
		} `json:"create_project"`
	}
	err := c.query(ctx, `mutation($name: String!) {
		create_project(input: { name: $name }) { id }
	}`, map[string]interface{}{"name": name}, &data)
	if err != nil {
		return nil, err
	}
	return &Project{ID: data.CreateProject.ID, Name: name}, nil
}

// Agent is a registered execution agent.
type Agent struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Labels      []string   `json:"labels"`
	LastQueried *time.Time `json:"last_queried"`
}

// Agents lists every agent registered with the tenant.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	var data struct {
		Agent []Agent `json:"agent"`
	}
	err := c.query(ctx, `query { agent { id name labels last_queried } }`, nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Agent, nil
}

// MatchAgent finds an agent serving every one of the wanted labels. Label
// routing is subset-based: an agent only picks up runs whose labels it
// carries in full.
func MatchAgent(agents []Agent, labels []string) (Agent, bool) {
	for _, agent := range agents {
		carried := map[string]bool{}
		for _, label := range agent.Labels {
			carried[label] = true
		}

		matched := true
		for _, label := range labels {
			if !carried[label] {
				matched = false
				break
			}
		}
		if matched {
			return agent, true
		}
	}
	return Agent{}, false
}
