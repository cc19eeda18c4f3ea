package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kode4food/cadence/pkg/api"
)

// Client talks to the workflow engine's HTTP API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var (
	ErrRegisterWorkflow = errors.New("failed to register workflow")
	ErrGetWorkflow      = errors.New("failed to get workflow")
	ErrListWorkflows    = errors.New("failed to list workflows")
	ErrDeleteWorkflow   = errors.New("failed to delete workflow")
	ErrRunWorkflow      = errors.New("failed to run workflow")
	ErrGetRun           = errors.New("failed to get run")
	ErrListRuns         = errors.New("failed to list runs")
	ErrListApprovals    = errors.New("failed to list approvals")
	ErrApprove          = errors.New("failed to approve step")
	ErrReject           = errors.New("failed to reject step")
	ErrListCapabilities = errors.New("failed to list capabilities")
)

const (
	DefaultEngineURL = "http://localhost:8080"

	routeWorkflow   = "/engine/workflow"
	routeRun        = "/engine/run"
	routeApproval   = "/engine/approval"
	routeCapability = "/engine/capability"
)

// NewClient creates a client for the engine at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RegisterWorkflow stores a workflow definition with the engine
func (c *Client) RegisterWorkflow(
	ctx context.Context, def *api.WorkflowDefinition,
) (*api.WorkflowDefinition, error) {
	var res api.WorkflowDefinition
	err := c.do(ctx, http.MethodPost, c.url(routeWorkflow), def, &res,
		ErrRegisterWorkflow)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListWorkflows returns all stored workflow definitions
func (c *Client) ListWorkflows(
	ctx context.Context,
) (*api.WorkflowsListResponse, error) {
	var res api.WorkflowsListResponse
	err := c.do(ctx, http.MethodGet, c.url(routeWorkflow), nil, &res,
		ErrListWorkflows)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetWorkflow fetches a stored workflow definition
func (c *Client) GetWorkflow(
	ctx context.Context, id api.WorkflowID,
) (*api.WorkflowDefinition, error) {
	var res api.WorkflowDefinition
	err := c.do(ctx, http.MethodGet, c.url("%s/%s", routeWorkflow, id),
		nil, &res, ErrGetWorkflow)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteWorkflow removes a stored workflow definition
func (c *Client) DeleteWorkflow(ctx context.Context, id api.WorkflowID) error {
	return c.do(ctx, http.MethodDelete, c.url("%s/%s", routeWorkflow, id),
		nil, nil, ErrDeleteWorkflow)
}

// Run executes a stored workflow. When async is false the response carries
// the completed result
func (c *Client) Run(
	ctx context.Context, id api.WorkflowID, inputs api.Args, async bool,
) (*api.ExecuteResponse, error) {
	req := &api.ExecuteRequest{Inputs: inputs, Async: async}
	var res api.ExecuteResponse
	err := c.do(ctx, http.MethodPost, c.url("%s/%s/run", routeWorkflow, id),
		req, &res, ErrRunWorkflow)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetRun fetches a recorded run result
func (c *Client) GetRun(
	ctx context.Context, id api.RunID,
) (*api.WorkflowResult, error) {
	var res api.WorkflowResult
	err := c.do(ctx, http.MethodGet, c.url("%s/%s", routeRun, id),
		nil, &res, ErrGetRun)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListRuns returns the recent results recorded for a workflow
func (c *Client) ListRuns(
	ctx context.Context, id api.WorkflowID,
) (*api.RunsListResponse, error) {
	var res api.RunsListResponse
	err := c.do(ctx, http.MethodGet, c.url("%s/%s/run", routeWorkflow, id),
		nil, &res, ErrListRuns)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListApprovals returns the gates waiting for a decision
func (c *Client) ListApprovals(
	ctx context.Context,
) (*api.ApprovalsListResponse, error) {
	var res api.ApprovalsListResponse
	err := c.do(ctx, http.MethodGet, c.url(routeApproval), nil, &res,
		ErrListApprovals)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Approve records an approval against a pending gate
func (c *Client) Approve(
	ctx context.Context, runID api.RunID, stepID api.StepID,
	approver api.ApproverID,
) error {
	return c.do(ctx, http.MethodPost,
		c.url("%s/%s/%s/approve", routeApproval, runID, stepID),
		&api.ApproveRequest{Approver: approver}, nil, ErrApprove)
}

// Reject rejects a pending gate
func (c *Client) Reject(
	ctx context.Context, runID api.RunID, stepID api.StepID, reason string,
) error {
	return c.do(ctx, http.MethodPost,
		c.url("%s/%s/%s/reject", routeApproval, runID, stepID),
		&api.RejectRequest{Reason: reason}, nil, ErrReject)
}

// ListCapabilities returns the names of the engine's capabilities
func (c *Client) ListCapabilities(
	ctx context.Context,
) (*api.CapabilitiesListResponse, error) {
	var res api.CapabilitiesListResponse
	err := c.do(ctx, http.MethodGet, c.url(routeCapability), nil, &res,
		ErrListCapabilities)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(
	ctx context.Context, method, url string, body, target any, fail error,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d, body: %s",
			fail, resp.StatusCode, string(body))
	}

	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func (c *Client) url(format string, args ...any) string {
	path := fmt.Sprintf(format, args...)
	return c.baseURL + path
}
