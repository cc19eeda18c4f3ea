package api

type (
	// ExecuteRequest starts a run of a stored workflow
	ExecuteRequest struct {
		Inputs Args `json:"inputs"`
		Async  bool `json:"async,omitempty"`
	}

	// ExecuteResponse is returned when a run is started. Result is only
	// populated for synchronous runs
	ExecuteResponse struct {
		WorkflowID WorkflowID      `json:"workflowId"`
		RunID      RunID           `json:"runId"`
		Result     *WorkflowResult `json:"result,omitempty"`
	}

	// ApproveRequest records an approval against a pending gate
	ApproveRequest struct {
		Approver ApproverID `json:"approver"`
	}

	// RejectRequest rejects a pending gate
	RejectRequest struct {
		Reason string `json:"reason"`
	}

	// WorkflowsListResponse contains the stored workflow definitions
	WorkflowsListResponse struct {
		Workflows []*WorkflowDefinition `json:"workflows"`
		Count     int                   `json:"count"`
	}

	// RunsListResponse contains the recorded results for a workflow
	RunsListResponse struct {
		Runs  []*WorkflowResult `json:"runs"`
		Count int               `json:"count"`
	}

	// CapabilitiesListResponse contains the registered capability names
	CapabilitiesListResponse struct {
		Capabilities []string `json:"capabilities"`
		Count        int      `json:"count"`
	}

	// ApprovalsListResponse contains the gates awaiting a decision
	ApprovalsListResponse struct {
		Approvals []*ApprovalRequest `json:"approvals"`
		Count     int                `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
