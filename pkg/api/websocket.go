package api

import "slices"

type (
	// SubscribeRequest is sent by clients to subscribe to run events
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription configures which events a WebSocket client
	// receives. Empty fields match everything
	ClientSubscription struct {
		RunID      RunID       `json:"run_id,omitempty"`
		WorkflowID WorkflowID  `json:"workflow_id,omitempty"`
		EventTypes []EventType `json:"event_types,omitempty"`
	}
)

// Matches returns whether the event passes the subscription's filters
func (s *ClientSubscription) Matches(ev *RunEvent) bool {
	if s.RunID != "" && s.RunID != ev.RunID {
		return false
	}
	if s.WorkflowID != "" && s.WorkflowID != ev.WorkflowID {
		return false
	}
	if len(s.EventTypes) != 0 && !slices.Contains(s.EventTypes, ev.Type) {
		return false
	}
	return true
}
