package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/cadence/internal/approval"
	"github.com/kode4food/cadence/pkg/api"
)

var ErrApproverRequired = errors.New("approver is required")

func (s *Server) listApprovals(c *gin.Context) {
	pending := s.Broker.Pending()
	c.JSON(http.StatusOK, api.ApprovalsListResponse{
		Approvals: pending,
		Count:     len(pending),
	})
}

func (s *Server) approve(c *gin.Context) {
	var req api.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}
	if req.Approver == "" {
		abortWith(c, http.StatusBadRequest, ErrApproverRequired)
		return
	}

	runID, stepID := gateParams(c)
	s.respondDecision(c, s.Broker.Approve(runID, stepID, req.Approver))
}

func (s *Server) reject(c *gin.Context) {
	var req api.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWith(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err))
			return
		}
	}

	runID, stepID := gateParams(c)
	s.respondDecision(c, s.Broker.Reject(runID, stepID, req.Reason))
}

func (s *Server) respondDecision(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.MessageResponse{
			Message: "decision recorded",
		})
	case errors.Is(err, approval.ErrApprovalNotFound):
		abortWith(c, http.StatusNotFound, err)
	case errors.Is(err, approval.ErrApprovalNotRecorded):
		abortWith(c, http.StatusConflict, err)
	default:
		abortWith(c, http.StatusInternalServerError, err)
	}
}

func gateParams(c *gin.Context) (api.RunID, api.StepID) {
	return api.RunID(c.Param("runID")), api.StepID(c.Param("stepID"))
}
