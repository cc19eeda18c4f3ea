package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/cadence/internal/store"
	"github.com/kode4food/cadence/pkg/api"
)

var (
	ErrListWorkflows  = errors.New("failed to list workflows")
	ErrGetWorkflow    = errors.New("failed to get workflow")
	ErrSaveWorkflow   = errors.New("failed to save workflow")
	ErrDeleteWorkflow = errors.New("failed to delete workflow")
)

func (s *Server) listWorkflows(c *gin.Context) {
	defs, err := s.Store.ListWorkflows(c.Request.Context())
	if err != nil {
		abortWith(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrListWorkflows, err))
		return
	}

	c.JSON(http.StatusOK, api.WorkflowsListResponse{
		Workflows: defs,
		Count:     len(defs),
	})
}

func (s *Server) createWorkflow(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWith(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}

	def, err := api.ParseDefinition(data, requestFormat(c))
	if err != nil {
		abortWith(c, http.StatusBadRequest, err)
		return
	}

	if err := s.Store.SaveWorkflow(c.Request.Context(), def); err != nil {
		abortWith(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrSaveWorkflow, err))
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (s *Server) getWorkflow(c *gin.Context) {
	def, ok := s.lookupWorkflow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) deleteWorkflow(c *gin.Context) {
	id := api.WorkflowID(c.Param("workflowID"))

	err := s.Store.DeleteWorkflow(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.MessageResponse{
			Message: fmt.Sprintf("workflow deleted: %s", id),
		})
	case errors.Is(err, store.ErrWorkflowNotFound):
		abortWith(c, http.StatusNotFound, err)
	default:
		abortWith(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrDeleteWorkflow, err))
	}
}

func (s *Server) lookupWorkflow(
	c *gin.Context,
) (*api.WorkflowDefinition, bool) {
	id := api.WorkflowID(c.Param("workflowID"))

	def, err := s.Store.GetWorkflow(c.Request.Context(), id)
	switch {
	case err == nil:
		return def, true
	case errors.Is(err, store.ErrWorkflowNotFound):
		abortWith(c, http.StatusNotFound, err)
	default:
		abortWith(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrGetWorkflow, err))
	}
	return nil, false
}

func requestFormat(c *gin.Context) api.DefinitionFormat {
	if strings.Contains(c.ContentType(), "yaml") {
		return api.FormatYAML
	}
	return api.FormatJSON
}
