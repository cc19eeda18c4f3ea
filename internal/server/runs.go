package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/internal/store"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

var (
	ErrListRuns = errors.New("failed to list runs")
	ErrGetRun   = errors.New("failed to get run")
)

func (s *Server) startRun(c *gin.Context) {
	def, ok := s.lookupWorkflow(c)
	if !ok {
		return
	}

	var req api.ExecuteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWith(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err))
			return
		}
	}

	runID := api.NewRunID()
	if req.Async {
		out := s.Engine.ExecuteAsync(
			context.WithoutCancel(c.Request.Context()), def, req.Inputs,
			engine.WithRunID(runID),
		)
		go logOutcome(out)
		c.JSON(http.StatusAccepted, api.ExecuteResponse{
			WorkflowID: def.ID,
			RunID:      runID,
		})
		return
	}

	res, err := s.Engine.Execute(
		c.Request.Context(), def, req.Inputs, engine.WithRunID(runID),
	)
	if err != nil {
		abortWith(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, api.ExecuteResponse{
		WorkflowID: def.ID,
		RunID:      runID,
		Result:     res,
	})
}

func (s *Server) listRuns(c *gin.Context) {
	id := api.WorkflowID(c.Param("workflowID"))

	runs, err := s.Store.ListRuns(c.Request.Context(), id)
	if err != nil {
		abortWith(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrListRuns, err))
		return
	}

	c.JSON(http.StatusOK, api.RunsListResponse{
		Runs:  runs,
		Count: len(runs),
	})
}

func (s *Server) getRun(c *gin.Context) {
	id := api.RunID(c.Param("runID"))

	res, err := s.Store.GetRun(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, store.ErrRunNotFound):
		abortWith(c, http.StatusNotFound, err)
	default:
		abortWith(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrGetRun, err))
	}
}

func logOutcome(out <-chan engine.Outcome) {
	o := <-out
	if o.Err != nil {
		slog.Error("Async run rejected", log.Error(o.Err))
	}
}
