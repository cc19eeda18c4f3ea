package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/cadence"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

func (s *Server) handleHealth(c *gin.Context) {
	res := api.HealthResponse{
		Service: cadence.Name,
		Version: cadence.Version,
		Status:  statusHealthy,
	}
	if err := s.Store.Ping(c.Request.Context()); err != nil {
		slog.Warn("Store health check failed", log.Error(err))
		res.Status = statusUnhealthy
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
