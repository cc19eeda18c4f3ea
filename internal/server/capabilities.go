package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/cadence/pkg/api"
)

func (s *Server) listCapabilities(c *gin.Context) {
	names := s.Registry.Names()
	c.JSON(http.StatusOK, api.CapabilitiesListResponse{
		Capabilities: names,
		Count:        len(names),
	})
}
