package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/cadence/internal/approval"
	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/internal/events"
	"github.com/kode4food/cadence/internal/store"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

type (
	// Server implements the HTTP API server for the workflow engine
	Server struct {
		Dependencies
		sockets util.Set[*Client]
		mu      sync.Mutex
	}

	// Dependencies are the components the server exposes over HTTP
	Dependencies struct {
		Engine   *engine.Engine
		Store    *store.Store
		Registry *capability.Registry
		Broker   *approval.Broker
		Hub      *events.Hub
	}
)

var (
	ErrInvalidJSON      = errors.New("invalid JSON")
	ErrMissingComponent = errors.New("server component missing")
)

// NewServer creates a new HTTP API server
func NewServer(deps Dependencies) (*Server, error) {
	switch {
	case deps.Engine == nil:
		return nil, fmt.Errorf("%w: engine", ErrMissingComponent)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingComponent)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: registry", ErrMissingComponent)
	case deps.Broker == nil:
		return nil, fmt.Errorf("%w: broker", ErrMissingComponent)
	case deps.Hub == nil:
		return nil, fmt.Errorf("%w: hub", ErrMissingComponent)
	}
	return &Server{
		Dependencies: deps,
		sockets:      util.Set[*Client]{},
	}, nil
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	eng := router.Group("/engine")
	{
		// Capabilities
		eng.GET("/capability", s.listCapabilities)

		// Workflows
		eng.GET("/workflow", s.listWorkflows)
		eng.POST("/workflow", s.createWorkflow)
		eng.GET("/workflow/:workflowID", s.getWorkflow)
		eng.DELETE("/workflow/:workflowID", s.deleteWorkflow)

		// Runs
		eng.POST("/workflow/:workflowID/run", s.startRun)
		eng.GET("/workflow/:workflowID/run", s.listRuns)
		eng.GET("/run/:runID", s.getRun)

		// Approvals
		eng.GET("/approval", s.listApprovals)
		eng.POST("/approval/:runID/:stepID/approve", s.approve)
		eng.POST("/approval/:runID/:stepID/reject", s.reject)

		// WebSocket
		eng.GET("/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func abortWith(c *gin.Context, status int, err error) {
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}
