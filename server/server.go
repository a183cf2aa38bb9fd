package server

import (
	"errors"
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tbxark/flowagent/agent"
	"github.com/tbxark/flowagent/registry"
	"github.com/tbxark/flowagent/types"
)

// Server implements the HTTP API. Conversation routes are mounted when an
// orchestrator is configured, flow routes when a registry is.
type Server struct {
	service      string
	orchestrator *agent.Orchestrator
	registry     registry.Registry
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type Option func(*Server)

func WithOrchestrator(orchestrator *agent.Orchestrator) Option {
	return func(s *Server) {
		s.orchestrator = orchestrator
	}
}

func WithRegistry(reg registry.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewServer creates a new HTTP API server
func NewServer(service string, opts ...Option) *Server {
	s := &Server{service: service}
	for _, opt := range opts {
		opt(s)
	}
	return s
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
			"GET, POST, DELETE, OPTIONS",
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
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.orchestrator != nil {
		conv := router.Group("/conversation")
		{
			conv.POST("", s.handleTurn)
			conv.GET("/:conversationId", s.getConversation)
			conv.DELETE("/:conversationId", s.resetConversation)
		}
	}

	if s.registry != nil {
		flows := router.Group("/flows")
		{
			flows.GET("", s.listFlows)
			flows.GET("/:flowId", s.getFlow)
			flows.POST("/:flowId/execute", s.executeFlow)
		}
	}

	return router
}

func writeError(c *gin.Context, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(status, resp)
}

func writeTurnError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrConversationNotFound):
		writeError(c, http.StatusNotFound, "Conversation not found", err)
	case types.ClassifyError(err) == types.KindInput:
		writeError(c, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
