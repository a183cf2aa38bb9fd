package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbxark/flowagent/registry"
)

func (s *Server) listFlows(c *gin.Context) {
	flows, err := s.registry.ListFlows(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to list flows", err)
		return
	}
	c.JSON(http.StatusOK, flows)
}

func (s *Server) getFlow(c *gin.Context) {
	id := c.Param("flowId")
	schema, err := s.registry.GetFlowSchema(c.Request.Context(), id)
	if err != nil {
		writeError(c, flowStatus(err), "Failed to get flow", err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) executeFlow(c *gin.Context) {
	id := c.Param("flowId")
	inputs := map[string]any{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&inputs); err != nil {
			writeError(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	result, err := s.registry.Execute(c.Request.Context(), id, inputs)
	if err != nil {
		writeError(c, flowStatus(err), "Failed to execute flow", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func flowStatus(err error) int {
	if errors.Is(err, registry.ErrFlowNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
