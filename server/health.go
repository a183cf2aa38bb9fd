package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Service: s.service,
		Status:  "ok",
	})
}
