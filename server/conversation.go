package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbxark/flowagent/log"
	"github.com/tbxark/flowagent/types"
)

// ResetResponse acknowledges a conversation reset
type ResetResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

func (s *Server) handleTurn(c *gin.Context) {
	var req types.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Message == "" {
		writeError(c, http.StatusBadRequest, "Message is required", nil)
		return
	}

	resp, err := s.orchestrator.Turn(c.Request.Context(), &req)
	if err != nil {
		slog.Error("Turn failed",
			log.ConversationID(req.ConversationID),
			log.Error(err))
		writeTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getConversation(c *gin.Context) {
	id := c.Param("conversationId")
	state, err := s.orchestrator.State(c.Request.Context(), id)
	if err != nil {
		writeTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) resetConversation(c *gin.Context) {
	id := c.Param("conversationId")
	if err := s.orchestrator.Reset(c.Request.Context(), id); err != nil {
		writeTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResetResponse{
		Message:        "Conversation reset",
		ConversationID: id,
	})
}
