package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	orchestrator "github.com/tanpawarit/table-reservation-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

type MessageRequest struct {
	Text        string `json:"text" binding:"required"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type MessageResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateSession handles POST /v1/sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	id := h.newID()
	if err := h.agent.Reset(c.Request.Context(), id); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("api: create session failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// PostMessage handles POST /v1/sessions/:id/messages.
func (h *Handler) PostMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	id := c.Param("id")
	reply, err := h.agent.ProcessTurn(c.Request.Context(), id, req.Text, contractx.Identity{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	switch {
	case errors.Is(err, orchestrator.ErrInvalidMessage), errors.Is(err, orchestrator.ErrInvalidSession):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("session_id", id).Msg("api: turn failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{SessionID: id, Reply: reply})
}

// GetHistory handles GET /v1/sessions/:id/history.
func (h *Handler) GetHistory(c *gin.Context) {
	msgs, err := h.agent.History(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, statex.ErrStateNotFound), errors.Is(err, statex.ErrInvalidSession):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp})
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "messages": out})
}

// ResetSession handles DELETE /v1/sessions/:id.
func (h *Handler) ResetSession(c *gin.Context) {
	err := h.agent.Reset(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, orchestrator.ErrInvalidSession):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("session_id", c.Param("id")).Msg("api: reset failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to reset session"})
		return
	}
	c.Status(http.StatusNoContent)
}
