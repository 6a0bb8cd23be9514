package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/services"
)

type SessionHandler struct {
	svc services.HistoryService
}

func NewSessionHandler(svc services.HistoryService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type SessionResponse struct {
	Session  *models.Session  `json:"session"`
	Messages []models.Message `json:"messages"`
}

// Get returns the session with its messages; ?limit= keeps only the newest ones.
func (h *SessionHandler) Get(c *gin.Context) {
	const op = "SessionHandler.Get"

	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		badRequest(c, op, "limit must be a non-negative integer", nil)
		return
	}

	sessionID := c.Param("session_id")
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	msgs, err := h.svc.List(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: sess, Messages: msgs})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
