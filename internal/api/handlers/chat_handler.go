package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohammadjaf013/findlanqbot/internal/services"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

type ChatHandler struct {
	svc           services.ChatService
	maxAudioBytes int64
}

func NewChatHandler(svc services.ChatService, maxAudioBytes int64) *ChatHandler {
	if maxAudioBytes <= 0 {
		maxAudioBytes = 10 << 20
	}
	return &ChatHandler{svc: svc, maxAudioBytes: maxAudioBytes}
}

type ChatRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	TopK      int    `json:"top_k" binding:"gte=0"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ChatHandler.Ask", "invalid request body", err)
		return
	}

	out, err := h.svc.Ask(c.Request.Context(), services.AskInput{
		Question:  req.Question,
		SessionID: req.SessionID,
		FileName:  req.FileName,
		TopK:      req.TopK,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Voice accepts multipart form fields audio (file), language and session_id.
func (h *ChatHandler) Voice(c *gin.Context) {
	const op = "ChatHandler.Voice"

	fh, err := c.FormFile("audio")
	if err != nil {
		badRequest(c, op, "audio file is required", err)
		return
	}
	if fh.Size > h.maxAudioBytes {
		writeError(c, utils.E(utils.CodeTooLarge, op, "audio file is too large", nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, op, "failed to read audio", err)
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, h.maxAudioBytes))
	if err != nil {
		badRequest(c, op, "failed to read audio", err)
		return
	}

	out, err := h.svc.AskAudio(c.Request.Context(), audio, c.PostForm("language"), services.AskInput{
		SessionID: c.PostForm("session_id"),
		FileName:  c.PostForm("file_name"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
