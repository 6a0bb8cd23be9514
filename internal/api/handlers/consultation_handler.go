package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohammadjaf013/findlanqbot/internal/services"
)

type ConsultationHandler struct {
	svc services.ConsultationService
}

func NewConsultationHandler(svc services.ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{svc: svc}
}

func (h *ConsultationHandler) Create(c *gin.Context) {
	var req services.ConsultationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ConsultationHandler.Create", "invalid request body", err)
		return
	}

	out, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *ConsultationHandler) Get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *ConsultationHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		badRequest(c, "ConsultationHandler.List", "limit must be a non-negative integer", nil)
		return
	}

	out, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultations": out})
}
