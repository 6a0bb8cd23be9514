package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohammadjaf013/findlanqbot/internal/api/handlers"
)

type Deps struct {
	Chat         *handlers.ChatHandler
	Documents    *handlers.DocumentHandler
	Sessions     *handlers.SessionHandler
	Consultation *handlers.ConsultationHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")

	api.POST("/chat", d.Chat.Ask)
	api.POST("/chat/voice", d.Chat.Voice)

	api.GET("/sessions/:session_id", d.Sessions.Get)
	api.DELETE("/sessions/:session_id", d.Sessions.Delete)

	api.POST("/documents", d.Documents.Upload)
	api.GET("/documents", d.Documents.List)
	api.DELETE("/documents/:file_name", d.Documents.Delete)

	api.POST("/consultations", d.Consultation.Create)
	api.GET("/consultations", d.Consultation.List)
	api.GET("/consultations/:id", d.Consultation.Get)

	r.GET("/ws/chat/:session_id", d.WS.ChatWS)
}
