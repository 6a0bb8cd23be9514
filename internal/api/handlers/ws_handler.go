package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/internal/services"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

const (
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 64 << 10
)

type WSHandler struct {
	chat     services.ChatService
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewWSHandler accepts upgrades from the given origins; "*" or an empty list allows any.
func NewWSHandler(chat services.ChatService, origins []string, log *logrus.Logger) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	allowed := make(map[string]struct{}, len(origins))
	anyOrigin := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		chat: chat,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if anyOrigin {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

type wsClientMsg struct {
	Type     string `json:"type"`
	Question string `json:"question"`
	FileName string `json:"file_name"`
	TopK     int    `json:"top_k"`
}

type wsServerMsg struct {
	Type      string     `json:"type"`
	SessionID string     `json:"session_id,omitempty"`
	Content   string     `json:"content,omitempty"`
	Answer    string     `json:"answer,omitempty"`
	Sources   any        `json:"sources,omitempty"`
	Degraded  bool       `json:"degraded,omitempty"`
	Code      utils.Code `json:"code,omitempty"`
	Message   string     `json:"message,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeError(err error) error {
	return w.writeJSON(wsServerMsg{Type: "error", Code: utils.CodeOf(err), Message: utils.PublicMessage(err)})
}

// ChatWS streams answers for the session in the path. Each "question" message
// yields "chunk" messages followed by "complete" or "error".
func (h *WSHandler) ChatWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		badRequest(c, "WSHandler.ChatWS", "missing session_id", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	log := h.log.WithField("session_id", sessionID)
	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			if websocket.IsUnexpectedCloseError(rerr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(rerr).Debug("websocket closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.ChatWS", "invalid json", err))
			continue
		}

		switch msg.Type {
		case "question":
			if !h.answer(ctx, wc, sessionID, msg, log) {
				return
			}
		case "ping":
			if err := wc.writeJSON(wsServerMsg{Type: "pong"}); err != nil {
				return
			}
		default:
			_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.ChatWS", "unknown message type", nil))
		}
	}
}

// answer returns false once the connection is unusable.
func (h *WSHandler) answer(ctx context.Context, wc *wsConn, sessionID string, msg wsClientMsg, log *logrus.Entry) bool {
	writeFailed := false
	res, err := h.chat.AskStream(ctx, services.AskInput{
		Question:  msg.Question,
		SessionID: sessionID,
		FileName:  msg.FileName,
		TopK:      msg.TopK,
	}, func(part string) error {
		if err := wc.writeJSON(wsServerMsg{Type: "chunk", Content: part}); err != nil {
			writeFailed = true
			return err
		}
		return nil
	})
	if writeFailed {
		return false
	}
	if err != nil {
		log.WithError(err).Warn("streamed answer failed")
		return wc.writeError(err) == nil
	}

	return wc.writeJSON(wsServerMsg{
		Type:      "complete",
		SessionID: res.SessionID,
		Answer:    res.Answer,
		Sources:   res.Sources,
		Degraded:  res.Degraded,
	}) == nil
}
