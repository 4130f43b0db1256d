package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	socketReadLimit    = 1 << 20
	socketWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleQuerySocket answers one query per text frame until the client closes
// the connection.
func (r *router) handleQuerySocket(w http.ResponseWriter, req *http.Request) {
	if r.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is unavailable"})
		return
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(socketReadLimit)
	client := clientIP(req)

	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warn("websocket closed unexpectedly", "client", client, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var reply any
		var payload queryRequest
		if err := json.Unmarshal(raw, &payload); err != nil {
			reply = map[string]string{"error": "invalid payload"}
		} else if decision := r.deps.Limiter.Check(client); !decision.Allowed {
			reply = map[string]string{"error": decision.Notify}
		} else {
			answer := r.deps.Assistant.Answer(req.Context(), payload.toAssistant())
			reply = queryResponse{
				Response:  answer.Text,
				Intent:    string(answer.Intent),
				RequestID: uuid.NewString(),
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			r.logger.Warn("websocket write failed", "client", client, "error", err)
			return
		}
	}
}
