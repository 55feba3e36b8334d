package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CaseHub tracks connected websocket clients (userId -> conn) and broadcasts
// case lifecycle events to them. Broadcast is best-effort: a dead connection
// is dropped, never retried, and failures never affect the transition that
// triggered the event.
type CaseHub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

// NewCaseHub returns an empty hub
func NewCaseHub() *CaseHub {
	return &CaseHub{
		clients: make(map[string]*websocket.Conn),
	}
}

// HandleCasesWebSocket upgrades the connection and registers the client for
// case event broadcasts
func (h *CaseHub) HandleCasesWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade error", "error", err)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		conn.Close()
		return
	}

	h.mutex.Lock()
	h.clients[userID] = conn
	h.mutex.Unlock()
	zap.S().Debugw("user connected to /ws/cases", "userID", userID)

	conn.SetCloseHandler(func(code int, text string) error {
		h.mutex.Lock()
		delete(h.clients, userID)
		h.mutex.Unlock()
		zap.S().Debugw("user disconnected from /ws/cases", "userID", userID)
		return nil
	})

	// drain reads to keep the connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

// BroadcastCaseEvent pushes a case lifecycle event to every connected client
func (h *CaseHub) BroadcastCaseEvent(event, caseID, status string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conn := range h.clients {
		err := conn.WriteJSON(map[string]interface{}{
			"event":  event,
			"caseId": caseID,
			"status": status,
		})
		if err != nil {
			zap.S().Warnw("error broadcasting case event", "userID", userID, "error", err)
			delete(h.clients, userID)
			conn.Close()
		}
	}
}
