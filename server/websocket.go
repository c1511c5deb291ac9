package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// handleWebSocket registers a client for job updates and sends it the
// current meeting list.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "Failed to upgrade to WebSocket: %v", err)
		return
	}

	// Send initial data before registering, so the manager's broadcasts
	// are the only writer afterwards.
	meetings, err := s.meetings.ListMeetings(r.Context())
	if err == nil {
		out := make([]meetingSummary, 0, len(meetings))
		for _, m := range meetings {
			out = append(out, meetingSummary{ID: m.ID, Title: m.Title})
		}
		initialData, err := json.Marshal(map[string]interface{}{
			"type":     "initial_meetings",
			"meetings": out,
		})
		if err == nil {
			conn.WriteMessage(websocket.TextMessage, initialData)
		}
	}

	s.wsManager.RegisterClient(conn)

	// Handle disconnection
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.wsManager.UnregisterClient(conn)
				break
			}
		}
	}()
}
