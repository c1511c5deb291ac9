package models

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jupark12/meeting-minutes/logger"
)

// WebSocketManager handles WebSocket connections and broadcasts
type WebSocketManager struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	stopped   bool
	mu        sync.Mutex
	log       logger.Logger
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(log logger.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 64),
		log:       log,
	}
}

// Start begins delivering broadcasts. It runs until ctx is cancelled, then
// closes every client and refuses new ones.
func (wsm *WebSocketManager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				wsm.mu.Lock()
				wsm.stopped = true
				for client := range wsm.clients {
					client.Close()
					delete(wsm.clients, client)
				}
				wsm.mu.Unlock()
				return
			case message := <-wsm.broadcast:
				wsm.send(ctx, message)
			}
		}
	}()
}

func (wsm *WebSocketManager) send(ctx context.Context, message []byte) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	for client := range wsm.clients {
		client.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			wsm.log.Warn(ctx, "Error sending message to client: %v", err)
			client.Close()
			delete(wsm.clients, client)
		}
	}
}

// BroadcastJobUpdate sends a job update to all connected clients. The update
// is dropped when the broadcast buffer is full; pollers remain authoritative.
func (wsm *WebSocketManager) BroadcastJobUpdate(job *JobRecord) {
	update := map[string]interface{}{
		"type":       "job_update",
		"process_id": job.ProcessID,
		"meeting_id": job.MeetingID,
		"status":     job.Status,
		"timestamp":  job.UpdatedAt,
	}

	if job.Status == StatusFailed && job.Error != nil {
		update["error"] = *job.Error
	}

	jsonData, err := json.Marshal(update)
	if err != nil {
		wsm.log.Error(context.Background(), "Failed to marshal job update: %v", err)
		return
	}

	select {
	case wsm.broadcast <- jsonData:
	default:
		wsm.log.Warn(context.Background(), "Dropping job update for %s: broadcast buffer full", job.ProcessID)
	}
}

// RegisterClient registers a new WebSocket client. Once the manager has
// stopped the connection is closed instead.
func (wsm *WebSocketManager) RegisterClient(conn *websocket.Conn) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	if wsm.stopped {
		conn.Close()
		return
	}
	wsm.clients[conn] = true
	wsm.log.Info(context.Background(), "New WebSocket client connected. Total clients: %d", len(wsm.clients))
}

// UnregisterClient removes a WebSocket client and closes its connection.
func (wsm *WebSocketManager) UnregisterClient(conn *websocket.Conn) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	if _, ok := wsm.clients[conn]; ok {
		delete(wsm.clients, conn)
		wsm.log.Info(context.Background(), "WebSocket client disconnected. Remaining clients: %d", len(wsm.clients))
	}
	conn.Close()
}

// Clients returns the number of connected clients.
func (wsm *WebSocketManager) Clients() int {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	return len(wsm.clients)
}
