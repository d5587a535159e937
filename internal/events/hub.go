// Package events streams scan activity to dashboard clients over WebSocket.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/report"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only ever send pings, anything bigger is a protocol error.
	maxMessageSize = 512
)

// EventType identifies the kind of event carried on the stream.
type EventType string

const (
	EventTypeScanCompleted EventType = "scan_completed"
	EventTypeSystemStatus  EventType = "system_status"
)

// Event is the envelope broadcast to every connected client.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// ScanCompletedEvent summarizes a finished scan for the dashboard. Findings
// stay out of the stream, only aggregates travel.
type ScanCompletedEvent struct {
	ReportID     string         `json:"report_id"`
	Target       string         `json:"target"`
	Score        int            `json:"score"`
	Level        string         `json:"level"`
	FindingCount int            `json:"finding_count"`
	CountsByType map[string]int `json:"counts_by_type"`
}

// Client is one connected dashboard session.
type Client struct {
	conn *websocket.Conn
	send chan Event
	ip   string
}

// Hub fans events out to connected clients. Run must be started before
// ServeWS accepts connections.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewHub builds a hub. allowedOrigins limits which pages may connect, "*"
// allows any origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	checkOrigin := func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Run handles registration and broadcasting until the process exits.
func (h *Hub) Run() {
	h.logger.Info("Starting event hub", zap.String("component", "events"))

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Dashboard client connected",
				zap.String("component", "events"),
				zap.String("client_ip", client.ip),
				zap.Int("active_connections", count),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Dashboard client disconnected",
				zap.String("component", "events"),
				zap.String("client_ip", client.ip),
				zap.Int("active_connections", count),
			)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Slow consumer, drop the connection rather than block the hub.
			h.logger.Warn("Client send buffer full, closing connection",
				zap.String("component", "events"),
				zap.String("client_ip", client.ip),
			)
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishScanCompleted broadcasts a finished report to every client. Drops
// the event when the broadcast buffer is full.
func (h *Hub) PublishScanCompleted(r *report.Report) {
	event := Event{
		Type:      EventTypeScanCompleted,
		Timestamp: time.Now().UTC(),
		Data: ScanCompletedEvent{
			ReportID:     r.ID,
			Target:       r.Target,
			Score:        r.Summary.Score,
			Level:        string(r.Summary.Level),
			FindingCount: len(r.Findings),
			CountsByType: r.Summary.CountsByType,
		},
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("component", "events"),
			zap.String("event_type", string(event.Type)),
		)
	}
}

// ServeWS upgrades an HTTP request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection",
			zap.String("component", "events"),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan Event, 64),
		ip:   clientIP(r),
	}
	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		h.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Client read error",
					zap.String("component", "events"),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
