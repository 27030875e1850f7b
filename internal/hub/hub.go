package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one open console page.
type Connection struct {
	ID     string
	Writer Writer
}

func NewConnection(w Writer) *Connection {
	return &Connection{ID: uuid.NewString(), Writer: w}
}

// NavigateMessage tells every open page to change location.
type NavigateMessage struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Replace bool   `json:"replace"`
}

// Hub fans navigation messages out to every open page.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{connections: make(map[string]*Connection), logger: logger}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID] = conn
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[conn.ID] == conn {
		delete(h.connections, conn.ID)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) Broadcast(message []byte) int {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
	return len(conns) - len(failed)
}

// Navigate implements session.Navigator.
func (h *Hub) Navigate(ctx context.Context, route string, replace bool) {
	msg, err := json.Marshal(NavigateMessage{Type: "navigate", To: route, Replace: replace})
	if err != nil {
		h.logger.ErrorContext(ctx, "encode navigation", "error", err)
		return
	}
	delivered := h.Broadcast(msg)
	h.logger.InfoContext(ctx, "navigation pushed", "to", route, "replace", replace, "pages", delivered)
}
