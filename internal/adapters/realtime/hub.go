package realtime

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"rehearsalplanner/internal/domain"
)

const sendBufferSize = 16

// Hub tracks connected members and fans broadcast events out to them.
// Delivery is best-effort: a member with no open connection is skipped, and a
// client whose send buffer is full is dropped rather than blocking the
// broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
}

var _ domain.Broadcaster = (*Hub)(nil)

type client struct {
	memberID string
	conn     *websocket.Conn
	send     chan domain.BroadcastEvent
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  logger,
	}
}

// Broadcast delivers the event to every listed member with an open
// connection. Never blocks the caller.
func (h *Hub) Broadcast(memberIDs []string, ev domain.BroadcastEvent) {
	// Sends happen under the read lock so a concurrent unregister (which
	// closes the channel under the write lock) cannot interleave.
	h.mu.RLock()
	var dropped []*client
	for _, id := range memberIDs {
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case c.send <- ev:
		default:
			// Slow consumer; drop the connection instead of stalling.
			dropped = append(dropped, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range dropped {
		h.remove(c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers the member. An existing
// connection for the same member is replaced.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, memberID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "member_id", memberID, "err", err)
		return
	}
	c := &client{
		memberID: memberID,
		conn:     conn,
		send:     make(chan domain.BroadcastEvent, sendBufferSize),
	}

	h.mu.Lock()
	if prev, ok := h.clients[memberID]; ok {
		close(prev.send)
		prev.conn.Close()
	}
	h.clients[memberID] = c
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// ConnectedCount returns the number of members with an open connection.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.memberID]; ok && cur == c {
		delete(h.clients, c.memberID)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (h *Hub) writePump(c *client) {
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			h.logger.Debug("websocket write failed", "member_id", c.memberID, "err", err)
			h.remove(c)
			return
		}
	}
}

// readPump drains incoming frames so pings are handled and a closed peer is
// noticed promptly. Clients never send application data.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}
