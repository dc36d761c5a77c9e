package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"pingpongpal/internal/models"

	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds a single websocket write.
const DefaultWriteTimeout = 10 * time.Second

// Update is what subscribers of a match receive after each transition.
type Update struct {
	Match  models.MatchView `json:"match"`
	Events []models.Event   `json:"events"`
	Ended  bool             `json:"ended,omitempty"`
}

// Won reports whether this update carries the point that decided the match.
func (u Update) Won() bool {
	return models.HasKind(u.Events, models.EventWin)
}

// Hub manages broadcasting match updates to the WebSocket and SSE clients
// viewing that match.
type Hub struct {
	wsClients  map[string]map[*websocket.Conn]bool
	sseClients map[string]map[chan Update]bool
	mu         sync.RWMutex
	writeWait  time.Duration
	log        *slog.Logger
}

// NewHub creates a new broadcast hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		wsClients:  make(map[string]map[*websocket.Conn]bool),
		sseClients: make(map[string]map[chan Update]bool),
		writeWait:  DefaultWriteTimeout,
		log:        logger,
	}
}

// SetWriteTimeout changes how long a websocket write may block before the
// client is considered gone.
func (h *Hub) SetWriteTimeout(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeWait = d
}

// RegisterWS adds a WebSocket connection for a match.
func (h *Hub) RegisterWS(matchID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wsClients[matchID] == nil {
		h.wsClients[matchID] = make(map[*websocket.Conn]bool)
	}
	h.wsClients[matchID][conn] = true
}

// UnregisterWS removes a WebSocket connection for a match.
func (h *Hub) UnregisterWS(matchID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeWS(matchID, conn)
}

func (h *Hub) removeWS(matchID string, conn *websocket.Conn) {
	delete(h.wsClients[matchID], conn)
	if len(h.wsClients[matchID]) == 0 {
		delete(h.wsClients, matchID)
	}
}

// RegisterSSE adds an SSE channel for a match.
func (h *Hub) RegisterSSE(matchID string, ch chan Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sseClients[matchID] == nil {
		h.sseClients[matchID] = make(map[chan Update]bool)
	}
	h.sseClients[matchID][ch] = true
}

// UnregisterSSE removes an SSE channel for a match and closes it.
func (h *Hub) UnregisterSSE(matchID string, ch chan Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sseClients[matchID][ch] {
		return
	}
	delete(h.sseClients[matchID], ch)
	if len(h.sseClients[matchID]) == 0 {
		delete(h.sseClients, matchID)
	}
	close(ch)
}

// Broadcast sends an update to all WebSocket and SSE clients of a match.
// Slow SSE clients miss the update rather than block the sender. A websocket
// client whose write fails or times out is dropped and closed, which ends its
// read loop.
func (h *Hub) Broadcast(matchID string, update Update) {
	// Writers hold the full lock; a websocket connection allows one writer at a time.
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.wsClients[matchID] {
		if err := h.write(conn, update); err != nil {
			h.log.Warn("websocket write failed, dropping client", "match_id", matchID, "error", err)
			h.removeWS(matchID, conn)
			conn.Close()
		}
	}
	for ch := range h.sseClients[matchID] {
		select {
		case ch <- update:
		default:
			h.log.Debug("sse client lagging, update dropped", "match_id", matchID)
		}
	}
}

// Send writes a message to one WebSocket client of the hub.
func (h *Hub) Send(conn *websocket.Conn, v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.write(conn, v)
}

// write must be called with h.mu held.
func (h *Hub) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// Subscribers returns how many clients are watching a match.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.wsClients[matchID]) + len(h.sseClients[matchID])
}
