package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"pingpongpal/internal/broadcast"
	"pingpongpal/internal/game"
	"pingpongpal/internal/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	ActionPoint = "point"
	ActionUndo  = "undo"
)

// Intent is a message sent by the live screen.
type Intent struct {
	Action string              `json:"action"`
	Player *models.PlayerIndex `json:"player,omitempty"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// Handler handles WebSocket connections for a live match.
type Handler struct {
	matchService *game.Service
	hub          *broadcast.Hub
	log          *slog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(matchService *game.Service, hub *broadcast.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		matchService: matchService,
		hub:          hub,
		log:          logger,
	}
}

// RegisterRoutes sets up the WebSocket routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/{matchID}", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	match, exists := h.matchService.GetMatch(matchID)
	if !exists {
		http.Error(w, game.ErrMatchNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "match_id", matchID, "error", err)
		return
	}
	defer conn.Close()

	h.hub.RegisterWS(matchID, conn)
	defer h.hub.UnregisterWS(matchID, conn)

	// Send current match state
	if err := h.hub.Send(conn, broadcast.Update{Match: game.View(match.ID, match.State), Events: []models.Event{}}); err != nil {
		h.log.Debug("websocket initial state not sent", "match_id", matchID, "error", err)
		return
	}

	for {
		var intent Intent
		if err := conn.ReadJSON(&intent); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", "match_id", matchID, "error", err)
			}
			break
		}

		match, events, err := h.apply(matchID, intent)
		if err != nil {
			if sendErr := h.hub.Send(conn, errorMessage{Error: err.Error()}); sendErr != nil {
				h.log.Debug("websocket error reply not sent", "match_id", matchID, "error", sendErr)
				break
			}
			if errors.Is(err, game.ErrMatchNotFound) {
				break
			}
			continue
		}
		if len(events) > 0 {
			h.hub.Broadcast(matchID, broadcast.Update{Match: game.View(match.ID, match.State), Events: events})
		}
	}
}

var errUnknownAction = errors.New("unknown action")

func (h *Handler) apply(matchID string, intent Intent) (*models.Match, []models.Event, error) {
	switch intent.Action {
	case ActionPoint:
		if intent.Player == nil {
			return nil, nil, game.ErrInvalidPlayer
		}
		return h.matchService.ScorePoint(matchID, *intent.Player)
	case ActionUndo:
		return h.matchService.Undo(matchID)
	default:
		return nil, nil, errUnknownAction
	}
}
