package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"pingpongpal/internal/broadcast"
	"pingpongpal/internal/game"
	"pingpongpal/internal/models"
)

// Handler serves the JSON API over the match service
type Handler struct {
	matchService *game.Service
	hub          *broadcast.Hub
	log          *slog.Logger
}

// TransitionResponse is returned by every call that changes a match
type TransitionResponse struct {
	Match  models.MatchView `json:"match"`
	Events []models.Event   `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates a new handler
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

// RegisterRoutes sets up the routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/match", h.handleStartMatch)
	mux.HandleFunc("GET /api/match/{matchID}", h.handleGetMatch)
	mux.HandleFunc("POST /api/match/{matchID}/point/{player}", h.handleScorePoint)
	mux.HandleFunc("POST /api/match/{matchID}/undo", h.handleUndo)
	mux.HandleFunc("DELETE /api/match/{matchID}", h.handleEndMatch)
}

func (h *Handler) handleStartMatch(w http.ResponseWriter, r *http.Request) {
	var cfg models.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !cfg.StartingServer.Valid() {
		h.respondError(w, http.StatusBadRequest, game.ErrInvalidPlayer.Error())
		return
	}

	match, events := h.matchService.StartMatch(cfg)
	h.respondJSON(w, http.StatusCreated, TransitionResponse{
		Match:  game.View(match.ID, match.State),
		Events: events,
	})
}

func (h *Handler) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	match, exists := h.matchService.GetMatch(r.PathValue("matchID"))
	if !exists {
		h.respondError(w, http.StatusNotFound, game.ErrMatchNotFound.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, game.View(match.ID, match.State))
}

func (h *Handler) handleScorePoint(w http.ResponseWriter, r *http.Request) {
	player, err := game.ParsePlayerIndex(r.PathValue("player"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	match, events, err := h.matchService.ScorePoint(r.PathValue("matchID"), player)
	h.respondTransition(w, match, events, err)
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	match, events, err := h.matchService.Undo(r.PathValue("matchID"))
	h.respondTransition(w, match, events, err)
}

func (h *Handler) handleEndMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	if err := h.matchService.EndMatch(matchID); err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.hub.Broadcast(matchID, broadcast.Update{Match: models.MatchView{ID: matchID}, Ended: true})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondTransition(w http.ResponseWriter, match *models.Match, events []models.Event, err error) {
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	if events == nil {
		events = []models.Event{}
	}

	view := game.View(match.ID, match.State)
	if len(events) > 0 {
		h.hub.Broadcast(match.ID, broadcast.Update{Match: view, Events: events})
	}
	h.respondJSON(w, http.StatusOK, TransitionResponse{Match: view, Events: events})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidPlayer):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("encoding response", "error", err)
	}
}
