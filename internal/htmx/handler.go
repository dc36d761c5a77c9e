package htmx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"pingpongpal/internal/broadcast"
	"pingpongpal/internal/game"
	"pingpongpal/internal/models"

	"github.com/a-h/templ"
)

const (
	EventMatchUpdate = "match-update"
	EventMatchWon    = "match-won"
	EventMatchEnded  = "match-ended"
)

// Handler handles HTMX requests with SSE for live updates.
type Handler struct {
	matchService *game.Service
	hub          *broadcast.Hub
	log          *slog.Logger
}

// NewHandler creates a new HTMX handler.
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

// RegisterRoutes sets up the HTMX routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /{$}", templ.Handler(Page(SetupScreen())))
	mux.HandleFunc("POST /htmx/match", h.handleStartMatch)
	mux.HandleFunc("GET /htmx/match/{matchID}", h.handleGetMatch)
	mux.HandleFunc("POST /htmx/match/{matchID}/point/{player}", h.handleScorePoint)
	mux.HandleFunc("POST /htmx/match/{matchID}/undo", h.handleUndo)
	mux.HandleFunc("POST /htmx/match/{matchID}/exit", h.handleExit)
	mux.HandleFunc("/htmx/sse/{matchID}", h.handleSSE)
}

func (h *Handler) handleStartMatch(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	starter := models.Player0
	if v := r.FormValue("startingServer"); v != "" {
		p, err := game.ParsePlayerIndex(v)
		if err != nil {
			h.render(w, r, http.StatusBadRequest, ErrorStatus(err.Error()))
			return
		}
		starter = p
	}

	match, _ := h.matchService.StartMatch(models.Config{
		Player0Name:    r.FormValue("player0Name"),
		Player1Name:    r.FormValue("player1Name"),
		StartingServer: starter,
	})
	h.render(w, r, http.StatusOK, MatchWrapper(game.View(match.ID, match.State)))
}

func (h *Handler) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	match, exists := h.matchService.GetMatch(r.PathValue("matchID"))
	if !exists {
		h.render(w, r, http.StatusNotFound, ErrorStatus(game.ErrMatchNotFound.Error()))
		return
	}
	body := MatchWrapper(game.View(match.ID, match.State))
	if r.Header.Get("HX-Request") == "" {
		body = Page(body)
	}
	h.render(w, r, http.StatusOK, body)
}

func (h *Handler) handleScorePoint(w http.ResponseWriter, r *http.Request) {
	player, err := game.ParsePlayerIndex(r.PathValue("player"))
	if err != nil {
		h.render(w, r, http.StatusBadRequest, ErrorStatus(err.Error()))
		return
	}
	match, events, err := h.matchService.ScorePoint(r.PathValue("matchID"), player)
	h.respondTransition(w, r, match, events, err)
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	match, events, err := h.matchService.Undo(r.PathValue("matchID"))
	h.respondTransition(w, r, match, events, err)
}

func (h *Handler) handleExit(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	err := h.matchService.EndMatch(matchID)
	switch {
	case err == nil:
		h.hub.Broadcast(matchID, broadcast.Update{Match: models.MatchView{ID: matchID}, Ended: true})
	case !errors.Is(err, game.ErrMatchNotFound):
		h.log.Error("ending match", "match_id", matchID, "error", err)
	}
	h.render(w, r, http.StatusOK, SetupScreen())
}

func (h *Handler) respondTransition(w http.ResponseWriter, r *http.Request, match *models.Match, events []models.Event, err error) {
	if errors.Is(err, game.ErrMatchNotFound) {
		w.Header().Set("HX-Retarget", "#app")
		h.render(w, r, http.StatusOK, SetupScreen())
		return
	}
	if err != nil {
		h.render(w, r, http.StatusBadRequest, ErrorStatus(err.Error()))
		return
	}

	update := broadcast.Update{Match: game.View(match.ID, match.State), Events: events}
	if len(events) > 0 {
		h.hub.Broadcast(match.ID, update)
	}
	if update.Won() {
		w.Header().Set("HX-Trigger", EventMatchWon)
	}
	h.render(w, r, http.StatusOK, MatchContent(update.Match))
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan broadcast.Update, 10)
	h.hub.RegisterSSE(matchID, ch)
	defer h.hub.UnregisterSSE(matchID, ch)

	match, exists := h.matchService.GetMatch(matchID)
	if !exists {
		h.writeEvent(r.Context(), w, EventMatchEnded, SetupScreen())
		flusher.Flush()
		return
	}

	// Send initial state
	h.writeEvent(r.Context(), w, EventMatchUpdate, MatchContent(game.View(match.ID, match.State)))
	flusher.Flush()

	for {
		select {
		case update, open := <-ch:
			if !open {
				return
			}
			if update.Ended {
				h.writeEvent(r.Context(), w, EventMatchEnded, SetupScreen())
				flusher.Flush()
				return
			}
			h.writeEvent(r.Context(), w, EventMatchUpdate, MatchContent(update.Match))
			if update.Won() {
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventMatchWon, update.Match.ID)
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// SSE treats both CR and LF as line ends, so either would split a data field.
var sseLineBreaks = strings.NewReplacer("\r", "", "\n", "")

func (h *Handler) writeEvent(ctx context.Context, w http.ResponseWriter, event string, component templ.Component) {
	html, err := renderToString(ctx, component)
	if err != nil {
		h.log.Error("rendering sse event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, sseLineBreaks.Replace(html))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := component.Render(r.Context(), w); err != nil {
		h.log.Error("rendering component", "path", r.URL.Path, "error", err)
	}
}

func renderToString(ctx context.Context, component templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
