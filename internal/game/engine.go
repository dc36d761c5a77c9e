package game

import (
	"slices"
	"strconv"
	"strings"

	"pingpongpal/internal/models"
)

const (
	// WinningScore is the minimum score needed to take the match.
	WinningScore = 11
	// WinMargin is the lead required over the opponent.
	WinMargin = 2
	// DeuceScore is the score both players must reach before service
	// alternates every point.
	DeuceScore = WinningScore - 1
)

var defaultNames = [2]string{"Player 1", "Player 2"}

// NewMatch returns the initial state for a match. Blank names fall back to
// their positional default.
func NewMatch(name0, name1 string, startingServer models.PlayerIndex) models.MatchState {
	if !startingServer.Valid() {
		startingServer = models.Player0
	}
	return models.MatchState{
		Players: [2]models.Player{
			{Name: normalizeName(name0, 0)},
			{Name: normalizeName(name1, 1)},
		},
		StartingServer: startingServer,
		History:        []models.Snapshot{},
	}
}

func normalizeName(name string, slot int) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return defaultNames[slot]
}

// ParsePlayerIndex converts "0" or "1" to a player slot.
func ParsePlayerIndex(s string) (models.PlayerIndex, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !models.PlayerIndex(n).Valid() {
		return 0, ErrInvalidPlayer
	}
	return models.PlayerIndex(n), nil
}

// ComputeServer returns who serves the next point. Service changes every two
// points until both players reach deuce, then every point. It knows nothing
// about the winner; callers hide the server once the match is decided.
func ComputeServer(p1Score, p2Score int, startingServer models.PlayerIndex) models.PlayerIndex {
	total := p1Score + p2Score
	if p1Score >= DeuceScore && p2Score >= DeuceScore {
		return models.PlayerIndex((total + int(startingServer)) % 2)
	}
	return models.PlayerIndex((total/2 + int(startingServer)) % 2)
}

// CheckWinner returns the winning slot, or nil while the match is live.
func CheckWinner(p1Score, p2Score int) *models.PlayerIndex {
	if p1Score >= WinningScore && p1Score >= p2Score+WinMargin {
		return playerPtr(models.Player0)
	}
	if p2Score >= WinningScore && p2Score >= p1Score+WinMargin {
		return playerPtr(models.Player1)
	}
	return nil
}

// IsDeuce reports whether the scores are level at or beyond 10-10.
func IsDeuce(p1Score, p2Score int) bool {
	return p1Score == p2Score && p1Score >= DeuceScore
}

// GamePoint returns the player one point away from winning, or nil.
func GamePoint(p1Score, p2Score int) *models.PlayerIndex {
	if CheckWinner(p1Score, p2Score) != nil {
		return nil
	}
	if CheckWinner(p1Score+1, p2Score) != nil {
		return playerPtr(models.Player0)
	}
	if CheckWinner(p1Score, p2Score+1) != nil {
		return playerPtr(models.Player1)
	}
	return nil
}

// RecordPoint awards one point to scorer and returns the new state along with
// the commentary for the point. A decided match, or an unknown scorer, leaves
// the state untouched and yields no events.
func RecordPoint(state models.MatchState, scorer models.PlayerIndex) (models.MatchState, []models.Event) {
	if state.Winner != nil || !scorer.Valid() {
		return state, nil
	}

	next := state
	next.History = append(slices.Clone(state.History), state.Scores())
	next.Players[scorer].Score++
	p1, p2 := next.Players[0].Score, next.Players[1].Score
	next.Winner = CheckWinner(p1, p2)

	events := []models.Event{{Kind: models.EventPoint, Player: playerPtr(scorer)}}
	switch {
	case next.Winner != nil:
		events = append(events, models.Event{Kind: models.EventWin, Player: playerPtr(*next.Winner)})
	case IsDeuce(p1, p2):
		events = append(events, models.Event{Kind: models.EventDeuce})
	default:
		if gp := GamePoint(p1, p2); gp != nil {
			events = append(events, models.Event{Kind: models.EventGamePoint, Player: gp})
		}
	}
	return next, events
}

// UndoLastPoint restores the scores from before the most recent point. With
// an empty history it is a no-op. The winner is recomputed from the restored
// scores.
func UndoLastPoint(state models.MatchState) (models.MatchState, []models.Event) {
	n := len(state.History)
	if n == 0 {
		return state, nil
	}

	prev := state.History[n-1]
	next := state
	next.History = slices.Clone(state.History[:n-1])
	next.Players[0].Score = prev.P1
	next.Players[1].Score = prev.P2
	next.Winner = CheckWinner(prev.P1, prev.P2)

	return next, []models.Event{{Kind: models.EventUndo}}
}

// View derives everything the presentation shell reads on each render.
func View(id string, state models.MatchState) models.MatchView {
	p1, p2 := state.Players[0].Score, state.Players[1].Score
	view := models.MatchView{
		ID:           id,
		Players:      state.Players,
		Winner:       state.Winner,
		CanUndo:      state.CanUndo(),
		Deuce:        IsDeuce(p1, p2),
		GamePoint:    GamePoint(p1, p2),
		PointsPlayed: len(state.History),
	}
	if state.Winner == nil {
		view.Server = playerPtr(ComputeServer(p1, p2, state.StartingServer))
	}
	return view
}

func playerPtr(p models.PlayerIndex) *models.PlayerIndex {
	return &p
}
