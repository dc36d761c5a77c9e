package game

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"pingpongpal/internal/models"

	"github.com/google/uuid"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrInvalidPlayer = errors.New("invalid player")
)

// Service owns every live match and serialises the intents applied to them
type Service struct {
	matches map[string]*models.Match
	mu      sync.RWMutex
	log     *slog.Logger
}

// NewService creates a new match service
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		matches: make(map[string]*models.Match),
		log:     logger,
	}
}

// StartMatch registers a fresh match built from the setup configuration
func (s *Service) StartMatch(cfg models.Config) (*models.Match, []models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()[:8]
	for s.matches[id] != nil {
		id = uuid.New().String()[:8]
	}
	match := &models.Match{
		ID:    id,
		State: NewMatch(cfg.Player0Name, cfg.Player1Name, cfg.StartingServer),
	}
	s.matches[id] = match

	s.log.Info("match started",
		"match_id", id,
		"player0", match.State.Players[0].Name,
		"player1", match.State.Players[1].Name,
		"starting_server", int(match.State.StartingServer))

	snapshot := *match
	return &snapshot, []models.Event{{Kind: models.EventStart}}
}

// GetMatch retrieves a match by ID
func (s *Service) GetMatch(id string) (*models.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, exists := s.matches[id]
	if !exists {
		return nil, false
	}
	snapshot := *match
	return &snapshot, true
}

// ScorePoint awards a point to player. Scoring a decided match is a no-op
// and returns no events.
func (s *Service) ScorePoint(id string, player models.PlayerIndex) (*models.Match, []models.Event, error) {
	if !player.Valid() {
		return nil, nil, ErrInvalidPlayer
	}
	return s.apply(id, func(state models.MatchState) (models.MatchState, []models.Event) {
		return RecordPoint(state, player)
	})
}

// Undo reverses the last point. With nothing to undo it is a no-op.
func (s *Service) Undo(id string) (*models.Match, []models.Event, error) {
	return s.apply(id, UndoLastPoint)
}

func (s *Service) apply(id string, transition func(models.MatchState) (models.MatchState, []models.Event)) (*models.Match, []models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, exists := s.matches[id]
	if !exists {
		return nil, nil, ErrMatchNotFound
	}

	next, events := transition(match.State)
	match.State = next

	for _, ev := range events {
		switch ev.Kind {
		case models.EventWin:
			s.log.Info("match decided",
				"match_id", id,
				"winner", match.State.Players[*ev.Player].Name,
				"score", scoreLine(match.State))
		case models.EventUndo:
			s.log.Debug("point undone", "match_id", id, "score", scoreLine(match.State))
		default:
			s.log.Debug("match event", "match_id", id, "kind", string(ev.Kind), "score", scoreLine(match.State))
		}
	}

	snapshot := *match
	return &snapshot, events, nil
}

// EndMatch discards a match when the players leave it or start over
func (s *Service) EndMatch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[id]; !exists {
		return ErrMatchNotFound
	}
	delete(s.matches, id)
	s.log.Info("match ended", "match_id", id)
	return nil
}

// Len returns the number of live matches
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

func scoreLine(state models.MatchState) string {
	scores := state.Scores()
	return strconv.Itoa(scores.P1) + "-" + strconv.Itoa(scores.P2)
}
