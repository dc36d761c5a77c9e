package models

// PlayerIndex identifies one of the two fixed player slots.
type PlayerIndex int

const (
	Player0 PlayerIndex = 0
	Player1 PlayerIndex = 1
)

// Other returns the opposing slot.
func (p PlayerIndex) Other() PlayerIndex {
	return 1 - p
}

// Valid reports whether p names one of the two slots.
func (p PlayerIndex) Valid() bool {
	return p == Player0 || p == Player1
}

// Player holds a display name and running score
type Player struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Snapshot is the pair of scores recorded just before a point is applied.
type Snapshot struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

// MatchState is the single source of truth for one match.
type MatchState struct {
	Players        [2]Player    `json:"players"`
	StartingServer PlayerIndex  `json:"startingServer"`
	History        []Snapshot   `json:"history"`
	Winner         *PlayerIndex `json:"winner"`
}

// Scores returns both scores as a snapshot.
func (s MatchState) Scores() Snapshot {
	return Snapshot{P1: s.Players[0].Score, P2: s.Players[1].Score}
}

// CanUndo reports whether there is a point to reverse.
func (s MatchState) CanUndo() bool {
	return len(s.History) > 0
}

// Config is what the setup screen produces.
type Config struct {
	Player0Name    string      `json:"player0Name"`
	Player1Name    string      `json:"player1Name"`
	StartingServer PlayerIndex `json:"startingServer"`
}

// Match is a live match registered with the service.
type Match struct {
	ID    string     `json:"id"`
	State MatchState `json:"state"`
}
