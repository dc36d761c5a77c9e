package models

// MatchView is the derived state the presentation shell renders.
type MatchView struct {
	ID           string       `json:"id"`
	Players      [2]Player    `json:"players"`
	Server       *PlayerIndex `json:"server"`
	Winner       *PlayerIndex `json:"winner"`
	CanUndo      bool         `json:"canUndo"`
	Deuce        bool         `json:"deuce"`
	GamePoint    *PlayerIndex `json:"gamePoint"`
	PointsPlayed int          `json:"pointsPlayed"`
}

// Serving reports whether p is serving the next point.
func (v MatchView) Serving(p PlayerIndex) bool {
	return v.Server != nil && *v.Server == p
}

// Won reports whether p has won the match.
func (v MatchView) Won(p PlayerIndex) bool {
	return v.Winner != nil && *v.Winner == p
}

// Decided reports whether the match has a winner.
func (v MatchView) Decided() bool {
	return v.Winner != nil
}
