package models

// EventKind names a piece of match commentary.
type EventKind string

const (
	EventStart     EventKind = "start"
	EventPoint     EventKind = "point"
	EventDeuce     EventKind = "deuce"
	EventGamePoint EventKind = "game_point"
	EventWin       EventKind = "win"
	EventUndo      EventKind = "undo"
)

// Event is produced by a match transition. Player is set for point,
// game point and win events.
type Event struct {
	Kind   EventKind    `json:"kind"`
	Player *PlayerIndex `json:"player,omitempty"`
}

// HasKind reports whether events contains an event of the given kind.
func HasKind(events []Event, kind EventKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}
