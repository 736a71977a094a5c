package domain

import "math"

type SeatID string

// Position is measured in percentage units of the room plane.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Seat is a fixed slot. Occupant is empty when the seat is free.
type Seat struct {
	ID       SeatID        `json:"id"`
	Position Position      `json:"position"`
	Occupied bool          `json:"occupied"`
	Occupant ParticipantID `json:"occupiedBy,omitempty"`
}
