// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"

	"github.com/google/uuid"
)

const (
	MaxParticipantIDLen = 36
	MaxNameLen          = 36
)

type ParticipantID string

// NewParticipantID returns a fresh connection-scoped participant id.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// Participant is a connected user that holds a seat.
// Position always mirrors the position of Seat.
type Participant struct {
	ID           ParticipantID `json:"id"`
	Name         string        `json:"name"`
	Position     Position      `json:"position"`
	SeatID       SeatID        `json:"seatId"`
	AudioEnabled bool          `json:"audioEnabled"`
}

// NormalizeName trims a display name and validates its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}
