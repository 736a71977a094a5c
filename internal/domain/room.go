package domain

import (
	"strings"
	"unicode/utf8"
)

type RoomName string

const DefaultRoom RoomName = "main"

// Snapshot is the full observable state of a room. Seats keep grid order;
// users are sorted by id.
type Snapshot struct {
	Seats []Seat        `json:"seats"`
	Users []Participant `json:"users"`
}

// User returns the participant with the given id.
func (s Snapshot) User(id ParticipantID) (Participant, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return Participant{}, false
}

const MaxRoomNameLen = 36

// NormalizeRoomName trims raw and falls back to DefaultRoom when it is empty.
func NormalizeRoomName(raw string) (RoomName, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRoom, nil
	}
	if utf8.RuneCountInString(raw) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	return RoomName(raw), nil
}
