package app

import "github.com/dkeye/SeatVoice/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

type Policy interface {
	OnBackPressure(room domain.RoomName, id domain.ParticipantID) BackpressureAction
}

// SimplePolicy kicks a connection that cannot keep up with room snapshots.
// Skipping a snapshot would leave the client with a stale roster.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomName, domain.ParticipantID) BackpressureAction {
	return KickMember
}
