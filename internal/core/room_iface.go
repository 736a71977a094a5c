package core

import (
	"context"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

// Frame is one encoded server event.
type Frame []byte

// SignalConnection is the send side of a participant's socket. TrySend never
// blocks; an error means the frame was not queued. The adapter that opened
// the socket is the one that closes it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// RoomService is the core-facing API of a room.
// It owns the seat state and the set of connections it broadcasts to, but
// never closes adapter-owned transports.
type RoomService interface {
	Name() domain.RoomName
	// Connect registers conn and sends it the welcome and the current snapshot.
	Connect(id domain.ParticipantID, conn SignalConnection)
	// Disconnect drops conn and leaves the seat it held.
	Disconnect(id domain.ParticipantID)
	// Submit queues a room command issued by id.
	Submit(id domain.ParticipantID, cmd protocol.Command)
	Snapshot(ctx context.Context) (domain.Snapshot, error)
	Info(ctx context.Context) (RoomInfo, error)
	Stop()
}

type RoomInfo struct {
	Name             domain.RoomName `json:"name"`
	ParticipantCount int             `json:"participant_count"`
	ConnectionCount  int             `json:"connection_count"`
}

type RoomManager interface {
	GetOrCreate(name domain.RoomName) RoomService
	GetRoom(name domain.RoomName) (RoomService, bool)
	List(ctx context.Context) []RoomInfo
	StopRoom(name domain.RoomName)
}
