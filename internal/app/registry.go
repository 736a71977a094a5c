package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/core"
	"github.com/dkeye/SeatVoice/internal/domain"
)

type connEntry struct {
	Room        domain.RoomName
	ClientToken string
	Conn        core.SignalConnection
	Cancel      context.CancelFunc
}

// Registry tracks every live signal connection by participant id.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ParticipantID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ParticipantID]*connEntry),
	}
}

func (r *Registry) Bind(
	id domain.ParticipantID,
	room domain.RoomName,
	clientToken string,
	conn core.SignalConnection,
	cancel context.CancelFunc,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{
		Room:        room,
		ClientToken: clientToken,
		Conn:        conn,
		Cancel:      cancel,
	}
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Str("room", string(room)).Msg("bound connection")
}

func (r *Registry) Unbind(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Msg("unbind connection")
}

// Conn returns the live connection of id together with its room.
func (r *Registry) Conn(id domain.ParticipantID) (core.SignalConnection, domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, "", false
	}
	return e.Conn, e.Room, true
}

func (r *Registry) RoomOf(id domain.ParticipantID) (domain.RoomName, bool) {
	_, room, ok := r.Conn(id)
	return room, ok
}

func (r *Registry) ClientToken(id domain.ParticipantID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.ClientToken
	}
	return ""
}

// MembersOfRoom lists the participant ids connected to room.
func (r *Registry) MembersOfRoom(name domain.RoomName) []domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ParticipantID, 0, len(r.conns))
	for id, e := range r.conns {
		if e.Room == name {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the connection's pumps; the read loop then disconnects it.
func (r *Registry) Cancel(id domain.ParticipantID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Msg("canceled connection")
	return true
}
