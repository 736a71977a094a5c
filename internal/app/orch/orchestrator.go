package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/app"
	"github.com/dkeye/SeatVoice/internal/core"
	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

// Orchestrator ties connections, rooms and the negotiation relay together.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Relay    *app.Relay
}

// New wires a registry-backed room manager whose rooms kick slow connections
// according to policy.
func New(ctx context.Context, opts app.RoomOptions) *Orchestrator {
	reg := app.NewRegistry()
	if opts.Policy == nil {
		opts.Policy = app.SimplePolicy{}
	}
	opts.Kick = func(id domain.ParticipantID) { reg.Cancel(id) }
	return &Orchestrator{
		Registry: reg,
		Rooms:    app.NewRoomManager(ctx, opts),
		Relay:    app.NewRelay(reg),
	}
}

// Connect binds conn to room and announces it to the room.
func (o *Orchestrator) Connect(
	id domain.ParticipantID,
	room domain.RoomName,
	clientToken string,
	conn core.SignalConnection,
	cancel context.CancelFunc,
) {
	o.Registry.Bind(id, room, clientToken, conn, cancel)
	o.Rooms.GetOrCreate(room).Connect(id, conn)
}

// Disconnect releases whatever id held. Calling it twice is harmless.
func (o *Orchestrator) Disconnect(id domain.ParticipantID) {
	room, ok := o.Registry.RoomOf(id)
	if !ok {
		return
	}
	o.Registry.Unbind(id)
	if r, ok := o.Rooms.GetRoom(room); ok {
		r.Disconnect(id)
	}
}

// Dispatch routes a decoded command from id. Negotiation goes to the relay,
// everything else to the room the connection belongs to.
func (o *Orchestrator) Dispatch(ctx context.Context, id domain.ParticipantID, cmd protocol.Command) {
	if n, ok := cmd.(protocol.Negotiation); ok {
		_ = o.Relay.Forward(ctx, n.Kind, id, n.Target, n.Body)
		return
	}
	room, ok := o.Registry.RoomOf(id)
	if !ok {
		log.Warn().Str("module", "orch").Str("pid", string(id)).Msg("dispatch for unbound connection")
		return
	}
	r, ok := o.Rooms.GetRoom(room)
	if !ok {
		return
	}
	r.Submit(id, cmd)
}

// Reject sends an error frame straight to id, bypassing its room.
func (o *Orchestrator) Reject(id domain.ParticipantID, msg string) {
	conn, _, ok := o.Registry.Conn(id)
	if !ok {
		return
	}
	frame, err := protocol.EncodeEvent(protocol.Error{Message: msg})
	if err != nil {
		return
	}
	_ = conn.TrySend(frame)
}

// EvictRoom cancels every connection of name and stops the room.
func (o *Orchestrator) EvictRoom(name domain.RoomName) {
	for _, id := range o.Registry.MembersOfRoom(name) {
		o.Registry.Cancel(id)
	}
	o.Rooms.StopRoom(name)
}
