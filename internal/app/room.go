package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dkeye/SeatVoice/internal/core"
	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

type roomMsg interface{ isRoomMsg() }

type connectMsg struct {
	id   domain.ParticipantID
	conn core.SignalConnection
}

type disconnectMsg struct{ id domain.ParticipantID }

type commandMsg struct {
	id  domain.ParticipantID
	cmd protocol.Command
}

type snapshotMsg struct{ reply chan domain.Snapshot }

type infoMsg struct{ reply chan core.RoomInfo }

func (connectMsg) isRoomMsg()    {}
func (disconnectMsg) isRoomMsg() {}
func (commandMsg) isRoomMsg()    {}
func (snapshotMsg) isRoomMsg()   {}
func (infoMsg) isRoomMsg()       {}

type RoomOptions struct {
	Grid          core.GridSpec
	Policy        Policy
	Kick          func(domain.ParticipantID)
	MaxChatLength int
	InboxSize     int
}

// Room owns the seat state of one room. Every message is handled to
// completion by a single goroutine, so no two commands interleave.
type Room struct {
	name   domain.RoomName
	opts   RoomOptions
	inbox  chan roomMsg
	state  *core.RoomState
	conns  map[domain.ParticipantID]core.SignalConnection
	logger zerolog.Logger

	backpressure metric.Int64Counter

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ core.RoomService = (*Room)(nil)

func NewRoom(parent context.Context, name domain.RoomName, opts RoomOptions) *Room {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	if opts.MaxChatLength <= 0 {
		opts.MaxChatLength = 500
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		name:         name,
		opts:         opts,
		inbox:        make(chan roomMsg, opts.InboxSize),
		state:        core.NewRoomState(opts.Grid),
		conns:        make(map[domain.ParticipantID]core.SignalConnection),
		logger:       log.With().Str("module", "app.room").Str("room", string(name)).Logger(),
		backpressure: counter("room.backpressure", "Frames not delivered because a connection buffer was full."),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Room) Name() domain.RoomName { return r.name }

func (r *Room) post(m roomMsg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *Room) Connect(id domain.ParticipantID, conn core.SignalConnection) {
	r.post(connectMsg{id: id, conn: conn})
}

func (r *Room) Disconnect(id domain.ParticipantID) {
	r.post(disconnectMsg{id: id})
}

func (r *Room) Submit(id domain.ParticipantID, cmd protocol.Command) {
	r.post(commandMsg{id: id, cmd: cmd})
}

func (r *Room) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	reply := make(chan domain.Snapshot, 1)
	if !r.post(snapshotMsg{reply: reply}) {
		return domain.Snapshot{}, context.Canceled
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	case <-r.done:
		return domain.Snapshot{}, context.Canceled
	}
}

// Info reports participant and connection counts.
func (r *Room) Info(ctx context.Context) (core.RoomInfo, error) {
	reply := make(chan core.RoomInfo, 1)
	if !r.post(infoMsg{reply: reply}) {
		return core.RoomInfo{}, context.Canceled
	}
	select {
	case info := <-reply:
		return info, nil
	case <-ctx.Done():
		return core.RoomInfo{}, ctx.Err()
	case <-r.done:
		return core.RoomInfo{}, context.Canceled
	}
}

// Stop ends the room loop. Connections stay open; they are adapter-owned.
func (r *Room) Stop() {
	r.cancel()
	<-r.done
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.logger.Info().Msg("room stopped")
			return
		case m := <-r.inbox:
			r.handle(m)
		}
	}
}

func (r *Room) handle(m roomMsg) {
	switch msg := m.(type) {
	case connectMsg:
		r.conns[msg.id] = msg.conn
		r.logger.Info().Str("pid", string(msg.id)).Int("connections", len(r.conns)).Msg("connected")
		r.send(msg.id, protocol.Welcome{UserID: msg.id})
		r.send(msg.id, protocol.RoomState(r.state.Snapshot()))
	case disconnectMsg:
		delete(r.conns, msg.id)
		if r.state.Leave(msg.id) {
			r.logger.Info().Str("pid", string(msg.id)).Msg("left")
			r.broadcastState()
		}
	case commandMsg:
		r.apply(msg.id, msg.cmd)
	case snapshotMsg:
		msg.reply <- r.state.Snapshot()
	case infoMsg:
		msg.reply <- core.RoomInfo{
			Name:             r.name,
			ParticipantCount: r.state.ParticipantCount(),
			ConnectionCount:  len(r.conns),
		}
	}
}

func (r *Room) apply(id domain.ParticipantID, cmd protocol.Command) {
	if _, ok := r.conns[id]; !ok {
		r.logger.Warn().Str("pid", string(id)).Msg("command from unknown connection")
		return
	}
	switch c := cmd.(type) {
	case protocol.Join:
		if err := r.state.Join(id, c.Name, c.SeatID); err != nil {
			r.reject(id, "join", err)
			return
		}
		r.logger.Info().Str("pid", string(id)).Str("seat", string(c.SeatID)).Msg("joined")
		r.broadcastState()
	case protocol.Move:
		if err := r.state.Move(id, c.SeatID); err != nil {
			r.reject(id, "move", err)
			return
		}
		r.logger.Info().Str("pid", string(id)).Str("seat", string(c.SeatID)).Msg("moved")
		r.broadcastState()
	case protocol.ToggleAudio:
		enabled, err := r.state.ToggleAudio(id)
		if err != nil {
			r.reject(id, "toggle_audio", err)
			return
		}
		r.logger.Info().Str("pid", string(id)).Bool("audio", enabled).Msg("audio toggled")
		r.broadcastState()
	case protocol.Chat:
		r.chat(id, c.Message)
	case protocol.Ping:
		r.send(id, protocol.Pong{})
	default:
		r.logger.Warn().Str("pid", string(id)).Msgf("unsupported room command %T", cmd)
	}
}

func (r *Room) chat(id domain.ParticipantID, text string) {
	text = truncate(strings.TrimSpace(text), r.opts.MaxChatLength)
	if text == "" {
		r.logger.Debug().Str("pid", string(id)).Msg("empty chat ignored")
		return
	}
	hearers, err := r.state.Hearers(id)
	if err != nil {
		r.reject(id, "chat", err)
		return
	}
	from := hearers[0]
	ev := protocol.ChatMessage{
		UserID:   from.ID,
		UserName: from.Name,
		Message:  text,
		Position: from.Position,
	}
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		r.logger.Error().Err(err).Msg("encode chat")
		return
	}
	for _, p := range hearers {
		r.sendFrame(p.ID, frame)
	}
	r.logger.Debug().Str("pid", string(id)).Int("recipients", len(hearers)).Msg("chat delivered")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func (r *Room) reject(id domain.ParticipantID, op string, err error) {
	r.logger.Info().Str("pid", string(id)).Str("op", op).Err(err).Msg("request rejected")
	r.send(id, protocol.Error{Message: err.Error()})
}

func (r *Room) send(id domain.ParticipantID, ev protocol.Event) {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		r.logger.Error().Err(err).Msg("encode event")
		return
	}
	r.sendFrame(id, frame)
}

func (r *Room) sendFrame(id domain.ParticipantID, frame core.Frame) {
	conn, ok := r.conns[id]
	if !ok {
		return
	}
	if err := conn.TrySend(frame); err != nil {
		r.onBackpressure(id, err)
	}
}

func (r *Room) broadcastState() {
	frame, err := protocol.EncodeEvent(protocol.RoomState(r.state.Snapshot()))
	if err != nil {
		r.logger.Error().Err(err).Msg("encode room state")
		return
	}
	for id := range r.conns {
		r.sendFrame(id, frame)
	}
}

func (r *Room) onBackpressure(id domain.ParticipantID, err error) {
	r.backpressure.Add(r.ctx, 1, metric.WithAttributes(attribute.String("room", string(r.name))))
	if r.opts.Policy == nil {
		return
	}
	action := r.opts.Policy.OnBackPressure(r.name, id)
	r.logger.Warn().Err(err).Str("pid", string(id)).Stringer("action", action).Msg("send failed")
	if action == KickMember && r.opts.Kick != nil {
		r.opts.Kick(id)
	}
}
