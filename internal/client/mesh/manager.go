// Package mesh keeps one audio session per required remote peer.
package mesh

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
	"github.com/dkeye/SeatVoice/internal/spatial"
)

// Session is the local end of one peer link.
type Session interface {
	// Offer starts negotiation from this side.
	Offer() error
	// Answer applies a remote offer and replies to it.
	Answer(offer protocol.Relayed) error
	HandleAnswer(answer protocol.Relayed) error
	HandleCandidate(candidate protocol.Relayed) error
	// Place updates where the peer sounds from.
	Place(spatial.Placement)
	Close() error
}

// SessionFactory opens sessions. onFail may be called from any goroutine
// once the session can no longer recover.
type SessionFactory interface {
	NewSession(peer domain.ParticipantID, onFail func(error)) (Session, error)
}

type msg interface{ isMeshMsg() }

type snapshotMsg struct{ snap domain.Snapshot }

type relayedMsg struct{ ev protocol.Relayed }

type failedMsg struct {
	peer domain.ParticipantID
	gen  uint64
	err  error
}

type peersMsg struct{ reply chan []domain.ParticipantID }

func (snapshotMsg) isMeshMsg() {}
func (relayedMsg) isMeshMsg()  {}
func (failedMsg) isMeshMsg()   {}
func (peersMsg) isMeshMsg()    {}

type entry struct {
	sess      Session
	gen       uint64
	initiator bool
	answered  bool
}

// Manager owns every session of the local participant. All state below
// inbox is touched only by Run.
type Manager struct {
	local   domain.ParticipantID
	factory SessionFactory
	inbox   chan msg
	done    chan struct{}
	logger  zerolog.Logger

	sessions map[domain.ParticipantID]*entry
	required map[domain.ParticipantID]domain.Participant
	self     domain.Participant
	enabled  bool
	gen      uint64
}

func New(local domain.ParticipantID, factory SessionFactory) *Manager {
	return &Manager{
		local:    local,
		factory:  factory,
		inbox:    make(chan msg, 128),
		done:     make(chan struct{}),
		logger:   log.With().Str("module", "mesh").Str("local", string(local)).Logger(),
		sessions: make(map[domain.ParticipantID]*entry),
		required: make(map[domain.ParticipantID]domain.Participant),
	}
}

func (m *Manager) post(x msg) {
	select {
	case m.inbox <- x:
	case <-m.done:
	}
}

// Snapshot feeds a room_state into the mesh.
func (m *Manager) Snapshot(snap domain.Snapshot) { m.post(snapshotMsg{snap: snap}) }

// Relayed feeds a negotiation message from another participant.
func (m *Manager) Relayed(ev protocol.Relayed) { m.post(relayedMsg{ev: ev}) }

// Peers lists the peers that currently have a session.
func (m *Manager) Peers(ctx context.Context) ([]domain.ParticipantID, error) {
	reply := make(chan []domain.ParticipantID, 1)
	select {
	case m.inbox <- peersMsg{reply: reply}:
	case <-m.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case ids := <-reply:
		return ids, nil
	case <-m.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run processes the inbox until ctx ends, then closes every session.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			for _, id := range sortedKeys(m.sessions) {
				m.drop(id, "shutdown")
			}
			return nil
		case x := <-m.inbox:
			m.handle(x)
		}
	}
}

func (m *Manager) handle(x msg) {
	switch x := x.(type) {
	case snapshotMsg:
		m.onSnapshot(x.snap)
	case relayedMsg:
		m.onRelayed(x.ev)
	case failedMsg:
		e, ok := m.sessions[x.peer]
		if !ok || e.gen != x.gen {
			m.logger.Debug().Str("peer", string(x.peer)).Msg("stale failure ignored")
			return
		}
		m.logger.Warn().Err(x.err).Str("peer", string(x.peer)).Msg("session failed")
		m.drop(x.peer, "failed")
	case peersMsg:
		x.reply <- sortedKeys(m.sessions)
	}
}

func (m *Manager) onSnapshot(snap domain.Snapshot) {
	self, joined := snap.User(m.local)
	enabled := joined && self.AudioEnabled
	restart := enabled && !m.enabled
	m.enabled = enabled
	m.self = self
	m.required = Required(m.local, snap)

	plan := Reconcile(m.local, m.sessions, m.required, restart)
	for _, id := range plan.Teardown {
		m.drop(id, "not required")
	}
	for _, id := range plan.Initiate {
		m.start(id, true)
	}
	if len(plan.Await) > 0 {
		m.logger.Debug().Int("peers", len(plan.Await)).Msg("awaiting offers")
	}
	for id, e := range m.sessions {
		e.sess.Place(spatial.Place(m.self.Position, m.required[id].Position))
	}
}

func (m *Manager) onRelayed(ev protocol.Relayed) {
	logger := m.logger.With().Str("peer", string(ev.From)).Str("kind", string(ev.Kind)).Logger()
	e, exists := m.sessions[ev.From]

	switch ev.Kind {
	case protocol.KindOffer:
		if _, ok := m.required[ev.From]; !ok {
			logger.Info().Msg("offer from peer that is not required, dropped")
			return
		}
		if exists && e.initiator && !e.answered && Initiates(m.local, ev.From) {
			logger.Info().Msg("offer lost tie-break against ours, dropped")
			return
		}
		if exists {
			m.drop(ev.From, "superseded by new offer")
		}
		ne := m.start(ev.From, false)
		if ne == nil {
			return
		}
		if err := ne.sess.Answer(ev); err != nil {
			logger.Warn().Err(err).Msg("answer")
			m.drop(ev.From, "answer failed")
		}

	case protocol.KindAnswer:
		if !exists || !e.initiator {
			logger.Info().Msg("unexpected answer, dropped")
			return
		}
		if err := e.sess.HandleAnswer(ev); err != nil {
			logger.Warn().Err(err).Msg("apply answer")
			m.drop(ev.From, "answer failed")
			return
		}
		e.answered = true

	case protocol.KindCandidate:
		if !exists {
			logger.Debug().Msg("candidate without session, dropped")
			return
		}
		if err := e.sess.HandleCandidate(ev); err != nil {
			logger.Warn().Err(err).Msg("apply candidate")
		}
	}
}

func (m *Manager) start(peer domain.ParticipantID, initiator bool) *entry {
	m.gen++
	gen := m.gen
	sess, err := m.factory.NewSession(peer, func(err error) {
		m.post(failedMsg{peer: peer, gen: gen, err: err})
	})
	if err != nil {
		m.logger.Error().Err(err).Str("peer", string(peer)).Msg("new session")
		return nil
	}
	e := &entry{sess: sess, gen: gen, initiator: initiator}
	m.sessions[peer] = e
	sess.Place(spatial.Place(m.self.Position, m.required[peer].Position))
	m.logger.Info().Str("peer", string(peer)).Bool("initiator", initiator).Msg("session started")

	if initiator {
		if err := sess.Offer(); err != nil {
			m.logger.Warn().Err(err).Str("peer", string(peer)).Msg("offer")
			m.drop(peer, "offer failed")
			return nil
		}
	}
	return e
}

func (m *Manager) drop(peer domain.ParticipantID, reason string) {
	e, ok := m.sessions[peer]
	if !ok {
		return
	}
	delete(m.sessions, peer)
	if err := e.sess.Close(); err != nil {
		m.logger.Warn().Err(err).Str("peer", string(peer)).Msg("close session")
	}
	m.logger.Info().Str("peer", string(peer)).Str("reason", reason).Msg("session closed")
}

func sortedKeys(sessions map[domain.ParticipantID]*entry) []domain.ParticipantID {
	out := make([]domain.ParticipantID, 0, len(sessions))
	for id := range sessions {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}
