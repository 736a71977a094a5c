// Package session implements mesh sessions over pion peer connections.
package session

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/adapters/rtc"
	"github.com/dkeye/SeatVoice/internal/client/audio"
	"github.com/dkeye/SeatVoice/internal/client/mesh"
	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
	"github.com/dkeye/SeatVoice/internal/spatial"
)

// Sender delivers commands to the signaling server.
type Sender interface {
	Send(protocol.Command) error
}

type Config struct {
	WebRTC webrtc.Configuration
	// Local is the shared capture track; nil joins receive-only.
	Local  webrtc.TrackLocal
	Engine audio.Engine
	Sender Sender
}

type Factory struct {
	cfg Config
}

var _ mesh.SessionFactory = (*Factory)(nil)

func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

// NewSession opens a peer connection to peer and binds its remote audio to a
// fresh rendering pipeline.
func (f *Factory) NewSession(peer domain.ParticipantID, onFail func(error)) (mesh.Session, error) {
	conn, err := rtc.NewConnection(f.cfg.WebRTC, peer, f.cfg.Local)
	if err != nil {
		return nil, err
	}
	pipe := audio.NewPipeline(peer, f.cfg.Engine)
	s := &Session{peer: peer, conn: conn, pipe: pipe, out: f.cfg.Sender}

	pipe.AddCleanup(conn.Close)
	pipe.OnTeardown(func(reason error) {
		if reason != nil && onFail != nil {
			onFail(reason)
		}
	})
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		if err := s.send(protocol.KindCandidate, ci); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("peer", string(peer)).Msg("send candidate")
		}
	})
	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		pipe.Handle(audio.MediaArrived{Source: track})
	})
	conn.OnFailed(func(err error) {
		pipe.Handle(audio.Failed{Err: err})
	})
	return s, nil
}

type Session struct {
	peer domain.ParticipantID
	conn *rtc.Connection
	pipe *audio.Pipeline
	out  Sender
}

var _ mesh.Session = (*Session)(nil)

func (s *Session) send(kind protocol.NegotiationKind, v any) error {
	n, err := protocol.NewNegotiation(kind, s.peer, v)
	if err != nil {
		return err
	}
	return s.out.Send(n)
}

func (s *Session) Offer() error {
	sd, err := s.conn.CreateOffer()
	if err != nil {
		return err
	}
	return s.send(protocol.KindOffer, sd)
}

func (s *Session) Answer(offer protocol.Relayed) error {
	var sd webrtc.SessionDescription
	if err := offer.Decode(&sd); err != nil {
		return fmt.Errorf("%w: %v", rtc.ErrNegotiation, err)
	}
	answer, err := s.conn.ApplyOfferAndCreateAnswer(sd)
	if err != nil {
		return err
	}
	return s.send(protocol.KindAnswer, answer)
}

func (s *Session) HandleAnswer(answer protocol.Relayed) error {
	var sd webrtc.SessionDescription
	if err := answer.Decode(&sd); err != nil {
		return fmt.Errorf("%w: %v", rtc.ErrNegotiation, err)
	}
	return s.conn.ApplyAnswer(sd)
}

func (s *Session) HandleCandidate(candidate protocol.Relayed) error {
	var ci webrtc.ICECandidateInit
	if err := candidate.Decode(&ci); err != nil {
		return fmt.Errorf("%w: %v", rtc.ErrNegotiation, err)
	}
	return s.conn.AddICECandidate(ci)
}

func (s *Session) Place(p spatial.Placement) {
	s.pipe.Handle(audio.ListenerMoved{Placement: p})
}

// Close tears down rendering and the peer connection.
func (s *Session) Close() error {
	return s.pipe.Close()
}
