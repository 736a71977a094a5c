package device

import (
	"errors"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"

	"github.com/dkeye/SeatVoice/internal/client/audio"
	"github.com/dkeye/SeatVoice/internal/domain"
)

// sink reads the remote track until it ends or the sink is stopped. While
// unmuted it plays every packet itself; a connected stage plays packets only
// while its gain is above zero.
type sink struct {
	peer   domain.ParticipantID
	src    audio.Source
	out    *output
	logger zerolog.Logger

	muted   atomic.Bool
	stopped atomic.Bool
	tap     atomic.Pointer[gainNode]
	done    chan struct{}
}

func (s *sink) SetMuted(m bool) { s.muted.Store(m) }

// Stop detaches the sink. The read loop exits with the next packet or when
// the track ends.
func (s *sink) Stop() error {
	if s.stopped.Swap(true) {
		return nil
	}
	s.logger.Info().
		Int64("read", s.out.read.Load()).
		Int64("written", s.out.written.Load()).
		Int64("silenced", s.out.silenced.Load()).
		Msg("sink stopped")
	return nil
}

func (s *sink) loop() {
	defer close(s.done)
	for {
		if s.stopped.Load() {
			return
		}
		pkt, _, err := s.src.ReadRTP()
		if err != nil {
			s.logger.Info().Err(err).Msg("sink read ended")
			return
		}
		if s.stopped.Load() {
			return
		}
		s.out.read.Add(1)
		s.forward(pkt)
	}
}

// forward renders pkt at the levels of the connected stage, or at unity when
// the unmuted sink plays it itself.
func (s *sink) forward(pkt *rtp.Packet) {
	lv, audible := unity, !s.muted.Load()
	if n := s.tap.Load(); n != nil && n.gain() > 0 {
		lv, audible = n.levels(), true
	}
	if !audible {
		s.out.silenced.Add(1)
		return
	}
	if err := s.out.write(pkt, lv); err != nil {
		if errors.Is(err, ErrClosed) {
			s.logger.Debug().Msg("packet after recorder close dropped")
			return
		}
		s.logger.Error().Err(err).Msg("write packet")
	}
}
