package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/domain"
)

// ErrNegotiation marks every failure of offer/answer/candidate handling.
var ErrNegotiation = errors.New("negotiation failed")

// NegotiationError records which negotiation step failed for which peer.
type NegotiationError struct {
	Op   string
	Peer domain.ParticipantID
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

func (e *NegotiationError) Is(target error) bool { return target == ErrNegotiation }

func DefaultWebRTCConfig(stun ...string) webrtc.Configuration {
	if len(stun) == 0 {
		stun = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stun}},
	}
}

// Connection is one peer-to-peer audio link. Remote candidates received
// before the remote description are held back and applied once it is set.
type Connection struct {
	pc     *webrtc.PeerConnection
	peer   domain.ParticipantID
	logger zerolog.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onFailed func(error)

	closeOnce sync.Once
}

// NewConnection opens a peer connection to peer. When local is nil the
// connection only receives audio.
func NewConnection(cfg webrtc.Configuration, peer domain.ParticipantID, local webrtc.TrackLocal) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, &NegotiationError{Op: "new peer connection", Peer: peer, Err: err}
	}
	c := &Connection{
		pc:     pc,
		peer:   peer,
		logger: log.With().Str("module", "webrtc").Str("peer", string(peer)).Logger(),
	}
	if local != nil {
		_, err = pc.AddTrack(local)
	} else {
		_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
	}
	if err != nil {
		_ = pc.Close()
		return nil, &NegotiationError{Op: "add audio", Peer: peer, Err: err}
	}
	c.bind()
	return c, nil
}

func (c *Connection) bind() {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed {
			c.fail("connection state", errors.New(s.String()))
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(track, receiver)
		}
	})
}

func (c *Connection) fail(op string, err error) {
	c.mu.Lock()
	fn := c.onFailed
	c.mu.Unlock()
	if fn != nil {
		fn(&NegotiationError{Op: op, Peer: c.peer, Err: err})
	}
}

// CreateOffer sets and returns a local offer without waiting for ICE
// gathering; candidates follow through OnICECandidate.
func (c *Connection) CreateOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, &NegotiationError{Op: "create offer", Peer: c.peer, Err: err}
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, &NegotiationError{Op: "set local offer", Peer: c.peer, Err: err}
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return &NegotiationError{Op: "apply answer", Peer: c.peer, Err: err}
	}
	return c.flushCandidates()
}

func (c *Connection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, &NegotiationError{Op: "apply offer", Peer: c.peer, Err: err}
	}
	if err := c.flushCandidates(); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, &NegotiationError{Op: "create answer", Peer: c.peer, Err: err}
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, &NegotiationError{Op: "set local answer", Peer: c.peer, Err: err}
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	c.mu.Lock()
	if !c.remoteSet && c.pc.RemoteDescription() == nil {
		c.pending = append(c.pending, ci)
		c.mu.Unlock()
		c.logger.Debug().Int("pending", len(c.pending)).Msg("candidate buffered")
		return nil
	}
	c.mu.Unlock()
	if err := c.pc.AddICECandidate(ci); err != nil {
		return &NegotiationError{Op: "add candidate", Peer: c.peer, Err: err}
	}
	return nil
}

func (c *Connection) flushCandidates() error {
	c.mu.Lock()
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, ci := range pending {
		if err := c.pc.AddICECandidate(ci); err != nil {
			return &NegotiationError{Op: "add buffered candidate", Peer: c.peer, Err: err}
		}
	}
	return nil
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

// OnTrack sets application-level callback for remote tracks.
func (c *Connection) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

// OnFailed is called once the transport reports a terminal failure.
func (c *Connection) OnFailed(fn func(error)) {
	c.mu.Lock()
	c.onFailed = fn
	c.mu.Unlock()
}

// Close shuts the peer connection; repeated calls are no-ops.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.onFailed = nil
		c.onICE = nil
		c.onTrack = nil
		c.mu.Unlock()
		if err = c.pc.Close(); err != nil {
			c.logger.Error().Err(err).Msg("close error")
			return
		}
		c.logger.Info().Msg("closed")
	})
	return err
}
