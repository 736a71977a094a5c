package session

import (
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/client/audio/device"
	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

type captureSender struct {
	mu   sync.Mutex
	sent []protocol.Negotiation
}

func (c *captureSender) Send(cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd.(protocol.Negotiation))
	return nil
}

// first returns the first message of kind, as the peer would receive it.
func (c *captureSender) first(t *testing.T, kind protocol.NegotiationKind, from domain.ParticipantID) protocol.Relayed {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.sent {
		if n.Kind == kind {
			return protocol.Relayed{Kind: n.Kind, From: from, Body: n.Body}
		}
	}
	t.Fatalf("no %s sent", kind)
	return protocol.Relayed{}
}

func newFactory(t *testing.T, out *captureSender) *Factory {
	rec, err := device.NewRecorder(device.Options{Dir: t.TempDir(), Channels: 2, Volume: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })
	return NewFactory(Config{WebRTC: webrtc.Configuration{}, Engine: rec, Sender: out})
}

func TestSessionsNegotiateThroughRelayedMessages(t *testing.T) {
	outA, outB := &captureSender{}, &captureSender{}
	a, err := newFactory(t, outA).NewSession("b", nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := newFactory(t, outB).NewSession("a", nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Offer())
	offer := outA.first(t, protocol.KindOffer, "a")
	assert.Equal(t, domain.ParticipantID("a"), offer.From)

	require.NoError(t, b.Answer(offer))
	answer := outB.first(t, protocol.KindAnswer, "b")
	require.NoError(t, a.HandleAnswer(answer))

	outA.mu.Lock()
	assert.Equal(t, domain.ParticipantID("b"), outA.sent[0].Target)
	outA.mu.Unlock()
}

func TestSessionRejectsMalformedDescription(t *testing.T) {
	s, err := newFactory(t, &captureSender{}).NewSession("b", nil)
	require.NoError(t, err)
	defer s.Close()

	bad := protocol.Relayed{Kind: protocol.KindAnswer, From: "b", Body: nil}
	assert.Error(t, s.HandleAnswer(bad))
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, err := newFactory(t, &captureSender{}).NewSession("b", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
