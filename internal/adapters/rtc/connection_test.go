package rtc

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noICE() webrtc.Configuration { return webrtc.Configuration{} }

func TestNegotiationErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := error(&NegotiationError{Op: "apply offer", Peer: "p", Err: cause})
	assert.ErrorIs(t, err, ErrNegotiation)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "apply offer with p: boom", err.Error())
}

func TestOfferAnswerWithEarlyCandidates(t *testing.T) {
	a, err := NewConnection(noICE(), "b", nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewConnection(noICE(), "a", nil)
	require.NoError(t, err)
	defer b.Close()

	offer, err := a.CreateOffer()
	require.NoError(t, err)

	// Candidates reaching b before its remote description must be held.
	mid, idx := "0", uint16(0)
	early := webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
	require.NoError(t, b.AddICECandidate(early))
	b.mu.Lock()
	assert.Len(t, b.pending, 1)
	b.mu.Unlock()

	answer, err := b.ApplyOfferAndCreateAnswer(*offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	b.mu.Lock()
	assert.Empty(t, b.pending)
	b.mu.Unlock()

	require.NoError(t, a.ApplyAnswer(*answer))
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewConnection(noICE(), "p", nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
