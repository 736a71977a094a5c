package app

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

func toStrings(ids []domain.ParticipantID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func TestRelayForwardsWithinRoom(t *testing.T) {
	reg := NewRegistry()
	a, b, c := newFakeConn(), newFakeConn(), newFakeConn()
	reg.Bind("a", "main", "t1", a, nil)
	reg.Bind("b", "main", "t2", b, nil)
	reg.Bind("c", "other", "t3", c, nil)
	relay := NewRelay(reg)

	body := map[string]json.RawMessage{"offer": json.RawMessage(`{"type":"offer","sdp":"v=0"}`)}
	require.NoError(t, relay.Forward(context.Background(), protocol.KindOffer, "a", "b", body))

	ev, ok := recvEvent(t, b).(protocol.Relayed)
	require.True(t, ok)
	assert.Equal(t, protocol.KindOffer, ev.Kind)
	assert.Equal(t, "a", string(ev.From))
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(ev.Body["offer"]))

	assert.ErrorIs(t, relay.Forward(context.Background(), protocol.KindOffer, "a", "c", body), ErrTargetElsewhere)
	assert.ErrorIs(t, relay.Forward(context.Background(), protocol.KindOffer, "a", "zz", body), ErrTargetUnknown)

	b.setFull(true)
	assert.ErrorIs(t, relay.Forward(context.Background(), protocol.KindCandidate, "a", "b", body), ErrTargetSlow)

	assert.Equal(t, RelayStats{Delivered: 1, Missed: 3}, relay.Stats())
	requireQuiet(t, a)
	requireQuiet(t, c)
}

func TestRegistryCancelAndMembers(t *testing.T) {
	reg := NewRegistry()
	canceled := false
	reg.Bind("a", "main", "tok", newFakeConn(), func() { canceled = true })
	reg.Bind("b", "side", "tok2", newFakeConn(), nil)

	assert.Equal(t, 2, reg.Count())
	assert.ElementsMatch(t, []string{"a"}, toStrings(reg.MembersOfRoom("main")))
	assert.Equal(t, "tok", reg.ClientToken("a"))

	assert.True(t, reg.Cancel("a"))
	assert.True(t, canceled)
	assert.False(t, reg.Cancel("nobody"))

	reg.Unbind("a")
	_, ok := reg.RoomOf("a")
	assert.False(t, ok)
}
