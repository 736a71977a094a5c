package orch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/app"
	"github.com/dkeye/SeatVoice/internal/core"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

type chanConn struct{ out chan core.Frame }

func (c chanConn) TrySend(f core.Frame) error {
	select {
	case c.out <- f:
		return nil
	default:
		return assert.AnError
	}
}

func (chanConn) Close() {}

func next(t *testing.T, c chanConn) protocol.Event {
	t.Helper()
	select {
	case f := <-c.out:
		ev, err := protocol.DecodeEvent(f)
		require.NoError(t, err)
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout")
		return nil
	}
}

func TestOrchestratorRoutesCommandsAndNegotiation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o := New(ctx, app.RoomOptions{Grid: core.DefaultGrid()})

	a := chanConn{out: make(chan core.Frame, 16)}
	b := chanConn{out: make(chan core.Frame, 16)}
	o.Connect("a", "main", "ta", a, func() {})
	o.Connect("b", "main", "tb", b, func() {})
	for _, c := range []chanConn{a, b} {
		_ = next(t, c) // welcome
		_ = next(t, c) // room_state
	}

	o.Dispatch(ctx, "a", protocol.Join{Name: "Ann", SeatID: "seat-1-1"})
	st, ok := next(t, b).(protocol.RoomState)
	require.True(t, ok)
	require.Len(t, st.Users, 1)
	_ = next(t, a)

	n, err := protocol.NewNegotiation(protocol.KindAnswer, "a", map[string]string{"type": "answer", "sdp": "x"})
	require.NoError(t, err)
	o.Dispatch(ctx, "b", n)
	rel, ok := next(t, a).(protocol.Relayed)
	require.True(t, ok)
	assert.Equal(t, "b", string(rel.From))

	o.Disconnect("a")
	o.Disconnect("a")
	st, ok = next(t, b).(protocol.RoomState)
	require.True(t, ok)
	assert.Empty(t, st.Users)

	rooms := o.Rooms.List(ctx)
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].ConnectionCount)
}

func TestOrchestratorEvictRoomCancelsConnections(t *testing.T) {
	o := New(context.Background(), app.RoomOptions{Grid: core.DefaultGrid()})
	canceled := make(chan struct{}, 1)
	c := chanConn{out: make(chan core.Frame, 16)}
	o.Connect("a", "gone", "t", c, func() { canceled <- struct{}{} })

	o.EvictRoom("gone")
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("connection not canceled")
	}
	_, ok := o.Rooms.GetRoom("gone")
	assert.False(t, ok)
}
