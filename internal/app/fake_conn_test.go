package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/core"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

var errFull = errors.New("full")

type fakeConn struct {
	mu     sync.Mutex
	full   bool
	closed bool
	out    chan core.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{out: make(chan core.Frame, 64)}
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errFull
	}
	select {
	case c.out <- f:
		return nil
	default:
		return errFull
	}
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) setFull(v bool) {
	c.mu.Lock()
	c.full = v
	c.mu.Unlock()
}

func recvEvent(t *testing.T, c *fakeConn) protocol.Event {
	t.Helper()
	select {
	case f := <-c.out:
		ev, err := protocol.DecodeEvent(f)
		require.NoError(t, err)
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func recvState(t *testing.T, c *fakeConn) protocol.RoomState {
	t.Helper()
	ev := recvEvent(t, c)
	st, ok := ev.(protocol.RoomState)
	require.Truef(t, ok, "want room_state, got %T", ev)
	return st
}

func requireQuiet(t *testing.T, c *fakeConn) {
	t.Helper()
	require.Len(t, c.out, 0)
}
