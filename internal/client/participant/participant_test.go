package participant

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	router "github.com/dkeye/SeatVoice/internal/adapters/http"
	"github.com/dkeye/SeatVoice/internal/app"
	"github.com/dkeye/SeatVoice/internal/app/orch"
	"github.com/dkeye/SeatVoice/internal/config"
	"github.com/dkeye/SeatVoice/internal/core"
	"github.com/dkeye/SeatVoice/internal/domain"
)

func seatOf(t *testing.T, o *orch.Orchestrator, name string) domain.SeatID {
	t.Helper()
	room, ok := o.Rooms.GetRoom("main")
	if !ok {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := room.Snapshot(ctx)
	if err != nil {
		return ""
	}
	for _, u := range snap.Users {
		if u.Name == name {
			return u.SeatID
		}
	}
	return ""
}

func TestRunJoinsAndFollowsInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		PingPeriod: time.Minute,
		Secret:     "test-secret",
		Room:       config.RoomConfig{Grid: core.DefaultGrid(), SendBuffer: 32},
	}
	o := orch.New(ctx, app.RoomOptions{Grid: cfg.Room.Grid})
	srv := httptest.NewServer(router.SetupRouter(ctx, cfg, o, nil))
	defer srv.Close()

	input := make(chan string)
	runCtx, stop := context.WithCancel(ctx)
	result := make(chan error, 1)
	go func() {
		result <- Run(runCtx, Config{
			Server:   srv.URL,
			Room:     "main",
			Name:     "Bot",
			Seat:     "seat-0-1",
			Output:   t.TempDir(),
			Channels: 2,
			Volume:   true,
		}, input)
	}()

	require.Eventually(t, func() bool { return seatOf(t, o, "Bot") == "seat-0-1" }, 2*time.Second, 20*time.Millisecond)

	input <- "/move seat-2-2"
	require.Eventually(t, func() bool { return seatOf(t, o, "Bot") == "seat-2-2" }, 2*time.Second, 20*time.Millisecond)

	stop()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("participant did not stop")
	}
	require.Eventually(t, func() bool { return o.Registry.Count() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestRunFailsWithoutServer(t *testing.T) {
	err := Run(context.Background(), Config{Server: "http://127.0.0.1:1", Room: "main"}, nil)
	require.Error(t, err)
}
