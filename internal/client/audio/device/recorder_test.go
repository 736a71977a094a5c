package device

import (
	"io"
	"math"
	"os"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/client/audio"
	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/spatial"
)

type chanSource chan *rtp.Packet

func (c chanSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, ok := <-c
	if !ok {
		return nil, nil, io.EOF
	}
	return pkt, nil, nil
}

func packet(seq uint16) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: seq, Timestamp: uint32(seq) * 960, SSRC: 1},
		Payload: []byte{0xf8, 0xff, 0xfe},
	}
}

func push(src chanSource, from, n int) {
	for i := 0; i < n; i++ {
		src <- packet(uint16(from + i))
	}
}

func TestStagesRequireDeviceCapabilities(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 1})
	require.NoError(t, err)
	src := make(chanSource)
	defer close(src)

	s, err := rec.OpenSink("p", src)
	require.NoError(t, err)
	defer s.Stop()

	assert.ErrorIs(t, rec.BuildSpatial(audio.NewGraph(), s), audio.ErrStageUnavailable)
	assert.ErrorIs(t, rec.BuildGain(audio.NewGraph(), s), audio.ErrStageUnavailable)
	assert.NoError(t, rec.BuildDirect(audio.NewGraph(), s))
}

func TestDirectPlaybackWritesEveryPacket(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 1})
	require.NoError(t, err)
	src := make(chanSource)

	p := audio.NewPipeline("peer", rec)
	p.Handle(audio.MediaArrived{Source: src})
	require.Equal(t, audio.ModeDirect, p.State().Mode)

	push(src, 0, 3)
	close(src)
	require.Eventually(t, func() bool { return rec.Stats("peer").Written == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, rec.Close())
	info, err := os.Stat(rec.Path("peer"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSpatialPlaybackFollowsGain(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 2, Volume: true})
	require.NoError(t, err)
	src := make(chanSource)
	defer close(src)

	p := audio.NewPipeline("peer", rec)
	far := spatial.Place(domain.Position{X: 20, Y: 20}, domain.Position{X: 80, Y: 80})
	p.Handle(audio.ListenerMoved{Placement: far})
	p.Handle(audio.MediaArrived{Source: src})
	require.Equal(t, audio.ModeSpatial, p.State().Mode)

	push(src, 0, 2)
	require.Eventually(t, func() bool { return rec.Stats("peer").Silenced == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, rec.Stats("peer").Written)

	near := spatial.Place(domain.Position{X: 20, Y: 20}, domain.Position{X: 40, Y: 20})
	p.Handle(audio.ListenerMoved{Placement: near})
	push(src, 2, 2)
	require.Eventually(t, func() bool { return rec.Stats("peer").Written == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, rec.Close())
}

func TestGainStageWithoutStereo(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 1, Volume: true})
	require.NoError(t, err)
	src := make(chanSource)
	defer close(src)

	p := audio.NewPipeline("peer", rec)
	p.Handle(audio.MediaArrived{Source: src})
	assert.Equal(t, audio.ModeGain, p.State().Mode)
	require.NoError(t, p.Close())
}

func render(t *testing.T, rec *Recorder, peer domain.ParticipantID, listener, source domain.Position) Stats {
	t.Helper()
	src := make(chanSource)
	defer close(src)

	p := audio.NewPipeline(peer, rec)
	p.Handle(audio.ListenerMoved{Placement: spatial.Place(listener, source)})
	p.Handle(audio.MediaArrived{Source: src})
	push(src, 0, 5)
	require.Eventually(t, func() bool { return rec.Stats(peer).Written == 5 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close())
	return rec.Stats(peer)
}

func TestSpatialStagePansByDirection(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 2, Volume: true})
	require.NoError(t, err)
	defer rec.Close()

	listener := domain.Position{X: 50, Y: 50}
	want := spatial.Gain(20)

	left := render(t, rec, "left", listener, domain.Position{X: 30, Y: 50})
	assert.InDelta(t, want, left.Gain, 1e-9)
	assert.InDelta(t, want, left.Left, 1e-9)
	assert.InDelta(t, 0, left.Right, 1e-9)

	right := render(t, rec, "right", listener, domain.Position{X: 70, Y: 50})
	assert.InDelta(t, want, right.Gain, 1e-9)
	assert.InDelta(t, 0, right.Left, 1e-9)
	assert.InDelta(t, want, right.Right, 1e-9)

	ahead := render(t, rec, "ahead", listener, domain.Position{X: 50, Y: 30})
	assert.InDelta(t, ahead.Left, ahead.Right, 1e-9)
	assert.InDelta(t, want*math.Sqrt2/2, ahead.Left, 1e-9)
}

func TestGainStageReportsContinuousGain(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 1, Volume: true})
	require.NoError(t, err)
	defer rec.Close()

	listener := domain.Position{X: 20, Y: 20}
	near := render(t, rec, "near", listener, domain.Position{X: 40, Y: 20})
	far := render(t, rec, "far", listener, domain.Position{X: 80, Y: 40})

	assert.InDelta(t, spatial.Gain(20), near.Gain, 1e-9)
	assert.InDelta(t, near.Gain, near.Left, 1e-9)
	assert.InDelta(t, near.Gain, near.Right, 1e-9)
	assert.InDelta(t, spatial.Gain(math.Hypot(60, 20)), far.Gain, 1e-9)
	assert.Less(t, far.Gain, near.Gain)
	assert.Positive(t, far.Gain)
}

func TestDirectPlaybackRendersAtUnity(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 1})
	require.NoError(t, err)
	defer rec.Close()

	st := render(t, rec, "peer", domain.Position{X: 20, Y: 20}, domain.Position{X: 60, Y: 20})
	assert.Equal(t, Stats{Read: 5, Written: 5, Gain: 1, Left: 1, Right: 1}, st)
}

func TestRecorderCloseIsFinal(t *testing.T) {
	rec, err := NewRecorder(Options{Dir: t.TempDir(), Channels: 1})
	require.NoError(t, err)
	src := make(chanSource)
	defer close(src)

	p := audio.NewPipeline("peer", rec)
	defer p.Close()
	p.Handle(audio.MediaArrived{Source: src})
	push(src, 0, 3)
	require.Eventually(t, func() bool { return rec.Stats("peer").Written == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, rec.Close())
	before, err := os.Stat(rec.Path("peer"))
	require.NoError(t, err)

	// The second push returns only once the first late packet was handled.
	push(src, 3, 2)
	after, err := os.Stat(rec.Path("peer"))
	require.NoError(t, err)
	assert.Equal(t, before.Size(), after.Size())
	assert.Equal(t, int64(3), rec.Stats("peer").Written)

	assert.Equal(t, Stats{}, rec.Stats("ghost"))
	_, err = rec.OpenSink("other", make(chanSource))
	require.ErrorIs(t, err, ErrClosed)
	rec.mu.Lock()
	assert.Len(t, rec.outputs, 1)
	rec.mu.Unlock()
}
