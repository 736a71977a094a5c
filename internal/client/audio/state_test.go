package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/spatial"
)

func TestTransitionHappyPath(t *testing.T) {
	s := State{}
	s, eff := Transition(s, MediaArrived{})
	assert.Equal(t, MediaAttached, s.Phase)
	require.Len(t, eff, 1)
	assert.IsType(t, CreateSink{}, eff[0])

	s, eff = Transition(s, SinkCreated{})
	assert.Equal(t, GraphBuilding, s.Phase)
	assert.Equal(t, []Effect{BuildStage{Mode: ModeSpatial}}, eff)

	pl := spatial.Placement{DX: 1, Distance: 20, Gain: 0.9}
	s, eff = Transition(s, ListenerMoved{Placement: pl})
	assert.Empty(t, eff, "no params before a stage is connected")

	s, eff = Transition(s, StageBuilt{Mode: ModeSpatial})
	assert.Equal(t, Rendering, s.Phase)
	assert.Equal(t, []Effect{ApplyParams{Mode: ModeSpatial, Placement: pl}, MuteSink{}}, eff)
}

func TestTransitionFallsBackThroughTiers(t *testing.T) {
	errNoStereo := errors.New("mono device")
	s := State{Phase: GraphBuilding, Mode: ModeSpatial}

	s, eff := Transition(s, StageFailed{Mode: ModeSpatial, Err: errNoStereo})
	assert.Equal(t, ModeGain, s.Mode)
	assert.Equal(t, []Effect{
		LogDegradation{From: ModeSpatial, To: ModeGain, Err: errNoStereo},
		BuildStage{Mode: ModeGain},
	}, eff)

	s, eff = Transition(s, StageFailed{Mode: ModeGain, Err: errNoStereo})
	assert.Equal(t, ModeDirect, s.Mode)
	require.Len(t, eff, 2)

	direct, eff := Transition(s, StageBuilt{Mode: ModeDirect})
	assert.Equal(t, Rendering, direct.Phase)
	assert.Empty(t, eff, "direct playback keeps the sink audible")

	_, eff = Transition(direct, ListenerMoved{Placement: spatial.Placement{Gain: 0.5}})
	assert.Empty(t, eff)

	closed, eff := Transition(s, StageFailed{Mode: ModeDirect, Err: errNoStereo})
	assert.Equal(t, Closed, closed.Phase)
	require.Len(t, eff, 1)
	td := eff[0].(Teardown)
	assert.ErrorIs(t, td.Reason, ErrCriticalSession)
}

func TestTransitionIgnoresStaleEvents(t *testing.T) {
	s := State{Phase: GraphBuilding, Mode: ModeGain}
	next, eff := Transition(s, StageBuilt{Mode: ModeSpatial})
	assert.Equal(t, s, next)
	assert.Empty(t, eff)

	next, eff = Transition(State{Phase: Negotiating}, SinkCreated{})
	assert.Equal(t, Negotiating, next.Phase)
	assert.Empty(t, eff)
}

func TestTransitionNewTrackRecreatesSink(t *testing.T) {
	s := State{Phase: Rendering, Mode: ModeSpatial}
	s, eff := Transition(s, MediaArrived{})
	assert.Equal(t, MediaAttached, s.Phase)
	assert.Equal(t, ModeNone, s.Mode)
	require.Len(t, eff, 2)
	assert.Equal(t, ReleaseGraph{}, eff[0])
	assert.IsType(t, CreateSink{}, eff[1])
}

func TestTransitionClosedAbsorbsEverything(t *testing.T) {
	s, eff := Transition(State{Phase: Rendering, Mode: ModeGain}, Close{})
	assert.Equal(t, Closed, s.Phase)
	assert.Equal(t, []Effect{Teardown{}}, eff)

	for _, ev := range []Event{Close{}, Failed{Err: errors.New("x")}, MediaArrived{}, SinkCreated{}, ListenerMoved{}} {
		next, eff := Transition(s, ev)
		assert.Equal(t, s, next)
		assert.Empty(t, eff)
	}
}
