// Package audio renders one remote participant's audio stream.
//
// Rendering is modeled as a pure state machine (Transition) whose effects are
// executed by a Pipeline against an Engine. The graph is built in tiers:
// spatial, then distance-only gain, then direct playback of the sink.
package audio

import (
	"errors"
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"

	"github.com/dkeye/SeatVoice/internal/spatial"
)

var (
	// ErrStageUnavailable is returned by an Engine that cannot build a tier.
	ErrStageUnavailable = errors.New("stage unavailable")
	// ErrCriticalSession ends a session whose every rendering tier failed
	// or whose setup panicked.
	ErrCriticalSession = errors.New("critical session failure")
)

// Source is an inbound RTP stream, satisfied by *webrtc.TrackRemote.
type Source interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

type Phase int

const (
	Negotiating Phase = iota
	MediaAttached
	GraphBuilding
	Rendering
	Closed
)

func (p Phase) String() string {
	switch p {
	case Negotiating:
		return "negotiating"
	case MediaAttached:
		return "media_attached"
	case GraphBuilding:
		return "graph_building"
	case Rendering:
		return "rendering"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type Mode int

const (
	ModeNone Mode = iota
	ModeSpatial
	ModeGain
	ModeDirect
)

func (m Mode) String() string {
	switch m {
	case ModeSpatial:
		return "spatial"
	case ModeGain:
		return "gain"
	case ModeDirect:
		return "direct"
	default:
		return "none"
	}
}

// next is the fallback tier of m.
func (m Mode) next() Mode {
	switch m {
	case ModeSpatial:
		return ModeGain
	case ModeGain:
		return ModeDirect
	default:
		return ModeNone
	}
}

type State struct {
	Phase Phase
	// Mode is the tier being built while GraphBuilding and the active tier
	// while Rendering.
	Mode      Mode
	Placement spatial.Placement
}

type Event interface{ isEvent() }

type (
	MediaArrived  struct{ Source Source }
	SinkCreated   struct{}
	StageBuilt    struct{ Mode Mode }
	StageFailed   struct {
		Mode Mode
		Err  error
	}
	ListenerMoved struct{ Placement spatial.Placement }
	Failed        struct{ Err error }
	Close         struct{}
)

func (MediaArrived) isEvent()  {}
func (SinkCreated) isEvent()   {}
func (StageBuilt) isEvent()    {}
func (StageFailed) isEvent()   {}
func (ListenerMoved) isEvent() {}
func (Failed) isEvent()        {}
func (Close) isEvent()         {}

type Effect interface{ isEffect() }

type (
	// ReleaseGraph stops the current sink and disconnects its graph while
	// keeping the session.
	ReleaseGraph struct{}
	CreateSink   struct{ Source Source }
	BuildStage   struct{ Mode Mode }
	MuteSink     struct{}
	ApplyParams  struct {
		Mode      Mode
		Placement spatial.Placement
	}
	LogDegradation struct {
		From, To Mode
		Err      error
	}
	Teardown struct{ Reason error }
)

func (ReleaseGraph) isEffect()   {}
func (CreateSink) isEffect()     {}
func (BuildStage) isEffect()     {}
func (MuteSink) isEffect()       {}
func (ApplyParams) isEffect()    {}
func (LogDegradation) isEffect() {}
func (Teardown) isEffect()       {}

// Transition is the whole rendering policy. It never touches the engine.
func Transition(s State, ev Event) (State, []Effect) {
	if s.Phase == Closed {
		return s, nil
	}

	switch ev := ev.(type) {
	case Close:
		s.Phase = Closed
		return s, []Effect{Teardown{}}

	case Failed:
		s.Phase = Closed
		return s, []Effect{Teardown{Reason: fmt.Errorf("%w: %v", ErrCriticalSession, ev.Err)}}

	case MediaArrived:
		var effects []Effect
		if s.Phase != Negotiating {
			effects = append(effects, ReleaseGraph{})
		}
		s.Phase = MediaAttached
		s.Mode = ModeNone
		return s, append(effects, CreateSink{Source: ev.Source})

	case SinkCreated:
		if s.Phase != MediaAttached {
			return s, nil
		}
		s.Phase = GraphBuilding
		s.Mode = ModeSpatial
		return s, []Effect{BuildStage{Mode: ModeSpatial}}

	case StageBuilt:
		if s.Phase != GraphBuilding || ev.Mode != s.Mode {
			return s, nil
		}
		s.Phase = Rendering
		effects := []Effect{}
		if ev.Mode != ModeDirect {
			// The stage is given its levels before the sink goes quiet.
			effects = append(effects, ApplyParams{Mode: ev.Mode, Placement: s.Placement}, MuteSink{})
		}
		return s, effects

	case StageFailed:
		if s.Phase != GraphBuilding || ev.Mode != s.Mode {
			return s, nil
		}
		next := ev.Mode.next()
		if next == ModeNone {
			s.Phase = Closed
			return s, []Effect{Teardown{Reason: fmt.Errorf("%w: %s: %v", ErrCriticalSession, ev.Mode, ev.Err)}}
		}
		s.Mode = next
		return s, []Effect{
			LogDegradation{From: ev.Mode, To: next, Err: ev.Err},
			BuildStage{Mode: next},
		}

	case ListenerMoved:
		s.Placement = ev.Placement
		if s.Phase == Rendering && s.Mode != ModeDirect {
			return s, []Effect{ApplyParams{Mode: s.Mode, Placement: ev.Placement}}
		}
		return s, nil
	}
	return s, nil
}
