package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"

	"github.com/dkeye/SeatVoice/internal/domain"
)

// safely runs f and turns a panic into an error.
func safely(f func() error) (err error) {
	var pc panics.Catcher
	pc.Try(func() { err = f() })
	if r := pc.Recovered(); r != nil {
		return fmt.Errorf("%w: %v", ErrCriticalSession, r.AsError())
	}
	return err
}

// Pipeline drives Transition for one remote peer. Events are handled one at a
// time; effects that produce follow-up events are executed before Handle
// returns.
type Pipeline struct {
	peer   domain.ParticipantID
	engine Engine
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	sink    Sink
	graph   *Graph
	cleanup []func() error

	torn        bool
	teardownErr error
	onTeardown  func(reason error)
}

func NewPipeline(peer domain.ParticipantID, engine Engine) *Pipeline {
	return &Pipeline{
		peer:   peer,
		engine: engine,
		logger: log.With().Str("module", "audio").Str("peer", string(peer)).Logger(),
	}
}

// AddCleanup registers an extra teardown step, such as closing the
// negotiation channel. Steps run in registration order.
func (p *Pipeline) AddCleanup(fn func() error) {
	p.mu.Lock()
	p.cleanup = append(p.cleanup, fn)
	p.mu.Unlock()
}

// OnTeardown is told why the pipeline closed; reason is nil for a requested
// close.
func (p *Pipeline) OnTeardown(fn func(reason error)) {
	p.mu.Lock()
	p.onTeardown = fn
	p.mu.Unlock()
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Handle(ev Event) {
	p.mu.Lock()
	notify, reason := p.run(ev)
	p.mu.Unlock()
	if notify != nil {
		notify(reason)
	}
}

// Close tears the pipeline down and reports what failed along the way.
// Calling it again returns the same result.
func (p *Pipeline) Close() error {
	p.Handle(Close{})
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.teardownErr
}

func (p *Pipeline) run(ev Event) (notify func(error), reason error) {
	queue := []Event{ev}
	for len(queue) > 0 {
		next, effects := Transition(p.state, queue[0])
		queue = queue[1:]
		if next.Phase != p.state.Phase {
			p.logger.Debug().Stringer("from", p.state.Phase).Stringer("to", next.Phase).Msg("phase")
		}
		p.state = next
		for _, eff := range effects {
			if t, ok := eff.(Teardown); ok {
				if p.teardown(t.Reason) {
					notify, reason = p.onTeardown, t.Reason
				}
				continue
			}
			if follow := p.exec(eff); follow != nil {
				queue = append(queue, follow)
			}
		}
	}
	return notify, reason
}

func (p *Pipeline) exec(eff Effect) Event {
	switch e := eff.(type) {
	case ReleaseGraph:
		if err := p.releaseMedia(); err != nil {
			p.logger.Warn().Err(err).Msg("release graph")
		}
	case CreateSink:
		var sink Sink
		err := safely(func() error {
			var err error
			sink, err = p.engine.OpenSink(p.peer, e.Source)
			return err
		})
		if err != nil {
			return Failed{Err: fmt.Errorf("open sink: %w", err)}
		}
		p.sink = sink
		p.graph = NewGraph()
		return SinkCreated{}
	case BuildStage:
		err := safely(func() error { return p.build(e.Mode) })
		if err != nil {
			if rerr := p.graph.release(); rerr != nil {
				p.logger.Warn().Err(rerr).Stringer("mode", e.Mode).Msg("release partial stage")
			}
			return StageFailed{Mode: e.Mode, Err: err}
		}
		p.logger.Info().Stringer("mode", e.Mode).Int("nodes", p.graph.Len()).Msg("rendering")
		return StageBuilt{Mode: e.Mode}
	case MuteSink:
		p.sink.SetMuted(true)
	case ApplyParams:
		p.graph.apply(e.Placement)
	case LogDegradation:
		p.logger.Warn().Err(e.Err).Stringer("from", e.From).Stringer("to", e.To).Msg("rendering degraded")
	}
	return nil
}

func (p *Pipeline) build(m Mode) error {
	switch m {
	case ModeSpatial:
		return p.engine.BuildSpatial(p.graph, p.sink)
	case ModeGain:
		return p.engine.BuildGain(p.graph, p.sink)
	case ModeDirect:
		return p.engine.BuildDirect(p.graph, p.sink)
	default:
		return fmt.Errorf("%w: %s", ErrStageUnavailable, m)
	}
}

func (p *Pipeline) releaseMedia() error {
	var err error
	if p.sink != nil {
		err = multierr.Append(err, safely(p.sink.Stop))
		p.sink = nil
	}
	if p.graph != nil {
		err = multierr.Append(err, p.graph.release())
		p.graph = nil
	}
	return err
}

// teardown runs every step even when earlier ones fail or panic. It reports
// whether this call did the work.
func (p *Pipeline) teardown(reason error) bool {
	if p.torn {
		return false
	}
	p.torn = true

	err := p.releaseMedia()
	for _, fn := range p.cleanup {
		err = multierr.Append(err, safely(fn))
	}
	p.cleanup = nil
	p.teardownErr = err

	ev := p.logger.Info()
	if reason != nil {
		ev = p.logger.Warn().AnErr("reason", reason)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("session torn down")
	return true
}

// IsCritical reports whether err ended a session.
func IsCritical(err error) bool { return errors.Is(err, ErrCriticalSession) }
