// Package device provides the output device used by the headless client:
// every remote peer is rendered into its own Ogg/Opus file.
package device

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/dkeye/SeatVoice/internal/client/audio"
	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/spatial"
)

const (
	opusSampleRate = 48000
	opusChannels   = 2
)

var (
	ErrClosed      = errors.New("recorder closed")
	errForeignSink = errors.New("sink was not opened by this recorder")
)

type Options struct {
	Dir string
	// Channels below 2 rule out the spatial stage.
	Channels int
	// Volume reports whether per-stream volume can be controlled; without it
	// only direct playback works.
	Volume bool
}

// Stats reports what was rendered for one peer. Gain, Left and Right are the
// levels applied to the most recently written packet: the stage gain and the
// per-channel weights after panning.
type Stats struct {
	Read     int64   `json:"read"`
	Written  int64   `json:"written"`
	Silenced int64   `json:"silenced"`
	Gain     float64 `json:"gain"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
}

// levels is the rendering of one packet.
type levels struct {
	gain, left, right float64
}

// unity is what an unmuted sink plays on its own.
var unity = levels{gain: 1, left: 1, right: 1}

// Recorder is an audio.Engine shared by all sessions.
type Recorder struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	closed  bool
	outputs map[domain.ParticipantID]*output
}

var _ audio.Engine = (*Recorder)(nil)

func NewRecorder(opts Options) (*Recorder, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Recorder{
		opts:    opts,
		logger:  log.With().Str("module", "device").Logger(),
		outputs: make(map[domain.ParticipantID]*output),
	}, nil
}

type output struct {
	path string

	mu     sync.Mutex
	w      *oggwriter.OggWriter
	closed bool

	read, written, silenced atomic.Int64
	applied                 atomic.Pointer[levels]
}

// write appends pkt to the peer's file. A closed output is never reopened.
func (o *output) write(pkt *rtp.Packet, lv levels) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.w == nil {
		w, err := oggwriter.New(o.path, opusSampleRate, opusChannels)
		if err != nil {
			return err
		}
		o.w = w
	}
	if err := o.w.WriteRTP(pkt); err != nil {
		return err
	}
	o.applied.Store(&lv)
	o.written.Add(1)
	return nil
}

func (o *output) close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.w == nil {
		return nil
	}
	err := o.w.Close()
	o.w = nil
	return err
}

// output returns the output of peer, creating it while the recorder is open.
func (r *Recorder) output(peer domain.ParticipantID) (*output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.outputs[peer]
	if ok {
		return o, nil
	}
	if r.closed {
		return nil, ErrClosed
	}
	o = &output{path: r.Path(peer)}
	r.outputs[peer] = o
	return o, nil
}

// Stats reports what was rendered for peer so far. Unknown peers report
// zeros and are not registered.
func (r *Recorder) Stats(peer domain.ParticipantID) Stats {
	r.mu.Lock()
	o, ok := r.outputs[peer]
	r.mu.Unlock()
	if !ok {
		return Stats{}
	}
	st := Stats{Read: o.read.Load(), Written: o.written.Load(), Silenced: o.silenced.Load()}
	if lv := o.applied.Load(); lv != nil {
		st.Gain, st.Left, st.Right = lv.gain, lv.left, lv.right
	}
	return st
}

// Path is the file peer is rendered into.
func (r *Recorder) Path(peer domain.ParticipantID) string {
	return filepath.Join(r.opts.Dir, string(peer)+".ogg")
}

// Close flushes and closes every output file. Outputs stay registered so
// their stats remain readable; no sink can write or open a file afterwards.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	outputs := make(map[domain.ParticipantID]*output, len(r.outputs))
	for peer, o := range r.outputs {
		outputs[peer] = o
	}
	r.mu.Unlock()

	var err error
	for peer, o := range outputs {
		if cerr := o.close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", peer, cerr))
		}
	}
	return err
}

func (r *Recorder) OpenSink(peer domain.ParticipantID, src audio.Source) (audio.Sink, error) {
	out, err := r.output(peer)
	if err != nil {
		return nil, err
	}
	s := &sink{
		peer:   peer,
		src:    src,
		out:    out,
		logger: r.logger.With().Str("peer", string(peer)).Logger(),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func asSink(s audio.Sink) (*sink, error) {
	rs, ok := s.(*sink)
	if !ok {
		return nil, errForeignSink
	}
	return rs, nil
}

func (r *Recorder) BuildSpatial(g *audio.Graph, s audio.Sink) error {
	if r.opts.Channels < 2 {
		return fmt.Errorf("%w: %d output channel(s)", audio.ErrStageUnavailable, r.opts.Channels)
	}
	rs, err := asSink(s)
	if err != nil {
		return err
	}
	panner := &pannerNode{}
	g.Add(panner)
	gain := &gainNode{sink: rs, pan: panner}
	g.Add(gain)
	rs.tap.Store(gain)
	g.OnParams(func(p spatial.Placement) {
		panner.set(spatial.Pan(p))
		gain.set(p.Gain)
	})
	return nil
}

func (r *Recorder) BuildGain(g *audio.Graph, s audio.Sink) error {
	if !r.opts.Volume {
		return fmt.Errorf("%w: no volume control", audio.ErrStageUnavailable)
	}
	rs, err := asSink(s)
	if err != nil {
		return err
	}
	gain := &gainNode{sink: rs}
	g.Add(gain)
	rs.tap.Store(gain)
	g.OnParams(func(p spatial.Placement) { gain.set(p.Gain) })
	return nil
}

// BuildDirect leaves the unmuted sink as the output.
func (r *Recorder) BuildDirect(*audio.Graph, audio.Sink) error { return nil }

// gainNode scales the stream; with a panner in front of it the scaled stream
// is split into left and right weights.
type gainNode struct {
	sink *sink
	pan  *pannerNode
	bits atomic.Uint64
}

func (n *gainNode) set(g float64) { n.bits.Store(math.Float64bits(g)) }
func (n *gainNode) gain() float64 { return math.Float64frombits(n.bits.Load()) }

func (n *gainNode) levels() levels {
	g := n.gain()
	if n.pan == nil {
		return levels{gain: g, left: g, right: g}
	}
	l, r := n.pan.weights()
	return levels{gain: g, left: g * l, right: g * r}
}

func (n *gainNode) Disconnect() error {
	n.sink.tap.CompareAndSwap(n, nil)
	return nil
}

type pannerNode struct {
	left, right atomic.Uint64
}

func (n *pannerNode) set(l, r float64) {
	n.left.Store(math.Float64bits(l))
	n.right.Store(math.Float64bits(r))
}

func (n *pannerNode) weights() (l, r float64) {
	return math.Float64frombits(n.left.Load()), math.Float64frombits(n.right.Load())
}

func (n *pannerNode) Disconnect() error { return nil }
