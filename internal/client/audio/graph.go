package audio

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/spatial"
)

// Sink is the playable element fed by one inbound stream. Unmuted, it is
// itself audible.
type Sink interface {
	SetMuted(bool)
	Stop() error
}

// Node is a connected element of a rendering stage.
type Node interface {
	Disconnect() error
}

type Engine interface {
	OpenSink(peer domain.ParticipantID, src Source) (Sink, error)
	BuildSpatial(g *Graph, sink Sink) error
	BuildGain(g *Graph, sink Sink) error
	BuildDirect(g *Graph, sink Sink) error
}

// Graph records the nodes a stage connects, in order, so a stage that fails
// halfway can still be disconnected.
type Graph struct {
	mu     sync.Mutex
	nodes  []Node
	params func(spatial.Placement)
}

func NewGraph() *Graph { return &Graph{} }

func (g *Graph) Add(n Node) {
	g.mu.Lock()
	g.nodes = append(g.nodes, n)
	g.mu.Unlock()
}

// OnParams installs the function receiving placement updates.
func (g *Graph) OnParams(fn func(spatial.Placement)) {
	g.mu.Lock()
	g.params = fn
	g.mu.Unlock()
}

func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

func (g *Graph) apply(p spatial.Placement) {
	g.mu.Lock()
	fn := g.params
	g.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// release disconnects every node, last connected first.
func (g *Graph) release() error {
	g.mu.Lock()
	nodes := g.nodes
	g.nodes = nil
	g.params = nil
	g.mu.Unlock()

	var err error
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		err = multierr.Append(err, safely(n.Disconnect))
	}
	return err
}
