// Package layout implements the force-directed position solver: springs
// along links, pairwise repulsion, collision avoidance and a centering
// correction, integrated with velocity decay and geometric cooling.
package layout

import (
	"math"
	"math/rand"

	"github.com/alfredjeanlab/kgview/internal/model"
)

const (
	initialRadius = 10.0
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

// Simulation advances node positions in discrete ticks. It is not safe for
// concurrent use; callers serialize ticks with every other state mutation.
type Simulation struct {
	opts  Options
	nodes []*model.Node
	links []*link

	alpha       float64
	alphaTarget float64
	distance    float64
	running     bool

	rng *rand.Rand
}

type link struct {
	source, target *model.Node
	bias           float64
}

// New seeds a simulation with the given nodes and links and starts it at
// full energy. Links whose endpoints are not among nodes are ignored.
// Nodes lacking a position are placed before the first tick.
func New(nodes []*model.Node, links []*model.Link, opts Options) *Simulation {
	opts = opts.withDefaults()
	s := &Simulation{
		opts:     opts,
		nodes:    nodes,
		alpha:    1,
		distance: opts.LinkDistance,
		running:  true,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
	s.initNodes()
	s.initLinks(links)
	return s
}

func (s *Simulation) initNodes() {
	cx, cy := s.opts.Width/2, s.opts.Height/2
	for i, n := range s.nodes {
		if n.Pinned() {
			n.X, n.Y = *n.PinX, *n.PinY
		}
		if !n.HasPosition() {
			r := initialRadius * math.Sqrt(0.5+float64(i))
			a := float64(i) * initialAngle
			n.X = cx + r*math.Cos(a)
			n.Y = cy + r*math.Sin(a)
		}
		if math.IsNaN(n.VX) || math.IsNaN(n.VY) {
			n.VX, n.VY = 0, 0
		}
	}
}

func (s *Simulation) initLinks(links []*model.Link) {
	index := make(map[string]*model.Node, len(s.nodes))
	for _, n := range s.nodes {
		index[n.ID] = n
	}
	count := make(map[string]int, len(s.nodes))
	for _, l := range links {
		src, tgt := index[l.Source], index[l.Target]
		if src == nil || tgt == nil {
			continue
		}
		count[src.ID]++
		count[tgt.ID]++
		s.links = append(s.links, &link{source: src, target: tgt})
	}
	for _, l := range s.links {
		cs, ct := float64(count[l.source.ID]), float64(count[l.target.ID])
		l.bias = cs / (cs + ct)
	}
}

// Nodes returns the simulated nodes.
func (s *Simulation) Nodes() []*model.Node { return s.nodes }

// Alpha returns the current energy.
func (s *Simulation) Alpha() float64 { return s.alpha }

// SetAlpha sets the current energy, clamped to [0, 1].
func (s *Simulation) SetAlpha(a float64) {
	s.alpha = math.Max(0, math.Min(1, a))
}

// AlphaTarget returns the energy the simulation cools toward.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// SetAlphaTarget sets the energy the simulation cools toward. A target
// above AlphaMin keeps the simulation running indefinitely.
func (s *Simulation) SetAlphaTarget(t float64) {
	s.alphaTarget = math.Max(0, math.Min(1, t))
}

// LinkDistance returns the current spring rest length.
func (s *Simulation) LinkDistance() float64 { return s.distance }

// SetLinkDistance changes the spring rest length.
func (s *Simulation) SetLinkDistance(d float64) {
	if d > 0 {
		s.distance = d
	}
}

// Running reports whether timer-driven steps advance the simulation.
func (s *Simulation) Running() bool { return s.running }

// Stop halts timer-driven stepping. Tick still works.
func (s *Simulation) Stop() { s.running = false }

// Restart resumes timer-driven stepping at the current energy.
func (s *Simulation) Restart() { s.running = true }

// Step performs one timer-driven tick if the simulation is running and
// reports whether it did. The simulation stops itself once alpha falls
// below AlphaMin.
func (s *Simulation) Step() bool {
	if !s.running {
		return false
	}
	s.tick()
	if s.alpha < s.opts.AlphaMin {
		s.running = false
	}
	return true
}

// Tick advances the simulation n ticks synchronously, regardless of the
// running state.
func (s *Simulation) Tick(n int) {
	for range n {
		s.tick()
	}
}

func (s *Simulation) tick() {
	s.alpha += (s.alphaTarget - s.alpha) * s.opts.AlphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCollide()
	s.applyCenter()

	decay := 1 - s.opts.VelocityDecay
	for _, n := range s.nodes {
		if n.Pinned() {
			n.X, n.Y = *n.PinX, *n.PinY
			n.VX, n.VY = 0, 0
			continue
		}
		n.VX *= decay
		n.VY *= decay
		n.X += n.VX
		n.Y += n.VY
	}
}

// jiggle returns a tiny random offset used to separate coincident points.
func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}
