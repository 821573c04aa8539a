// Package focus centers the view on a searched node and arranges its
// neighbors on a ring around it.
package focus

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/clock"
	"github.com/alfredjeanlab/kgview/internal/layout"
	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/render"
)

const (
	Scale              = 1.5
	TransitionDuration = 750 * time.Millisecond
	ReleaseDelay       = 1000 * time.Millisecond
	LinkDistance       = 150
	ReleaseAlpha       = 0.3
	Jitter             = 100
	SettleTicks        = 10
	MaxRingRadius      = 200
)

// View is the part of the renderer the navigator drives.
type View interface {
	State() *model.GraphState
	Simulation() *layout.Simulation
	Transform() render.ViewTransform
	Viewport() (float64, float64)
	AnimateTransform(to render.ViewTransform, d time.Duration, done func())
	CancelTransition()
	MarkFocus(ids map[string]bool)
	Dragging() string
}

// Options configures a Navigator.
type Options struct {
	Clock clock.Clock

	// Sync runs timer callbacks. The session passes a function that takes
	// its lock. Default: call directly.
	Sync func(func())

	// Rand supplies the jitter for neighbors without a position.
	Rand *rand.Rand

	Logger *zap.Logger
}

// Result describes a completed Focus call.
type Result struct {
	Match     *model.Node
	Neighbors []*model.Node
	Radius    float64
	Target    render.ViewTransform
}

// Navigator runs focus animations against a View.
type Navigator struct {
	view   View
	clock  clock.Clock
	sync   func(func())
	rng    *rand.Rand
	logger *zap.Logger

	gen   uint64
	timer clock.Timer
}

// New returns a Navigator driving view.
func New(view View, opts Options) *Navigator {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Sync == nil {
		opts.Sync = func(f func()) { f() }
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Navigator{
		view:   view,
		clock:  opts.Clock,
		sync:   opts.Sync,
		rng:    opts.Rand,
		logger: opts.Logger,
	}
}

// RingRadius is the neighbor ring radius for k neighbors.
func RingRadius(k int) float64 {
	return math.Min(MaxRingRadius, 50+20*float64(k))
}

// Focus finds the first node whose name contains keyword, pins it at the
// center of the viewport, pins its neighbors on a ring around it, and
// animates the view onto it. The pins are released shortly after the
// animation ends. It returns model.ErrNotFound when nothing matches, in
// which case nothing changes.
func (n *Navigator) Focus(keyword string) (*Result, error) {
	st := n.view.State()
	if st == nil {
		return nil, fmt.Errorf("no graph loaded: %w", model.ErrNotFound)
	}
	match := st.FindByName(keyword)
	if match == nil {
		return nil, fmt.Errorf("no node matching %q: %w", keyword, model.ErrNotFound)
	}
	n.Cancel()
	gen := n.gen

	sim := n.view.Simulation()
	if sim != nil {
		sim.Stop()
	}
	dragging := n.view.Dragging()
	st.ClearPins(dragging)

	w, h := n.view.Viewport()
	t := n.view.Transform()
	cx, cy := (w/2-t.X)/t.K, (h/2-t.Y)/t.K

	var pinned []*model.Node
	pin := func(node *model.Node, x, y float64) {
		if node.ID == dragging {
			return
		}
		node.Pin(x, y)
		pinned = append(pinned, node)
	}
	pin(match, cx, cy)

	neighbors := st.Neighbors(match.ID)
	for _, nb := range neighbors {
		if !nb.HasPosition() {
			nb.X = match.X + (n.rng.Float64()-0.5)*Jitter
			nb.Y = match.Y + (n.rng.Float64()-0.5)*Jitter
		}
	}

	radius := 0.0
	if k := len(neighbors); k > 0 {
		radius = RingRadius(k)
		step := 2 * math.Pi / float64(k)
		for i, nb := range neighbors {
			a := float64(i) * step
			pin(nb, cx+radius*math.Cos(a), cy+radius*math.Sin(a))
		}
	}

	if sim != nil {
		sim.SetLinkDistance(LinkDistance)
		sim.SetAlpha(1)
		sim.Restart()
		sim.Tick(SettleTicks)
	}

	target := render.CenteredOn(match.X, match.Y, Scale, w, h)
	n.view.AnimateTransform(target, TransitionDuration, func() {
		n.timer = n.clock.AfterFunc(ReleaseDelay, func() {
			n.sync(func() { n.release(gen, pinned) })
		})
	})

	marked := map[string]bool{match.ID: true}
	for _, nb := range neighbors {
		marked[nb.ID] = true
	}
	n.view.MarkFocus(marked)

	n.logger.Debug("focused node",
		zap.String("node_id", match.ID),
		zap.Int("neighbors", len(neighbors)),
		zap.Float64("radius", radius))
	return &Result{Match: match, Neighbors: neighbors, Radius: radius, Target: target}, nil
}

func (n *Navigator) release(gen uint64, pinned []*model.Node) {
	if gen != n.gen {
		return
	}
	n.timer = nil
	dragging := n.view.Dragging()
	for _, node := range pinned {
		if node.ID != dragging {
			node.Unpin()
		}
	}
	if sim := n.view.Simulation(); sim != nil {
		sim.SetAlpha(ReleaseAlpha)
		sim.Restart()
	}
}

// Cancel aborts any pending transition and pin release. Pins already
// placed stay.
func (n *Navigator) Cancel() {
	n.gen++
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.view.CancelTransition()
}
