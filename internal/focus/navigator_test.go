package focus

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/kgview/internal/clock"
	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/render"
	"github.com/alfredjeanlab/kgview/internal/theme"
)

type lightTheme struct{}

func (lightTheme) Mode() theme.Mode        { return theme.Light }
func (lightTheme) Palette() *theme.Palette { return theme.PaletteFor(theme.Light) }

type fixture struct {
	clock *clock.Fake
	r     *render.Renderer
	nav   *Navigator
	state *model.GraphState
}

func setup(t *testing.T, g *model.Graph) *fixture {
	t.Helper()
	fc := clock.NewFake(time.Unix(0, 0))
	r := render.New(lightTheme{}, render.Options{Width: 800, Height: 600, Clock: fc})
	st, err := model.NewGraphState("g1", g)
	require.NoError(t, err)
	require.NoError(t, r.Render(st))
	nav := New(r, Options{Clock: fc, Rand: rand.New(rand.NewSource(7))})
	return &fixture{clock: fc, r: r, nav: nav, state: st}
}

func aliceBob() *model.Graph {
	return &model.Graph{
		Nodes: []*model.Node{
			model.NewNode("n1", "Alice", model.TypePerson),
			model.NewNode("n2", "Bob", model.TypePerson),
		},
		Links: []*model.Link{{Source: "n1", Target: "n2", Label: "knows"}},
	}
}

func star(k int) *model.Graph {
	g := &model.Graph{Nodes: []*model.Node{model.NewNode("hub", "Hub", model.TypeConcept)}, Links: []*model.Link{}}
	for i := range k {
		id := string(rune('a' + i))
		g.Nodes = append(g.Nodes, model.NewNode(id, "Spoke "+id, model.TypeConcept))
		g.Links = append(g.Links, &model.Link{Source: "hub", Target: id, Label: "has"})
	}
	g.Nodes = append(g.Nodes, model.NewNode("lonely", "Lonely", model.TypeWork))
	return g
}

func TestFocus_AliceRingsBob(t *testing.T) {
	f := setup(t, aliceBob())

	res, err := f.nav.Focus("Alice")
	require.NoError(t, err)
	assert.Equal(t, "n1", res.Match.ID)
	require.Len(t, res.Neighbors, 1)
	assert.Equal(t, "n2", res.Neighbors[0].ID)
	assert.Equal(t, 70.0, res.Radius)

	n1, n2 := f.state.Node("n1"), f.state.Node("n2")
	require.True(t, n1.Pinned())
	require.True(t, n2.Pinned())
	assert.InDelta(t, 400, n1.X, 1e-9)
	assert.InDelta(t, 300, n1.Y, 1e-9)
	assert.InDelta(t, 470, *n2.PinX, 1e-9)
	assert.InDelta(t, 300, *n2.PinY, 1e-9)
	assert.Equal(t, float64(LinkDistance), f.r.Simulation().LinkDistance())

	s := f.r.Scene()
	assert.Equal(t, render.FocusStroke, s.Nodes[0].Stroke)
	assert.Equal(t, render.FocusStroke, s.Nodes[1].Stroke)
}

func TestFocus_CentersAfterTransition(t *testing.T) {
	f := setup(t, star(3))
	f.r.SetTransform(render.ViewTransform{X: 100, Y: -50, K: 2})

	res, err := f.nav.Focus("Hub")
	require.NoError(t, err)
	hub := f.state.Node("hub")
	assert.InDelta(t, 150, hub.X, 1e-9)
	assert.InDelta(t, 175, hub.Y, 1e-9)

	f.clock.Advance(TransitionDuration)
	f.r.Frame()

	tr := f.r.Transform()
	assert.Equal(t, res.Target, tr)
	assert.Equal(t, Scale, tr.K)
	sx, sy := tr.Apply(hub.X, hub.Y)
	assert.InDelta(t, 400, sx, 1e-6)
	assert.InDelta(t, 300, sy, 1e-6)
	assert.True(t, hub.Pinned(), "pins held during the grace period")
}

func TestFocus_ReleasesPinsAfterGrace(t *testing.T) {
	f := setup(t, star(2))
	_, err := f.nav.Focus("Hub")
	require.NoError(t, err)

	f.clock.Advance(TransitionDuration)
	f.r.Frame()
	require.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(ReleaseDelay)
	for _, n := range f.state.Nodes {
		assert.False(t, n.Pinned(), n.ID)
	}
	sim := f.r.Simulation()
	assert.True(t, sim.Running())
	assert.Equal(t, ReleaseAlpha, sim.Alpha())
}

func TestFocus_RingIsDeterministic(t *testing.T) {
	f := setup(t, star(4))
	res, err := f.nav.Focus("Hub")
	require.NoError(t, err)
	require.Len(t, res.Neighbors, 4)
	r := RingRadius(4)
	assert.Equal(t, 130.0, r)

	for i, nb := range res.Neighbors {
		a := float64(i) * math.Pi / 2
		assert.InDelta(t, 400+r*math.Cos(a), *nb.PinX, 1e-9, nb.ID)
		assert.InDelta(t, 300+r*math.Sin(a), *nb.PinY, 1e-9, nb.ID)
	}
	assert.False(t, f.state.Node("lonely").Pinned())
}

func TestFocus_NoNeighborsOnlyCenters(t *testing.T) {
	f := setup(t, star(2))
	res, err := f.nav.Focus("Lonely")
	require.NoError(t, err)
	assert.Empty(t, res.Neighbors)
	assert.Zero(t, res.Radius)
	pinned := 0
	for _, n := range f.state.Nodes {
		if n.Pinned() {
			pinned++
		}
	}
	assert.Equal(t, 1, pinned)
}

func TestFocus_NotFoundChangesNothing(t *testing.T) {
	f := setup(t, aliceBob())
	before := f.r.Transform()
	alpha := f.r.Simulation().Alpha()

	_, err := f.nav.Focus("alice")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, before, f.r.Transform())
	assert.Equal(t, alpha, f.r.Simulation().Alpha())
	assert.False(t, f.state.Node("n1").Pinned())
}

func TestFocus_FirstMatchWins(t *testing.T) {
	f := setup(t, &model.Graph{
		Nodes: []*model.Node{
			model.NewNode("x", "Ann Lee", model.TypePerson),
			model.NewNode("y", "Ann Smith", model.TypePerson),
		},
		Links: []*model.Link{},
	})
	res, err := f.nav.Focus("Ann")
	require.NoError(t, err)
	assert.Equal(t, "x", res.Match.ID)
}

func TestFocus_SkipsDraggedNode(t *testing.T) {
	f := setup(t, aliceBob())
	require.NoError(t, f.r.DragStart("n2"))
	n2 := f.state.Node("n2")
	pinX := *n2.PinX

	_, err := f.nav.Focus("Alice")
	require.NoError(t, err)
	assert.Equal(t, pinX, *n2.PinX, "drag gesture keeps its pin")
}

func TestCancel_AbortsPendingRelease(t *testing.T) {
	f := setup(t, aliceBob())
	_, err := f.nav.Focus("Alice")
	require.NoError(t, err)

	f.nav.Cancel()
	f.clock.Advance(TransitionDuration + ReleaseDelay)
	f.r.Frame()

	assert.Zero(t, f.clock.Pending())
	assert.True(t, f.state.Node("n1").Pinned())
	assert.Equal(t, render.Identity(), f.r.Transform())
}

func TestCancel_AfterTransitionStopsTimer(t *testing.T) {
	f := setup(t, aliceBob())
	_, err := f.nav.Focus("Alice")
	require.NoError(t, err)
	f.clock.Advance(TransitionDuration)
	f.r.Frame()
	require.Equal(t, 1, f.clock.Pending())

	f.nav.Cancel()
	assert.Zero(t, f.clock.Pending())
}
