// Package render owns the retained scene of the explorer: it draws nodes,
// links and labels from a GraphState and the layout output, applies the
// view transform, and handles pan, zoom, drag and hover input.
//
// A Renderer is not safe for concurrent use; callers serialize access.
package render

import (
	"time"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/clock"
	"github.com/alfredjeanlab/kgview/internal/layout"
	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/theme"
)

// Visual constants.
const (
	ProminentNodeRadius = 15
	NodeRadius          = 14
	NodeStrokeWidth     = 1.5
	LabelOffset         = 25
	LabelFontSize       = 11
	LinkLabelFontSize   = 9
	MutedOpacity        = 0.3

	FocusStroke      = "#fe865c"
	FocusStrokeWidth = 3
)

// Theme supplies the active color scheme.
type Theme interface {
	Mode() theme.Mode
	Palette() *theme.Palette
}

// Options configures a Renderer.
type Options struct {
	// Width and Height of the viewport. Default 960x600.
	Width, Height float64

	// Layout tunes the simulation attached on every Render. Its canvas
	// size is taken from Width and Height.
	Layout layout.Options

	Surface Surface
	Clock   clock.Clock
	Logger  *zap.Logger
}

// Renderer draws a GraphState.
type Renderer struct {
	opts   Options
	theme  Theme
	clock  clock.Clock
	logger *zap.Logger

	state *model.GraphState
	sim   *layout.Simulation
	scene *Scene

	transform ViewTransform
	trans     *transition

	hovered  string
	focus    map[string]bool
	dragging string
}

// New returns a Renderer with an empty scene.
func New(th Theme, opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 960
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Layout.Width, opts.Layout.Height = opts.Width, opts.Height
	r := &Renderer{
		opts:      opts,
		theme:     th,
		clock:     opts.Clock,
		logger:    opts.Logger,
		transform: Identity(),
	}
	r.scene = r.emptyScene()
	return r
}

func (r *Renderer) emptyScene() *Scene {
	return &Scene{
		Width:     r.opts.Width,
		Height:    r.opts.Height,
		Transform: r.transform,
		Markers:   []Marker{},
		Links:     []*LinkVisual{},
		Nodes:     []*NodeVisual{},
	}
}

// Render replaces the scene with a drawing of state and attaches a fresh
// simulation to it. A nil node or link list, or a link whose endpoint is
// not a node of state, is a *model.DataIntegrityError and leaves the
// current scene as it was.
func (r *Renderer) Render(state *model.GraphState) error {
	if state == nil {
		return &model.DataIntegrityError{Reason: "no graph state"}
	}
	if err := state.Validate(); err != nil {
		return err
	}

	r.stopSimulation()
	drag := r.carryDrag(state)
	r.state = state
	r.hovered = ""
	r.focus = nil
	r.dragging = drag

	r.scene = r.emptyScene()
	for _, n := range state.Nodes {
		radius := float64(NodeRadius)
		if n.Type.IsProminent() {
			radius = ProminentNodeRadius
		}
		r.scene.Nodes = append(r.scene.Nodes, &NodeVisual{
			ID:    n.ID,
			Type:  n.Type.String(),
			R:     radius,
			Label: Label{Text: n.Name, FontSize: LabelFontSize},
		})
	}
	for _, l := range state.Links {
		r.scene.Links = append(r.scene.Links, &LinkVisual{
			Source: l.Source,
			Target: l.Target,
			Label:  Label{Text: l.Label, FontSize: LinkLabelFontSize},
		})
	}

	r.sim = layout.New(state.Nodes, state.Links, r.opts.Layout)
	if drag != "" {
		r.sim.SetAlphaTarget(0.3)
	}
	r.style()
	r.reposition()
	r.present()
	r.logger.Debug("rendered graph",
		zap.String("graph_id", state.GraphID),
		zap.Int("nodes", len(state.Nodes)),
		zap.Int("links", len(state.Links)))
	return nil
}

// Restyle recolors the existing visuals from the active palette. The
// scene structure and the simulation are left alone.
func (r *Renderer) Restyle() {
	r.style()
	r.present()
}

// Clear stops the simulation and empties the scene. The view transform is
// kept.
func (r *Renderer) Clear() {
	r.stopSimulation()
	r.trans = nil
	r.releaseDrag()
	r.state = nil
	r.hovered = ""
	r.focus = nil
	r.scene = r.emptyScene()
	r.style()
	r.present()
}

// carryDrag returns the node id whose drag survives a render of next: the
// dragged node must still be in next and still pinned. Otherwise the drag
// is released.
func (r *Renderer) carryDrag(next *model.GraphState) string {
	if r.dragging == "" {
		return ""
	}
	if n := next.Node(r.dragging); n != nil && n.Pinned() {
		return r.dragging
	}
	r.releaseDrag()
	return ""
}

// releaseDrag unpins the dragged node, if any, and ends the drag.
func (r *Renderer) releaseDrag() {
	if r.dragging == "" {
		return
	}
	if r.state != nil {
		if n := r.state.Node(r.dragging); n != nil {
			n.Unpin()
		}
	}
	r.dragging = ""
}

// ShowMessage clears the scene and shows msg in its place.
func (r *Renderer) ShowMessage(msg string) {
	r.Clear()
	r.scene.Message = msg
	r.present()
}

func (r *Renderer) stopSimulation() {
	if r.sim != nil {
		r.sim.Stop()
		r.sim = nil
	}
}

// Frame advances the simulation and any view transition by one step,
// repositions every visual and presents the scene. It reports whether
// anything is still animating.
func (r *Renderer) Frame() bool {
	changed := false
	if r.sim != nil && r.sim.Step() {
		changed = true
	}
	var done func()
	if r.trans != nil {
		t, finished := r.trans.at(r.clock.Now())
		r.transform = t
		changed = true
		if finished {
			done = r.trans.done
			r.trans = nil
		}
	}
	if changed {
		r.reposition()
		r.present()
	}
	if done != nil {
		done()
	}
	return r.Animating()
}

// Animating reports whether the simulation is running or a view
// transition is in progress.
func (r *Renderer) Animating() bool {
	return r.trans != nil || (r.sim != nil && r.sim.Running())
}

// State returns the rendered GraphState, or nil.
func (r *Renderer) State() *model.GraphState { return r.state }

// Simulation returns the attached simulation, or nil.
func (r *Renderer) Simulation() *layout.Simulation { return r.sim }

// Viewport returns the viewport size.
func (r *Renderer) Viewport() (float64, float64) { return r.opts.Width, r.opts.Height }

// Transform returns the current view transform.
func (r *Renderer) Transform() ViewTransform { return r.transform }

// SetTransform replaces the view transform, finishing any transition
// first.
func (r *Renderer) SetTransform(t ViewTransform) {
	r.FinishTransition()
	t.K = clampScale(t.K)
	r.transform = t
	r.present()
}

// Pan moves the view by (dx, dy) screen units.
func (r *Renderer) Pan(dx, dy float64) {
	r.FinishTransition()
	r.SetTransform(r.transform.Translated(dx, dy))
}

// ZoomAt scales the view by factor about the screen point (px, py).
func (r *Renderer) ZoomAt(px, py, factor float64) {
	r.FinishTransition()
	r.SetTransform(r.transform.ScaledAt(px, py, factor))
}

// AnimateTransform starts a transition of the view transform to `to`
// lasting d. done, if not nil, runs on the frame that completes it. A
// transition already in progress is replaced without running its done.
func (r *Renderer) AnimateTransform(to ViewTransform, d time.Duration, done func()) {
	r.trans = &transition{
		from:     r.transform,
		to:       to,
		start:    r.clock.Now(),
		duration: d,
		done:     done,
	}
}

// CancelTransition drops any transition in progress without running its
// done callback. The transform stays where it is.
func (r *Renderer) CancelTransition() { r.trans = nil }

// FinishTransition jumps any transition in progress to its end and runs
// its done callback.
func (r *Renderer) FinishTransition() {
	tr := r.trans
	if tr == nil {
		return
	}
	r.trans = nil
	r.transform = tr.to
	r.present()
	if tr.done != nil {
		tr.done()
	}
}

// MarkFocus outlines the given nodes with the focus stroke and removes the
// stroke from all others. A nil set restores the regular strokes.
func (r *Renderer) MarkFocus(ids map[string]bool) {
	r.focus = ids
	r.style()
	r.present()
}

// Dragging returns the id of the node under an active drag gesture.
func (r *Renderer) Dragging() string { return r.dragging }

// Hovered returns the id of the hovered node.
func (r *Renderer) Hovered() string { return r.hovered }

// Scene returns the live scene. Callers must not modify it.
func (r *Renderer) Scene() *Scene { return r.scene }

// Snapshot returns a copy of the current scene.
func (r *Renderer) Snapshot() *Scene { return r.scene.Clone() }

func (r *Renderer) present() {
	r.scene.Transform = r.transform
	if r.opts.Surface != nil {
		r.opts.Surface.Present(r.scene)
	}
}

func (r *Renderer) style() {
	p := r.theme.Palette()
	r.scene.Mode = string(r.theme.Mode())
	r.scene.Background = p.Background
	r.scene.Markers = r.scene.Markers[:0]
	for _, s := range []theme.LinkState{theme.LinkNormal, theme.LinkHighlight, theme.LinkMuted} {
		r.scene.Markers = append(r.scene.Markers, Marker{ID: markerID(s), Fill: p.ArrowColor(s)})
	}
	if r.state == nil {
		return
	}

	var near map[string]bool
	if r.hovered != "" {
		near = model.NeighborSet(r.state.Links, r.hovered)
	}
	opacity := func(id string) float64 {
		if near == nil || near[id] {
			return 1
		}
		return MutedOpacity
	}

	for _, nv := range r.scene.Nodes {
		n := r.state.Node(nv.ID)
		if n == nil {
			continue
		}
		nv.Fill = p.NodeColor(n.Type)
		nv.Label.Fill = p.LabelColor(theme.LabelPrimary)
		if n.Highlighted {
			nv.Fill = p.NodeHighlight
			nv.Label.Fill = p.LabelColor(theme.LabelHighlight)
		}
		nv.Label.Halo = p.LabelColor(theme.LabelStroke)

		switch {
		case r.focus == nil:
			nv.Stroke = theme.Darker(nv.Fill, 0.5)
			nv.StrokeWidth = NodeStrokeWidth
		case r.focus[nv.ID]:
			nv.Stroke = FocusStroke
			nv.StrokeWidth = FocusStrokeWidth
		default:
			nv.Stroke = "none"
			nv.StrokeWidth = 1
		}
		nv.Opacity = opacity(nv.ID)
		nv.Label.Opacity = nv.Opacity
	}

	for _, lv := range r.scene.Links {
		state := theme.LinkNormal
		labelOpacity := 1.0
		if near != nil {
			if lv.Source == r.hovered || lv.Target == r.hovered {
				state = theme.LinkHighlight
			} else {
				state = theme.LinkMuted
				labelOpacity = MutedOpacity
			}
		}
		lv.Stroke = p.LinkColor(state)
		lv.StrokeWidth = NodeStrokeWidth
		if state == theme.LinkHighlight {
			lv.StrokeWidth = 2.5
		}
		lv.Marker = markerID(state)
		lv.Opacity = 1
		lv.Label.Fill = p.LinkText
		lv.Label.Opacity = labelOpacity
	}
}

func markerID(s theme.LinkState) string { return "arrow-" + string(s) }

func (r *Renderer) reposition() {
	if r.state == nil {
		return
	}
	for _, nv := range r.scene.Nodes {
		n := r.state.Node(nv.ID)
		if n == nil {
			continue
		}
		nv.X, nv.Y = n.X, n.Y
		nv.Label.X, nv.Label.Y = n.X+LabelOffset, n.Y+4
	}
	for _, lv := range r.scene.Links {
		s, t := r.state.Node(lv.Source), r.state.Node(lv.Target)
		if s == nil || t == nil {
			continue
		}
		lv.X1, lv.Y1, lv.X2, lv.Y2 = s.X, s.Y, t.X, t.Y
		lv.Label.X, lv.Label.Y = (s.X+t.X)/2, (s.Y+t.Y)/2
	}
}
