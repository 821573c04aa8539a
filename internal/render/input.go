package render

import (
	"fmt"

	"github.com/alfredjeanlab/kgview/internal/model"
)

// EventKind names a pointer or view gesture.
type EventKind string

const (
	PointerEnter EventKind = "pointer-enter"
	PointerLeave EventKind = "pointer-leave"
	DragStart    EventKind = "drag-start"
	DragMove     EventKind = "drag-move"
	DragEnd      EventKind = "drag-end"
	PanBy        EventKind = "pan"
	ZoomBy       EventKind = "zoom"
	Click        EventKind = "click"
)

// Node actions raised by a click.
const (
	ActionNodeDetails = "node-details"
	ActionDeleteNode  = "delete-node"
	ActionAddNode     = "add-node"
)

// InputEvent is one user gesture. X and Y are screen coordinates.
type InputEvent struct {
	Kind   EventKind `json:"kind"`
	NodeID string    `json:"node_id,omitempty"`
	X      float64   `json:"x,omitempty"`
	Y      float64   `json:"y,omitempty"`
	DX     float64   `json:"dx,omitempty"`
	DY     float64   `json:"dy,omitempty"`
	Factor float64   `json:"factor,omitempty"`

	// Action selects the command a click raises. Default node-details.
	Action string `json:"action,omitempty"`
}

// Command is a node action raised by a click. The renderer never performs
// it; the caller routes it to its handler.
type Command struct {
	Name   string `json:"name"`
	NodeID string `json:"node_id"`
}

// Dispatch applies ev to the view. A click returns the command it raises;
// every other gesture returns nil.
func (r *Renderer) Dispatch(ev InputEvent) (*Command, error) {
	switch ev.Kind {
	case PanBy:
		r.Pan(ev.DX, ev.DY)
		return nil, nil
	case ZoomBy:
		r.ZoomAt(ev.X, ev.Y, ev.Factor)
		return nil, nil
	case PointerLeave:
		r.HoverEnd()
		return nil, nil
	}

	n, err := r.eventNode(ev)
	if err != nil {
		return nil, err
	}
	switch ev.Kind {
	case PointerEnter:
		r.HoverStart(n.ID)
	case DragStart:
		return nil, r.DragStart(n.ID)
	case DragMove:
		return nil, r.DragMove(n.ID, ev.X, ev.Y)
	case DragEnd:
		return nil, r.DragEnd(n.ID)
	case Click:
		action := ev.Action
		if action == "" {
			action = ActionNodeDetails
		}
		switch action {
		case ActionNodeDetails, ActionDeleteNode, ActionAddNode:
		default:
			return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}}}
		}
		return &Command{Name: action, NodeID: n.ID}, nil
	default:
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "kind", Message: fmt.Sprintf("unknown event kind %q", ev.Kind)}}}
	}
	return nil, nil
}

func (r *Renderer) eventNode(ev InputEvent) (*model.Node, error) {
	if r.state == nil {
		return nil, fmt.Errorf("no graph rendered: %w", model.ErrNotFound)
	}
	n := r.state.Node(ev.NodeID)
	if n == nil {
		return nil, fmt.Errorf("node %q: %w", ev.NodeID, model.ErrNotFound)
	}
	return n, nil
}

// HoverStart emphasizes the node id, its neighbors and the links touching
// it, and mutes everything else. Any focus outline is dropped.
func (r *Renderer) HoverStart(id string) {
	r.hovered = id
	r.focus = nil
	r.style()
	r.present()
}

// HoverEnd restores full opacity and normal link colors.
func (r *Renderer) HoverEnd() {
	if r.hovered == "" {
		return
	}
	r.hovered = ""
	r.style()
	r.present()
}

// DragStart pins the node where it is and reheats the simulation. A drag
// already in progress on another node is released first.
func (r *Renderer) DragStart(id string) error {
	n, err := r.eventNode(InputEvent{NodeID: id})
	if err != nil {
		return err
	}
	if r.dragging != id {
		r.releaseDrag()
	}
	r.dragging = id
	n.Pin(n.X, n.Y)
	if r.sim != nil {
		r.sim.SetAlphaTarget(0.3)
		r.sim.Restart()
	}
	return nil
}

// DragMove pins the dragged node under the screen point (sx, sy).
func (r *Renderer) DragMove(id string, sx, sy float64) error {
	n, err := r.eventNode(InputEvent{NodeID: id})
	if err != nil {
		return err
	}
	if r.dragging != id {
		return fmt.Errorf("node %q is not being dragged", id)
	}
	n.Pin(r.transform.Invert(sx, sy))
	r.reposition()
	r.present()
	return nil
}

// DragEnd releases the node and lets the simulation cool down.
func (r *Renderer) DragEnd(id string) error {
	n, err := r.eventNode(InputEvent{NodeID: id})
	if err != nil {
		return err
	}
	if r.dragging != id {
		return fmt.Errorf("node %q is not being dragged", id)
	}
	r.dragging = ""
	n.Unpin()
	if r.sim != nil {
		r.sim.SetAlphaTarget(0)
	}
	return nil
}
