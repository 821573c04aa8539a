package model

import (
	"encoding/json"
	"math"
)

// NodeType classifies an entity. The set is open; types outside the known
// list are drawn with the palette's default color.
type NodeType string

const (
	TypePerson       NodeType = "Person"
	TypeOrganization NodeType = "Organization"
	TypeLocation     NodeType = "Location"
	TypeEvent        NodeType = "Event"
	TypeConcept      NodeType = "Concept"
	TypeDate         NodeType = "DATE"
	TypeNumber       NodeType = "Number"
	TypeWork         NodeType = "Work"
)

var knownNodeTypes = map[NodeType]bool{
	TypePerson:       true,
	TypeOrganization: true,
	TypeLocation:     true,
	TypeEvent:        true,
	TypeConcept:      true,
	TypeDate:         true,
	TypeNumber:       true,
	TypeWork:         true,
}

// IsKnown reports whether t has a dedicated palette entry.
func (t NodeType) IsKnown() bool { return knownNodeTypes[t] }

func (t NodeType) String() string { return string(t) }

// IsProminent reports whether nodes of this type get the larger radius.
func (t NodeType) IsProminent() bool {
	return t == TypePerson || t == TypeOrganization
}

// Node is a graph vertex as displayed. X and Y are NaN until the node has
// been placed. VX and VY are layout velocities and never leave the process.
type Node struct {
	ID          string
	Name        string
	Type        NodeType
	X, Y        float64
	PinX, PinY  *float64
	Highlighted bool

	VX, VY float64
}

// NewNode returns an unplaced node.
func NewNode(id, name string, typ NodeType) *Node {
	return &Node{ID: id, Name: name, Type: typ, X: math.NaN(), Y: math.NaN()}
}

// HasPosition reports whether both coordinates are finite numbers.
func (n *Node) HasPosition() bool {
	return isFinite(n.X) && isFinite(n.Y)
}

// Pinned reports whether the node is held at a fixed position.
func (n *Node) Pinned() bool {
	return n.PinX != nil && n.PinY != nil
}

// Pin fixes the node at (x, y) and moves it there.
func (n *Node) Pin(x, y float64) {
	n.PinX, n.PinY = &x, &y
	n.X, n.Y = x, y
	n.VX, n.VY = 0, 0
}

// Unpin releases the node back to the simulation.
func (n *Node) Unpin() {
	n.PinX, n.PinY = nil, nil
}

type nodeJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        NodeType `json:"type"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	FX          *float64 `json:"fx,omitempty"`
	FY          *float64 `json:"fy,omitempty"`
	Highlighted bool     `json:"highlighted,omitempty"`
}

// MarshalJSON omits coordinates the node does not have yet.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		ID:          n.ID,
		Name:        n.Name,
		Type:        n.Type,
		FX:          n.PinX,
		FY:          n.PinY,
		Highlighted: n.Highlighted,
	}
	if n.HasPosition() {
		x, y := n.X, n.Y
		out.X, out.Y = &x, &y
	}
	return json.Marshal(out)
}

// UnmarshalJSON leaves absent coordinates as NaN.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = Node{
		ID:          in.ID,
		Name:        in.Name,
		Type:        in.Type,
		X:           math.NaN(),
		Y:           math.NaN(),
		PinX:        in.FX,
		PinY:        in.FY,
		Highlighted: in.Highlighted,
	}
	if in.X != nil && in.Y != nil {
		n.X, n.Y = *in.X, *in.Y
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
