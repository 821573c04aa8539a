package model

import (
	"fmt"
	"strings"
)

// AllGraphs is the pseudo graph id of the merged view over every graph a
// user owns.
const AllGraphs = "all"

// Graph is a graph document as exchanged with the backend. A nil Nodes or
// Links slice means the field was absent or null in the payload.
type Graph struct {
	GraphID string  `json:"graph_id,omitempty"`
	Nodes   []*Node `json:"nodes"`
	Links   []*Link `json:"links"`
}

// GraphState is the graph currently on screen. Nodes and Links are exposed
// for reading; mutations go through the methods so the id index stays
// consistent.
type GraphState struct {
	GraphID string
	Nodes   []*Node
	Links   []*Link

	index map[string]*Node
}

// NewGraphState validates g and wraps it. The node and link pointers are
// shared with g, not copied.
func NewGraphState(graphID string, g *Graph) (*GraphState, error) {
	if g == nil {
		return nil, &DataIntegrityError{Reason: "graph payload is empty"}
	}
	s := &GraphState{GraphID: graphID, Nodes: g.Nodes, Links: g.Links}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the structural invariants: nodes and links present, node
// ids unique and non-empty, every link endpoint resolvable. On success the
// id index is rebuilt.
func (s *GraphState) Validate() error {
	if s.Nodes == nil {
		return &DataIntegrityError{Reason: "nodes missing"}
	}
	if s.Links == nil {
		return &DataIntegrityError{Reason: "links missing"}
	}
	index := make(map[string]*Node, len(s.Nodes))
	for i, n := range s.Nodes {
		if n == nil || n.ID == "" {
			return &DataIntegrityError{Reason: fmt.Sprintf("node %d has no id", i)}
		}
		if _, dup := index[n.ID]; dup {
			return &DataIntegrityError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		index[n.ID] = n
	}
	for i, l := range s.Links {
		if l == nil {
			return &DataIntegrityError{Reason: fmt.Sprintf("link %d is null", i)}
		}
		if _, ok := index[l.Source]; !ok {
			return &DataIntegrityError{Reason: fmt.Sprintf("link %d references unknown source %q", i, l.Source)}
		}
		if _, ok := index[l.Target]; !ok {
			return &DataIntegrityError{Reason: fmt.Sprintf("link %d references unknown target %q", i, l.Target)}
		}
	}
	s.index = index
	return nil
}

// Node returns the node with the given id, or nil.
func (s *GraphState) Node(id string) *Node {
	if s == nil {
		return nil
	}
	if s.index == nil {
		s.reindex()
	}
	return s.index[id]
}

// Has reports whether a node with the given id exists.
func (s *GraphState) Has(id string) bool {
	return s.Node(id) != nil
}

func (s *GraphState) reindex() {
	s.index = make(map[string]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		s.index[n.ID] = n
	}
}

// Neighbors returns the nodes linked to id in either direction, each once,
// in link order.
func (s *GraphState) Neighbors(id string) []*Node {
	var out []*Node
	seen := map[string]bool{id: true}
	for _, l := range s.Links {
		if !l.Touches(id) {
			continue
		}
		other := l.Other(id)
		if seen[other] {
			continue
		}
		seen[other] = true
		if n := s.Node(other); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// NeighborSet returns id together with every node id linked to it in either
// direction. It reads links only.
func NeighborSet(links []*Link, id string) map[string]bool {
	set := map[string]bool{id: true}
	for _, l := range links {
		if l.Touches(id) {
			set[l.Other(id)] = true
		}
	}
	return set
}

// FindByName returns the first node, in insertion order, whose name
// contains keyword. The match is case-sensitive.
func (s *GraphState) FindByName(keyword string) *Node {
	if s == nil || keyword == "" {
		return nil
	}
	for _, n := range s.Nodes {
		if strings.Contains(n.Name, keyword) {
			return n
		}
	}
	return nil
}

// RemoveNode deletes the node and every link touching it. It returns the
// number of links removed.
func (s *GraphState) RemoveNode(id string) (int, error) {
	if !s.Has(id) {
		return 0, fmt.Errorf("node %q: %w", id, ErrNotFound)
	}
	nodes := s.Nodes[:0:0]
	for _, n := range s.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	links := s.Links[:0:0]
	removed := 0
	for _, l := range s.Links {
		if l.Touches(id) {
			removed++
			continue
		}
		links = append(links, l)
	}
	s.Nodes, s.Links = nodes, links
	delete(s.index, id)
	return removed, nil
}

// AddNode appends n and l. The link must connect n to an existing node and
// n's id must be new.
func (s *GraphState) AddNode(n *Node, l *Link) error {
	if n == nil || n.ID == "" {
		return &DataIntegrityError{Reason: "new node has no id"}
	}
	if s.Has(n.ID) {
		return &DataIntegrityError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
	}
	if l != nil {
		other := l.Other(n.ID)
		if !l.Touches(n.ID) || !s.Has(other) {
			return fmt.Errorf("link endpoint %q: %w", other, ErrNotFound)
		}
	}
	s.Nodes = append(s.Nodes, n)
	s.index[n.ID] = n
	if l != nil {
		s.Links = append(s.Links, l)
	}
	return nil
}

// ClearPins unpins every node except the one with id except.
func (s *GraphState) ClearPins(except string) {
	for _, n := range s.Nodes {
		if n.ID != except {
			n.Unpin()
		}
	}
}

// SetHighlighted marks exactly the nodes in ids as highlighted and returns
// how many of them exist locally.
func (s *GraphState) SetHighlighted(ids []string) int {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	count := 0
	for _, n := range s.Nodes {
		n.Highlighted = want[n.ID]
		if n.Highlighted {
			count++
		}
	}
	return count
}

// Graph returns the state as a document sharing the same nodes and links.
func (s *GraphState) Graph() *Graph {
	return &Graph{GraphID: s.GraphID, Nodes: s.Nodes, Links: s.Links}
}

// Merge combines several graphs into one. Nodes are deduplicated by id and
// links by source and target; the first occurrence wins. Links whose
// endpoints appear in no graph are dropped.
func Merge(graphs []*Graph) *Graph {
	out := &Graph{GraphID: AllGraphs, Nodes: []*Node{}, Links: []*Link{}}
	nodes := make(map[string]bool)
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, n := range g.Nodes {
			if n == nil || nodes[n.ID] {
				continue
			}
			nodes[n.ID] = true
			out.Nodes = append(out.Nodes, n)
		}
	}
	links := make(map[string]bool)
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, l := range g.Links {
			if l == nil || links[l.Key()] || !nodes[l.Source] || !nodes[l.Target] {
				continue
			}
			links[l.Key()] = true
			out.Links = append(out.Links, l)
		}
	}
	return out
}
