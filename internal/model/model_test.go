package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func sampleState(t *testing.T) *GraphState {
	t.Helper()
	s, err := NewGraphState("g1", &Graph{
		Nodes: []*Node{
			NewNode("n1", "Alice", TypePerson),
			NewNode("n2", "Bob", TypePerson),
			NewNode("n3", "Acme", TypeOrganization),
		},
		Links: []*Link{
			{Source: "n1", Target: "n2", Label: "knows"},
			{Source: "n3", Target: "n1", Label: "employs"},
		},
	})
	if err != nil {
		t.Fatalf("NewGraphState: %v", err)
	}
	return s
}

func TestNodeType_IsKnown(t *testing.T) {
	for _, tc := range []struct {
		typ  NodeType
		want bool
	}{
		{TypePerson, true},
		{TypeDate, true},
		{NodeType("Date"), false},
		{NodeType("Entity"), false},
		{NodeType(""), false},
	} {
		if got := tc.typ.IsKnown(); got != tc.want {
			t.Errorf("NodeType(%q).IsKnown() = %v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestNode_JSONRoundTripKeepsMissingPosition(t *testing.T) {
	var n Node
	if err := json.Unmarshal([]byte(`{"id":"n1","name":"Alice","type":"Person"}`), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.HasPosition() {
		t.Fatalf("expected unplaced node, got (%v, %v)", n.X, n.Y)
	}

	data, err := json.Marshal(&n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"id":"n1","name":"Alice","type":"Person"}` {
		t.Errorf("marshal = %s", got)
	}

	n.X, n.Y = 10, 20
	data, _ = json.Marshal(&n)
	if got := string(data); got != `{"id":"n1","name":"Alice","type":"Person","x":10,"y":20}` {
		t.Errorf("marshal placed = %s", got)
	}
}

func TestNode_PinMovesAndStops(t *testing.T) {
	n := NewNode("n1", "Alice", TypePerson)
	n.VX, n.VY = 3, 4
	n.Pin(5, 6)
	if !n.Pinned() || n.X != 5 || n.Y != 6 || n.VX != 0 || n.VY != 0 {
		t.Fatalf("after Pin: %+v", n)
	}
	n.Unpin()
	if n.Pinned() {
		t.Fatal("expected unpinned")
	}
	if n.X != 5 {
		t.Errorf("Unpin moved the node: x=%v", n.X)
	}
}

func TestLink_UnmarshalFallsBackToType(t *testing.T) {
	var l Link
	if err := json.Unmarshal([]byte(`{"source":"a","target":"b","type":"knows"}`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if l.Label != "knows" {
		t.Errorf("label = %q, want knows", l.Label)
	}
	if l.Key() != "a->b" {
		t.Errorf("key = %q", l.Key())
	}
}

func TestNewGraphState_Integrity(t *testing.T) {
	for _, tc := range []struct {
		name string
		g    *Graph
	}{
		{"nil payload", nil},
		{"nodes null", &Graph{Links: []*Link{}}},
		{"links null", &Graph{Nodes: []*Node{}}},
		{"dangling target", &Graph{
			Nodes: []*Node{NewNode("n1", "Alice", TypePerson)},
			Links: []*Link{{Source: "n1", Target: "ghost"}},
		}},
		{"duplicate id", &Graph{
			Nodes: []*Node{NewNode("n1", "A", TypePerson), NewNode("n1", "B", TypePerson)},
			Links: []*Link{},
		}},
		{"empty id", &Graph{Nodes: []*Node{NewNode("", "A", TypePerson)}, Links: []*Link{}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGraphState("g", tc.g)
			if !IsDataIntegrity(err) {
				t.Fatalf("expected DataIntegrityError, got %v", err)
			}
		})
	}
}

func TestNewGraphState_EmptyGraphIsValid(t *testing.T) {
	var g Graph
	if err := json.Unmarshal([]byte(`{"nodes":[],"links":[]}`), &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := NewGraphState("g", &g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGraphState_Neighbors(t *testing.T) {
	s := sampleState(t)
	got := s.Neighbors("n1")
	if len(got) != 2 || got[0].ID != "n2" || got[1].ID != "n3" {
		t.Fatalf("Neighbors(n1) = %v", ids(got))
	}
	if got := s.Neighbors("n2"); len(got) != 1 || got[0].ID != "n1" {
		t.Fatalf("Neighbors(n2) = %v", ids(got))
	}

	set := NeighborSet(s.Links, "n2")
	if len(set) != 2 || !set["n1"] || !set["n2"] {
		t.Errorf("NeighborSet(n2) = %v", set)
	}
}

func TestGraphState_FindByNameFirstMatchWins(t *testing.T) {
	s := sampleState(t)
	if n := s.FindByName("A"); n == nil || n.ID != "n1" {
		t.Fatalf("FindByName(A) = %v, want n1", n)
	}
	if n := s.FindByName("acme"); n != nil {
		t.Errorf("match is case-sensitive, got %v", n.ID)
	}
	if n := s.FindByName(""); n != nil {
		t.Errorf("empty keyword matched %v", n.ID)
	}
}

func TestGraphState_RemoveNodeCascades(t *testing.T) {
	s := sampleState(t)
	removed, err := s.RemoveNode("n1")
	if err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if removed != 2 || len(s.Links) != 0 || len(s.Nodes) != 2 || s.Has("n1") {
		t.Fatalf("after remove: removed=%d nodes=%v links=%d", removed, ids(s.Nodes), len(s.Links))
	}
	if err := s.Validate(); err != nil {
		t.Errorf("state invalid after remove: %v", err)
	}

	if _, err := s.RemoveNode("n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: got %v, want ErrNotFound", err)
	}
}

func TestGraphState_AddNodeKeepsIDsUnique(t *testing.T) {
	s := sampleState(t)
	n4 := NewNode("n4", "Carol", TypePerson)
	if err := s.AddNode(n4, &Link{Source: "n1", Target: "n4", Label: "friend"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if len(s.Nodes) != 4 || len(s.Links) != 3 {
		t.Fatalf("nodes=%d links=%d", len(s.Nodes), len(s.Links))
	}

	dup := NewNode("n2", "Bob again", TypePerson)
	if err := s.AddNode(dup, &Link{Source: "n1", Target: "n2"}); !IsDataIntegrity(err) {
		t.Fatalf("duplicate add: got %v", err)
	}
	if err := s.AddNode(NewNode("n5", "Dan", TypePerson), &Link{Source: "ghost", Target: "n5"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown source: got %v", err)
	}
	if len(s.Nodes) != 4 || len(s.Links) != 3 {
		t.Errorf("failed adds mutated state: nodes=%d links=%d", len(s.Nodes), len(s.Links))
	}
}

func TestGraphState_SetHighlighted(t *testing.T) {
	s := sampleState(t)
	if got := s.SetHighlighted([]string{"n2", "elsewhere"}); got != 1 {
		t.Errorf("SetHighlighted count = %d, want 1", got)
	}
	if !s.Node("n2").Highlighted || s.Node("n1").Highlighted {
		t.Error("highlight flags not applied")
	}
}

func TestGraphState_ClearPinsSkipsException(t *testing.T) {
	s := sampleState(t)
	for _, n := range s.Nodes {
		n.Pin(1, 1)
	}
	s.ClearPins("n2")
	if s.Node("n1").Pinned() || !s.Node("n2").Pinned() {
		t.Error("ClearPins did not honour the exception")
	}
}

func TestMerge_DeduplicatesNodesAndLinks(t *testing.T) {
	a := &Graph{
		Nodes: []*Node{NewNode("n1", "Alice", TypePerson), NewNode("n2", "Bob", TypePerson)},
		Links: []*Link{{Source: "n1", Target: "n2", Label: "knows"}},
	}
	b := &Graph{
		Nodes: []*Node{NewNode("n2", "Bob (b)", TypePerson), NewNode("n3", "Acme", TypeOrganization)},
		Links: []*Link{
			{Source: "n1", Target: "n2", Label: "likes"},
			{Source: "n3", Target: "n2", Label: "employs"},
			{Source: "n3", Target: "ghost"},
		},
	}
	m := Merge([]*Graph{a, nil, b})
	if len(m.Nodes) != 3 || len(m.Links) != 2 {
		t.Fatalf("merged nodes=%v links=%d", ids(m.Nodes), len(m.Links))
	}
	if m.Nodes[1].Name != "Bob" {
		t.Errorf("first occurrence should win, got %q", m.Nodes[1].Name)
	}
	if m.Links[0].Label != "knows" {
		t.Errorf("link dedup kept %q", m.Links[0].Label)
	}
	if _, err := NewGraphState(m.GraphID, m); err != nil {
		t.Errorf("merged graph invalid: %v", err)
	}
}

func TestNetworkError_Message(t *testing.T) {
	cause := errors.New("connection refused")
	for _, tc := range []struct {
		err  *NetworkError
		want string
	}{
		{&NetworkError{Op: "fetch graph", StatusCode: 500, Message: "boom"}, "fetch graph: HTTP 500: boom"},
		{&NetworkError{Op: "fetch graph", StatusCode: 404}, "fetch graph: HTTP 404"},
		{&NetworkError{Op: "upload", Message: "extraction failed"}, "upload: extraction failed"},
		{&NetworkError{Op: "search", Err: cause}, "search: connection refused"},
	} {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
	if !errors.Is(&NetworkError{Op: "x", Err: cause}, cause) {
		t.Error("NetworkError should unwrap to its cause")
	}
}

func TestPreference_String(t *testing.T) {
	p := StringPreference(PrefTheme, "dark")
	if got := p.String(); got != "dark" {
		t.Errorf("String() = %q", got)
	}
	p.Value = json.RawMessage(`42`)
	if got := p.String(); got != "" {
		t.Errorf("non-string value decoded as %q", got)
	}
}

func TestIsFinite(t *testing.T) {
	if isFinite(math.NaN()) || isFinite(math.Inf(1)) || !isFinite(0) {
		t.Error("isFinite misclassified")
	}
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
