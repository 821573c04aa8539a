package render

import "sync"

// Scene is the retained drawing: everything a surface needs to present
// the graph. Coordinates are content coordinates; Transform maps them to
// the screen.
type Scene struct {
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Mode       string        `json:"mode"`
	Background string        `json:"background"`
	Transform  ViewTransform `json:"transform"`
	Markers    []Marker      `json:"markers"`
	Links      []*LinkVisual `json:"links"`
	Nodes      []*NodeVisual `json:"nodes"`
	Message    string        `json:"message,omitempty"`
}

// Marker is an arrowhead definition referenced by links.
type Marker struct {
	ID   string `json:"id"`
	Fill string `json:"fill"`
}

// NodeVisual is one drawn node.
type NodeVisual struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	R           float64 `json:"r"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
	Opacity     float64 `json:"opacity"`
	Label       Label   `json:"label"`
}

// LinkVisual is one drawn link with its arrowhead and label.
type LinkVisual struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
	Marker      string  `json:"marker"`
	Opacity     float64 `json:"opacity"`
	Label       Label   `json:"label"`
}

// Label is positioned text.
type Label struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
	Fill     string  `json:"fill"`
	Halo     string  `json:"halo,omitempty"`
	Opacity  float64 `json:"opacity"`
}

// Clone returns a deep copy of s.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	c := *s
	c.Markers = append([]Marker(nil), s.Markers...)
	c.Links = make([]*LinkVisual, len(s.Links))
	for i, l := range s.Links {
		cp := *l
		c.Links[i] = &cp
	}
	c.Nodes = make([]*NodeVisual, len(s.Nodes))
	for i, n := range s.Nodes {
		cp := *n
		c.Nodes[i] = &cp
	}
	return &c
}

// Surface receives the scene after every change. The scene is owned by
// the renderer; implementations that keep it must Clone it.
type Surface interface {
	Present(s *Scene)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(*Scene)

// Present implements Surface.
func (f SurfaceFunc) Present(s *Scene) { f(s) }

// MemorySurface keeps a copy of the last presented scene.
type MemorySurface struct {
	mu    sync.Mutex
	last  *Scene
	count int
}

// Present implements Surface.
func (m *MemorySurface) Present(s *Scene) {
	c := s.Clone()
	m.mu.Lock()
	m.last = c
	m.count++
	m.mu.Unlock()
}

// Last returns the most recently presented scene, or nil.
func (m *MemorySurface) Last() *Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Count returns how many scenes have been presented.
func (m *MemorySurface) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
