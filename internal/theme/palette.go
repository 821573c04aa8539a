package theme

import "github.com/alfredjeanlab/kgview/internal/model"

// LinkState selects the link and arrow color.
type LinkState string

const (
	LinkNormal    LinkState = "normal"
	LinkHighlight LinkState = "highlight"
	LinkMuted     LinkState = "muted"
)

// LabelRole selects a label color.
type LabelRole string

const (
	LabelPrimary    LabelRole = "primary"
	LabelSecondary  LabelRole = "secondary"
	LabelHighlight  LabelRole = "highlight"
	LabelBackground LabelRole = "background"
	LabelStroke     LabelRole = "stroke"
)

// Palette is the fixed color table of one mode.
type Palette struct {
	Nodes         map[model.NodeType]string
	NodeDefault   string
	NodeHighlight string
	NodeMuted     string

	Links    map[LinkState]string
	LinkText string
	Arrows   map[LinkState]string
	Labels   map[LabelRole]string

	Background          string
	BackgroundSecondary string
}

// NodeColor returns the fill for a node type; unknown types get NodeDefault.
func (p *Palette) NodeColor(t model.NodeType) string {
	if c, ok := p.Nodes[t]; ok {
		return c
	}
	return p.NodeDefault
}

// LinkColor returns the stroke for a link state.
func (p *Palette) LinkColor(s LinkState) string {
	if c, ok := p.Links[s]; ok {
		return c
	}
	return p.Links[LinkNormal]
}

// ArrowColor returns the marker fill for a link state.
func (p *Palette) ArrowColor(s LinkState) string {
	if c, ok := p.Arrows[s]; ok {
		return c
	}
	return p.Arrows[LinkNormal]
}

// LabelColor returns the color of a label role.
func (p *Palette) LabelColor(r LabelRole) string {
	if c, ok := p.Labels[r]; ok {
		return c
	}
	return p.Labels[LabelPrimary]
}

var lightPalette = &Palette{
	Nodes: map[model.NodeType]string{
		model.TypePerson:       "#A8C5EB",
		model.TypeOrganization: "#F5B8C6",
		model.TypeLocation:     "#9DD3F3",
		model.TypeEvent:        "#C7B3D2",
		model.TypeConcept:      "#A3D8E0",
		model.TypeDate:         "#F0C987",
		model.TypeNumber:       "#B8D9A8",
		model.TypeWork:         "#D8B3D8",
	},
	NodeDefault:   "#64748b",
	NodeHighlight: "#FFDC90",
	NodeMuted:     "rgba(200, 200, 200, 0.5)",
	Links: map[LinkState]string{
		LinkNormal:    "rgba(120, 120, 120, 0.6)",
		LinkHighlight: "#4a6572",
		LinkMuted:     "rgba(200, 200, 200, 0.3)",
	},
	LinkText: "#555555",
	Arrows: map[LinkState]string{
		LinkNormal:    "#999999",
		LinkHighlight: "#78909C",
		LinkMuted:     "#cccccc",
	},
	Labels: map[LabelRole]string{
		LabelPrimary:    "#333333",
		LabelSecondary:  "#666666",
		LabelHighlight:  "#2c3e50",
		LabelBackground: "#ffffff",
		LabelStroke:     "#ffffff",
	},
	Background:          "rgba(248, 249, 250, 0.8)",
	BackgroundSecondary: "rgba(255, 255, 255, 0.9)",
}

var darkPalette = &Palette{
	Nodes: map[model.NodeType]string{
		model.TypePerson:       "#8DA9C4",
		model.TypeOrganization: "#D49FB4",
		model.TypeLocation:     "#7DB3D3",
		model.TypeEvent:        "#B39CBF",
		model.TypeConcept:      "#8BC8D0",
		model.TypeDate:         "#D8B977",
		model.TypeNumber:       "#9CC798",
		model.TypeWork:         "#C89CC8",
	},
	NodeDefault:   "#94a3b8",
	NodeHighlight: "#FFC107",
	NodeMuted:     "rgba(100, 100, 100, 0.5)",
	Links: map[LinkState]string{
		LinkNormal:    "rgba(180, 180, 180, 0.7)",
		LinkHighlight: "#b0bec5",
		LinkMuted:     "rgba(100, 100, 100, 0.3)",
	},
	LinkText: "#eeeeee",
	Arrows: map[LinkState]string{
		LinkNormal:    "#D4D4D4",
		LinkHighlight: "#FFFFFF",
		LinkMuted:     "#777777",
	},
	Labels: map[LabelRole]string{
		LabelPrimary:    "#f5f5f5",
		LabelSecondary:  "#cccccc",
		LabelHighlight:  "#ffffff",
		LabelBackground: "#333333",
		LabelStroke:     "#000000",
	},
	Background:          "rgba(33, 33, 33, 0.9)",
	BackgroundSecondary: "rgba(55, 55, 55, 0.8)",
}

// PaletteFor returns the color table of mode m. The returned palette is
// shared and must not be modified.
func PaletteFor(m Mode) *Palette {
	if m == Dark {
		return darkPalette
	}
	return lightPalette
}
