package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"

	"github.com/alfredjeanlab/kgview/internal/theme"
)

// Format is a scene serialization format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts "svg" or "png".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatSVG, FormatPNG:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown scene format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

const (
	arrowLength = 10.0
	arrowWidth  = 4.0
)

// SerializeScene encodes the current scene, view transform applied.
func (r *Renderer) SerializeScene(f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r.scene, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes s to w in format f.
func Encode(w io.Writer, s *Scene, f Format) error {
	switch f {
	case FormatSVG:
		return EncodeSVG(w, s)
	case FormatPNG:
		return EncodePNG(w, s)
	}
	return fmt.Errorf("unknown scene format %q", f)
}

// arrowHead returns the tip and the two base corners of the arrowhead of a
// link ending on the rim of a node of radius r.
func arrowHead(lv *LinkVisual, r float64) (tip, left, right [2]float64, ok bool) {
	dx, dy := lv.X2-lv.X1, lv.Y2-lv.Y1
	d := math.Hypot(dx, dy)
	if d <= r+arrowLength || math.IsNaN(d) {
		return tip, left, right, false
	}
	ux, uy := dx/d, dy/d
	tx, ty := lv.X2-ux*r, lv.Y2-uy*r
	bx, by := tx-ux*arrowLength, ty-uy*arrowLength
	tip = [2]float64{tx, ty}
	left = [2]float64{bx - uy*arrowWidth, by + ux*arrowWidth}
	right = [2]float64{bx + uy*arrowWidth, by - ux*arrowWidth}
	return tip, left, right, true
}

func markerFill(s *Scene, id string) string {
	for _, m := range s.Markers {
		if m.ID == id {
			return m.Fill
		}
	}
	return "#999999"
}

func nodeRadius(s *Scene, id string) float64 {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n.R
		}
	}
	return NodeRadius
}

// EncodeSVG writes s as an SVG document.
func EncodeSVG(w io.Writer, s *Scene) error {
	width, height := int(s.Width), int(s.Height)
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+s.Background)

	if s.Message != "" {
		canvas.Text(width/2, height/2, s.Message, "text-anchor:middle;font-size:14px;font-family:sans-serif;fill:#888888")
		canvas.End()
		return nil
	}

	t := s.Transform
	canvas.Gtransform(fmt.Sprintf("translate(%g,%g) scale(%g)", t.X, t.Y, t.K))

	for _, l := range s.Links {
		canvas.Line(round(l.X1), round(l.Y1), round(l.X2), round(l.Y2),
			fmt.Sprintf("stroke:%s;stroke-width:%g;opacity:%g", l.Stroke, l.StrokeWidth, l.Opacity))
		if tip, left, right, ok := arrowHead(l, nodeRadius(s, l.Target)); ok {
			canvas.Polygon(
				[]int{round(tip[0]), round(left[0]), round(right[0])},
				[]int{round(tip[1]), round(left[1]), round(right[1])},
				"fill:"+markerFill(s, l.Marker))
		}
		if l.Label.Text != "" {
			canvas.Text(round(l.Label.X), round(l.Label.Y), l.Label.Text,
				fmt.Sprintf("text-anchor:middle;font-size:%gpx;font-family:sans-serif;fill:%s;opacity:%g",
					l.Label.FontSize, l.Label.Fill, l.Label.Opacity))
		}
	}

	for _, n := range s.Nodes {
		canvas.Circle(round(n.X), round(n.Y), round(n.R),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%g;opacity:%g", n.Fill, n.Stroke, n.StrokeWidth, n.Opacity))
		style := fmt.Sprintf("font-size:%gpx;font-family:sans-serif;fill:%s;opacity:%g",
			n.Label.FontSize, n.Label.Fill, n.Label.Opacity)
		if n.Label.Halo != "" {
			style += ";paint-order:stroke;stroke-width:3px;stroke:" + n.Label.Halo
		}
		canvas.Text(round(n.Label.X), round(n.Label.Y), n.Label.Text, style)
	}

	canvas.Gend()
	canvas.End()
	return nil
}

func round(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

// EncodePNG rasterizes s.
func EncodePNG(w io.Writer, s *Scene) error {
	width, height := int(s.Width), int(s.Height)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid scene size %dx%d", width, height)
	}
	dc := gg.NewContext(width, height)
	dc.SetColor(cssColor(s.Background, 1))
	dc.Clear()

	if s.Message != "" {
		dc.SetColor(color.NRGBA{0x88, 0x88, 0x88, 0xff})
		dc.DrawStringAnchored(s.Message, float64(width)/2, float64(height)/2, 0.5, 0.5)
		return png.Encode(w, dc.Image())
	}

	t := s.Transform
	dc.Push()
	dc.Translate(t.X, t.Y)
	dc.Scale(t.K, t.K)

	for _, l := range s.Links {
		dc.SetColor(cssColor(l.Stroke, l.Opacity))
		dc.SetLineWidth(l.StrokeWidth)
		dc.DrawLine(l.X1, l.Y1, l.X2, l.Y2)
		dc.Stroke()
		if tip, left, right, ok := arrowHead(l, nodeRadius(s, l.Target)); ok {
			dc.SetColor(cssColor(markerFill(s, l.Marker), l.Opacity))
			dc.MoveTo(tip[0], tip[1])
			dc.LineTo(left[0], left[1])
			dc.LineTo(right[0], right[1])
			dc.ClosePath()
			dc.Fill()
		}
		if l.Label.Text != "" {
			dc.SetColor(cssColor(l.Label.Fill, l.Label.Opacity))
			dc.DrawStringAnchored(l.Label.Text, l.Label.X, l.Label.Y, 0.5, 0.5)
		}
	}

	for _, n := range s.Nodes {
		dc.SetColor(cssColor(n.Fill, n.Opacity))
		dc.DrawCircle(n.X, n.Y, n.R)
		dc.Fill()
		if n.Stroke != "none" {
			dc.SetColor(cssColor(n.Stroke, n.Opacity))
			dc.SetLineWidth(n.StrokeWidth)
			dc.DrawCircle(n.X, n.Y, n.R)
			dc.Stroke()
		}
		dc.SetColor(cssColor(n.Label.Fill, n.Label.Opacity))
		dc.DrawStringAnchored(n.Label.Text, n.Label.X, n.Label.Y, 0, 0.5)
	}
	dc.Pop()

	return png.Encode(w, dc.Image())
}

// cssColor parses a palette color and scales its alpha by opacity.
// Unparseable colors draw as transparent.
func cssColor(css string, opacity float64) color.NRGBA {
	c, err := theme.ParseColor(css)
	if err != nil {
		return color.NRGBA{}
	}
	c.A = uint8(math.Round(float64(c.A) * math.Max(0, math.Min(1, opacity))))
	return c
}
