package theme

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ParseColor parses the CSS color forms used by the palettes: #rgb,
// #rrggbb, rgb(r, g, b) and rgba(r, g, b, a).
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgba("):len(s)-1], 4)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgb("):len(s)-1], 3)
	case s == "none" || s == "transparent":
		return color.NRGBA{}, nil
	}
	return color.NRGBA{}, fmt.Errorf("unsupported color %q", s)
}

func parseHex(h string) (color.NRGBA, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s", h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s: %w", h, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func parseFunc(args string, want int) (color.NRGBA, error) {
	parts := strings.Split(args, ",")
	if len(parts) != want {
		return color.NRGBA{}, fmt.Errorf("expected %d components in %q", want, args)
	}
	var c [4]float64
	c[3] = 1
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid component %q: %w", p, err)
		}
		c[i] = f
	}
	return color.NRGBA{
		R: clampByte(c[0]),
		G: clampByte(c[1]),
		B: clampByte(c[2]),
		A: clampByte(c[3] * 255),
	}, nil
}

// Darker scales the RGB channels of css by 0.7^k, the same curve d3 uses,
// and returns the result as #rrggbb. Unparseable input is returned as is.
func Darker(css string, k float64) string {
	c, err := ParseColor(css)
	if err != nil {
		return css
	}
	f := math.Pow(0.7, k)
	return fmt.Sprintf("#%02x%02x%02x",
		clampByte(float64(c.R)*f),
		clampByte(float64(c.G)*f),
		clampByte(float64(c.B)*f))
}

func clampByte(f float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(f))))
}
