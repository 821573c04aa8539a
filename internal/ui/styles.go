package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan)
	muted   = color.New(color.FgHiBlack)
	command = color.New(color.FgWhite, color.Bold)
	good    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed, color.Bold)
)

// RenderAccent returns s in the accent color.
func RenderAccent(s string) string { return accent.Sprint(s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return muted.Sprint(s) }

// RenderCommand returns s styled as a command name.
func RenderCommand(s string) string { return command.Sprint(s) }

// RenderKind styles s by notification kind: "success", "warning", "error"
// or anything else for info.
func RenderKind(kind, s string) string {
	switch kind {
	case "success":
		return good.Sprint(s)
	case "warning":
		return warn.Sprint(s)
	case "error":
		return bad.Sprint(s)
	default:
		return accent.Sprint(s)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	color.NoColor = true
}

// Table formats rows under a muted header, columns padded to the widest
// cell.
func Table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) string {
		var b strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				b.WriteString(cell)
			} else {
				fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
			}
		}
		return strings.TrimRight(b.String(), " ")
	}

	var b strings.Builder
	b.WriteString(RenderMuted(line(headers)))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(line(row))
		b.WriteByte('\n')
	}
	return b.String()
}
