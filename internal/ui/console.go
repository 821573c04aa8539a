package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alfredjeanlab/kgview/internal/session"
)

// Console shows session notifications and dialogs on a terminal. It
// implements session.Notifier, session.Asker and session.Prompter.
type Console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewConsole reads answers from in and writes to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

var kindIcons = map[session.Kind]string{
	session.Info:    "i",
	session.Success: "✓",
	session.Warning: "!",
	session.Error:   "✗",
}

// Notify prints one line, or two when body is set.
func (c *Console) Notify(kind session.Kind, title, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	icon := kindIcons[kind]
	if icon == "" {
		icon = kindIcons[session.Info]
	}
	fmt.Fprintf(c.out, "%s %s\n", RenderKind(string(kind), icon), title)
	if body != "" {
		fmt.Fprintf(c.out, "  %s\n", RenderMuted(body))
	}
}

// Ask prints a y/N question. Anything but y or yes declines.
func (c *Console) Ask(title, body string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", RenderKind("warning", "?"), title)
	if body != "" {
		fmt.Fprintf(c.out, "  %s\n", body)
	}
	fmt.Fprint(c.out, "  Continue? [y/N] ")
	answer, err := c.readLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// Prompt asks for each field in turn. End of input dismisses the form.
func (c *Console) Prompt(title string, fields []string) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, RenderAccent(title))
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		fmt.Fprintf(c.out, "  %s: ", f)
		v, err := c.readLine()
		if err != nil {
			return nil, false
		}
		values[f] = v
	}
	return values, true
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
