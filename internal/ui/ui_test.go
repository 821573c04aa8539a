package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/alfredjeanlab/kgview/internal/session"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		tty  bool
		want bool
	}{
		{"tty", nil, true, true},
		{"pipe", nil, false, false},
		{"no color wins", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, true, false},
		{"force", map[string]string{"CLICOLOR_FORCE": "1"}, false, true},
		{"clicolor off", map[string]string{"CLICOLOR": "0"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldUseColor(func(k string) string { return tt.env[k] }, tt.tty)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable(t *testing.T) {
	out := Table([]string{"ID", "NAME"}, [][]string{{"g1", "people"}, {"graph-22", "orgs"}})
	assert.Equal(t, "ID        NAME\ng1        people\ngraph-22  orgs\n", out)
}

func TestConsoleNotify(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(""), &out)
	c.Notify(session.Success, "Graph loaded", "")
	c.Notify(session.Error, "Upload failed", "bad JSON")
	assert.Equal(t, "✓ Graph loaded\n✗ Upload failed\n  bad JSON\n", out.String())
}

func TestConsoleAsk(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		"y":     true,
	} {
		var out bytes.Buffer
		c := NewConsole(strings.NewReader(input), &out)
		assert.Equal(t, want, c.Ask("Delete graph?", "This cannot be undone."), "input %q", input)
		assert.Contains(t, out.String(), "Delete graph?")
	}
}

func TestConsolePrompt(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("n9\n Carol \n"), &out)
	values, ok := c.Prompt("Add node", []string{"id", "name"})
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"id": "n9", "name": "Carol"}, values)

	c = NewConsole(strings.NewReader("n9\n"), &out)
	_, ok = c.Prompt("Add node", []string{"id", "name"})
	assert.False(t, ok)
}
