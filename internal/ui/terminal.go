package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor returns true when ANSI colors should be used on stdout.
// It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func ShouldUseColor() bool {
	return shouldUseColor(os.Getenv, term.IsTerminal(int(os.Stdout.Fd())))
}

func shouldUseColor(getenv func(string) string, tty bool) bool {
	// https://no-color.org
	if getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	return tty
}

// IsInteractive reports whether stdin is a terminal, so confirmations and
// forms can be asked.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
