// Command monitord is the daemon and CLI entry point wiring
// internal/engine to a pane adapter, a session registry, and the notify
// drivers. The core engine never imports this package; monitord only ever
// talks to it through the public collaborator interfaces.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Version is set at build time via -ldflags, the same convention the
// teacher uses for its own CLI.
var Version = "dev"

func main() {
	initColorProfile()

	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		runDaemon(args[1:])
	case "add":
		handleAdd(args[1:])
	case "list", "ls":
		handleList(args[1:])
	case "remove", "rm":
		handleRemove(args[1:])
	case "attach":
		handleAttach(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("monitord v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "monitord: unknown command %q\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`monitord — session monitoring daemon

Usage:
  monitord run [--config path] [--pane-driver tmux|pty] [--dashboard]
  monitord add --name NAME --pane PANEID [--db path]
  monitord list [--db path]
  monitord remove SESSION [--db path]
  monitord attach NAME [--db path]
  monitord version`)
}

// initColorProfile mirrors the teacher's terminal-capability sniffing so
// the dashboard's lipgloss output degrades gracefully over SSH or in a
// plain pipe.
func initColorProfile() {
	if colorEnv := os.Getenv("MONITORD_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
		}
		return
	}

	if colorTerm := os.Getenv("COLORTERM"); colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	term := os.Getenv("TERM")
	trueColorTerms := []string{"xterm-256color", "screen-256color", "tmux-256color", "xterm-direct", "alacritty", "kitty", "wezterm"}
	for _, t := range trueColorTerms {
		if strings.Contains(term, t) || term == t {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	if os.Getenv("WT_SESSION") != "" || os.Getenv("ITERM_SESSION_ID") != "" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	lipgloss.SetColorProfile(termenv.ANSI256)
}
