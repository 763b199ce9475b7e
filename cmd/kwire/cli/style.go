// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the terminal styles used by plan trees, run summaries and
// status tables. Colors use ANSI 256-color codes. Rendering to a writer
// that is not a terminal drops all styling.
type Theme struct {
	Plain   lipgloss.Style
	Heading lipgloss.Style
	Faint   lipgloss.Style
	Label   lipgloss.Style

	OK        lipgloss.Style
	Failed    lipgloss.Style
	Cancelled lipgloss.Style
	Running   lipgloss.Style

	Border lipgloss.Style
}

// NewTheme returns the theme for output written to w.
func NewTheme(w io.Writer) Theme {
	renderer := lipgloss.NewRenderer(w)
	color := func(code string) lipgloss.Style {
		return renderer.NewStyle().Foreground(lipgloss.Color(code))
	}
	return Theme{
		Plain:     renderer.NewStyle(),
		Heading:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		Faint:     color("245"),
		Label:     renderer.NewStyle().Bold(true),
		OK:        color("78"),
		Failed:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		Cancelled: color("214"),
		Running:   color("117"),
		Border:    color("240"),
	}
}

// State returns the style for a node or run state name. Unknown states
// render faint.
func (theme Theme) State(state string) lipgloss.Style {
	switch state {
	case "ok", "succeeded":
		return theme.OK
	case "failed":
		return theme.Failed
	case "cancelled":
		return theme.Cancelled
	case "running":
		return theme.Running
	default:
		return theme.Faint
	}
}
