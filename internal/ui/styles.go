// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the chat view.
type Theme struct {
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	SystemText     lipgloss.Style
	PausedText     lipgloss.Style
	MessageMeta    lipgloss.Style

	InputContainer lipgloss.Style

	StatusBar    lipgloss.Style
	StatusState  lipgloss.Style
	StatusDetail lipgloss.Style
	Help         lipgloss.Style
}

// NewTheme builds the theme for the requested variant. Anything other
// than an explicit "dark" or "light" follows the terminal background
// reported by termenv.
func NewTheme(variant string) *Theme {
	if variant != "dark" && variant != "light" {
		if termenv.HasDarkBackground() {
			variant = "dark"
		} else {
			variant = "light"
		}
	}

	var (
		accent    = lipgloss.Color("99")  // purple
		assistant = lipgloss.Color("42")  // green
		system    = lipgloss.Color("178") // amber
		dim       = lipgloss.Color("241")
	)
	if variant == "light" {
		dim = lipgloss.Color("245")
	}

	return &Theme{
		Header:      lipgloss.NewStyle().Padding(0, 1),
		HeaderTitle: lipgloss.NewStyle().Bold(true).Foreground(accent),

		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(accent),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(assistant),
		SystemLabel:    lipgloss.NewStyle().Bold(true).Foreground(system),
		SystemText:     lipgloss.NewStyle().Foreground(system),
		PausedText:     lipgloss.NewStyle().Italic(true).Foreground(dim),
		MessageMeta:    lipgloss.NewStyle().Foreground(dim),

		InputContainer: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(0, 1),

		StatusBar:    lipgloss.NewStyle().Foreground(dim).Padding(0, 1),
		StatusState:  lipgloss.NewStyle().Bold(true),
		StatusDetail: lipgloss.NewStyle().Foreground(dim),
		Help:         lipgloss.NewStyle().Foreground(dim),
	}
}
