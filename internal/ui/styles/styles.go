// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the shared visual styling for the LinguaLens TUI and
// CLI. Colors are lipgloss AdaptiveColor pairs so they track the terminal
// background; ForceTheme pins light or dark when the config asks for it.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ============================================================================
// PALETTE
// ============================================================================

// Teal is the brand accent: prompts, titles, the active scene.
var Teal = lipgloss.AdaptiveColor{Light: "#0D9488", Dark: "#2DD4BF"}

// Indigo marks assistant output and selections.
var Indigo = lipgloss.AdaptiveColor{Light: "#4F46E5", Dark: "#818CF8"}

// Green for success states.
var Green = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Red for errors.
var Red = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}

// Amber for warnings and the streaming indicator.
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Text shades.
var (
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
)

// Border and selection surfaces.
var (
	Border      = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}
	SelectionBg = lipgloss.AdaptiveColor{Light: "#CCFBF1", Dark: "#134E4A"}
)

// ============================================================================
// THEME CONTROL
// ============================================================================

// ForceTheme pins the renderer to a light or dark background. "auto" (or
// anything else) leaves termenv's detection in place.
func ForceTheme(theme string) {
	switch theme {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}
}

// HasDarkBackground reports the effective background, after any ForceTheme.
func HasDarkBackground() bool {
	return lipgloss.HasDarkBackground()
}

// ColorProfile exposes termenv's detected color capability, used to decide
// whether styling is worth emitting at all.
func ColorProfile() termenv.Profile {
	return termenv.ColorProfile()
}

// ============================================================================
// SHARED STYLES
// ============================================================================

var (
	// Title renders headers and the app name.
	Title = lipgloss.NewStyle().Foreground(Teal).Bold(true)

	// Prompt renders the input prompt marker.
	Prompt = lipgloss.NewStyle().Foreground(Teal).Bold(true)

	// UserLabel and AssistantLabel head transcript entries.
	UserLabel      = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	AssistantLabel = lipgloss.NewStyle().Foreground(Indigo).Bold(true)

	// Info renders secondary status lines.
	Info = lipgloss.NewStyle().Foreground(TextSecondary)

	// Muted renders hints, timestamps, and keybinding help.
	Muted = lipgloss.NewStyle().Foreground(TextMuted)

	// Error renders failures.
	Error = lipgloss.NewStyle().Foreground(Red).Bold(true)

	// Warning renders the streaming/stopped indicators.
	Warning = lipgloss.NewStyle().Foreground(Amber)

	// Success renders confirmations.
	Success = lipgloss.NewStyle().Foreground(Green)

	// Selected highlights the focused row in pickers and the history list.
	Selected = lipgloss.NewStyle().Foreground(TextPrimary).Background(SelectionBg).Bold(true)

	// PanelBorder frames overlays.
	PanelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1)
)
