// Package output provides styled terminal rendering helpers for bidctl.
package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/blackwell-systems/bidctl/internal/bidding"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorSuccess is used for bid increases and profitable figures.
	ColorSuccess = lipgloss.Color("#66bb6a")

	// ColorError is used for pauses and losses.
	ColorError = lipgloss.Color("#ef5350")

	// ColorWarning is used for bid decreases.
	ColorWarning = lipgloss.Color("#fff59d")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")

	// ColorWhite is used for primary text.
	ColorWhite = lipgloss.Color("#ffffff")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers.
	StyleHeader lipgloss.Style

	// StyleSuccess is used for positive values.
	StyleSuccess lipgloss.Style

	// StyleError is used for negative values.
	StyleError lipgloss.Style

	// StyleWarning is used for cautionary values.
	StyleWarning lipgloss.Style

	// StyleMuted is used for de-emphasized text.
	StyleMuted lipgloss.Style

	// StyleBold is used for emphasized text.
	StyleBold lipgloss.Style

	// StyleLabel is used for metric labels.
	StyleLabel lipgloss.Style

	// StyleValue is used for metric values.
	StyleValue lipgloss.Style
)

// noColor tracks whether color output is disabled.
var noColor bool

func init() {
	applyStyles()
}

func applyStyles() {
	base := lipgloss.NewStyle()
	if noColor {
		StyleHeader = base
		StyleSuccess = base
		StyleError = base
		StyleWarning = base
		StyleMuted = base
		StyleBold = base
		StyleLabel = base.Width(24)
		StyleValue = base.Width(12)
		return
	}
	StyleHeader = base.Foreground(ColorPrimary).Bold(true)
	StyleSuccess = base.Foreground(ColorSuccess)
	StyleError = base.Foreground(ColorError)
	StyleWarning = base.Foreground(ColorWarning)
	StyleMuted = base.Foreground(ColorMuted)
	StyleBold = base.Bold(true)
	StyleLabel = base.Width(24)
	StyleValue = base.Bold(true).Width(12)
}

// SetNoColor disables or enables color output globally. Package-level styles
// are rebuilt either way, so the call can be reversed.
func SetNoColor(disabled bool) {
	noColor = disabled
	applyStyles()
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}

// ActionStyle returns the style used to render an action.
func ActionStyle(a bidding.Action) lipgloss.Style {
	switch a {
	case bidding.ActionIncrease:
		return StyleSuccess
	case bidding.ActionDecrease:
		return StyleWarning
	case bidding.ActionPause:
		return StyleError
	default:
		return StyleMuted
	}
}
