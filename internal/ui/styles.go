package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Warm accent for the boiler, blue for values read off the bus.
var (
	AccentColor  = lipgloss.Color("#E8743B")
	ValueColor   = lipgloss.Color("#5FAFD7")
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	StaleMarker   = "⚠"
)

var (
	TitleStyle = lipgloss.NewStyle().Foreground(TextColor).Bold(true)

	// KeyStyle aligns the left column of header and result rows
	KeyStyle = lipgloss.NewStyle().Foreground(MutedColor).Width(16)

	ValueStyle = lipgloss.NewStyle().Foreground(TextColor)

	SpinnerStyle = lipgloss.NewStyle().Foreground(AccentColor)

	StatusLineStyle = lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(2)

	HintStyle = lipgloss.NewStyle().Foreground(MutedColor)

	ReadingTitleStyle = lipgloss.NewStyle().Foreground(AccentColor).Bold(true)

	ReadingKeyStyle = lipgloss.NewStyle().Foreground(MutedColor).Width(24)

	ReadingValueStyle = lipgloss.NewStyle().Foreground(ValueColor).Bold(true)

	// StaleStyle marks readings kept from an earlier poll
	StaleStyle = lipgloss.NewStyle().Foreground(WarningColor).Italic(true)
)

// GetTerminalWidth returns the stdout width clamped to the supported range.
// When stdout is not a terminal the minimum is used.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return clampWidth(width)
}

func clampWidth(width int) int {
	return max(MinTerminalWidth, min(width, MaxContentWidth))
}

// box draws content in a bordered box spanning width columns
func box(border lipgloss.Border, color lipgloss.Color, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(color).
		Width(clampWidth(width) - 2)
}

// ReadingBoxStyle frames a decoded reading
func ReadingBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.RoundedBorder(), AccentColor, width).Padding(0, 1)
}

// row renders one aligned key/value line
func row(key, value string) string {
	return KeyStyle.Render(key) + ValueStyle.Render(value)
}
