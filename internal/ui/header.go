package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labelled line of a header
type Field struct {
	Key   string
	Value string
}

// Header announces a change before it is sent to the controller: what is
// written, where, and to which register.
type Header struct {
	Title      string
	Controller string
	Fields     []Field
	Width      int
}

// NewHeader creates a header for an operation against controller
func NewHeader(title, controller string, fields ...Field) *Header {
	return &Header{
		Title:      title,
		Controller: controller,
		Fields:     fields,
		Width:      GetTerminalWidth(),
	}
}

func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render draws the header. Fields keep the order they were given in.
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	lines := []string{TitleStyle.Render(strings.ToUpper(h.Title))}
	if h.Controller != "" {
		lines = append(lines, row("Controller", h.Controller))
	}
	if len(h.Fields) > 0 {
		rule := lipgloss.NewStyle().Foreground(AccentColor).Render(strings.Repeat("─", max(width-6, 10)))
		lines = append(lines, rule)
		for _, f := range h.Fields {
			lines = append(lines, row(f.Key, f.Value))
		}
	}

	return box(lipgloss.RoundedBorder(), AccentColor, width).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

func (h *Header) String() string {
	return h.Render()
}
