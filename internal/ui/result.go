package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

// ResultType is the outcome shown by a Result
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// look is the marker, label and color of a result type
func (t ResultType) look() (string, string, lipgloss.Color) {
	switch t {
	case ResultFailure:
		return FailureMarker, "FAILED", ErrorColor
	case ResultWarning:
		return StaleMarker, "WARNING", WarningColor
	default:
		return SuccessMarker, "OK", SuccessColor
	}
}

// Result is the outcome of a controller operation: a write that was
// acknowledged, a verification that failed, an unreachable bridge.
type Result struct {
	Type    ResultType
	Title   string
	Details map[string]string
	Error   error
	// Hints are shown under a failure, see deviceerr.GetTroubleshootingHint
	Hints []string
	Width int
}

func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewErrorResult creates a failure result with hints derived from err
func NewErrorResult(title string, err error) *Result {
	return &Result{
		Type:  ResultFailure,
		Title: title,
		Error: err,
		Hints: deviceerr.GetTroubleshootingHint(err),
		Width: GetTerminalWidth(),
	}
}

func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds a key/value line
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Render draws the result in a double-bordered box colored by its type.
// Details are sorted by key.
func (r *Result) Render() string {
	marker, label, color := r.Type.look()
	width := clampWidth(r.Width)

	title := lipgloss.NewStyle().Foreground(color).Bold(true).
		Render(fmt.Sprintf("%s  %s  ─  %s", marker, label, r.Title))
	lines := []string{"", title, ""}

	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		lines = append(lines, row(k+":", r.Details[k]))
	}

	if r.Error != nil {
		lines = append(lines, lipgloss.NewStyle().Foreground(ErrorColor).Render("Error: "+r.Error.Error()))
	}
	if len(r.Hints) > 0 {
		lines = append(lines, "", HintStyle.Bold(true).Render("Try:"))
		for _, h := range r.Hints {
			lines = append(lines, HintStyle.Render("  • "+h))
		}
	}
	lines = append(lines, "")

	return box(lipgloss.DoubleBorder(), color, width).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) String() string {
	return r.Render()
}
