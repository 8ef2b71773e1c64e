package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/poller"
)

// units for fields whose unit is known
var units = map[string]string{
	"TEMPERATURE":           "°C",
	"JOUR":                  "°C",
	"NUIT":                  "°C",
	"ACTUELLE":              "°C",
	"SOURCE_PRINCIPALE":     "°C",
	"DEPART_RADIATEUR":      "°C",
	"ECS":                   "°C",
	"BALLON_TAMPON":         "°C",
	"TEMPERATURE_EXTERIEUR": "°C",
}

// FormatValue renders a decoded value for display. Floats get one decimal
// and a unit; enum values show their label and code.
func FormatValue(key string, v payload.Value) string {
	switch {
	case v.Label != "":
		return fmt.Sprintf("%s (%d)", v.Label, v.Int)
	case v.Kind == payload.KindFloat32:
		return strings.TrimSpace(fmt.Sprintf("%.1f %s", v.Float, units[key]))
	default:
		return fmt.Sprintf("%d", v.Int)
	}
}

// RenderReading renders a reading as a titled key/value table
func RenderReading(name string, r payload.Reading, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := []string{ReadingTitleStyle.Render(name), ""}
	for _, key := range r.Keys() {
		lines = append(lines, ReadingKeyStyle.Render(key)+ReadingValueStyle.Render(FormatValue(key, r[key])))
	}
	return ReadingBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderSnapshot renders a poller snapshot: its reading, when it was taken
// and whether it is stale
func RenderSnapshot(s poller.Snapshot, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := []string{ReadingTitleStyle.Render(s.Parameter), ""}
	if s.Reading == nil {
		lines = append(lines, StaleStyle.Render("no reading yet"))
	}
	for _, key := range s.Reading.Keys() {
		lines = append(lines, ReadingKeyStyle.Render(key)+ReadingValueStyle.Render(FormatValue(key, s.Reading[key])))
	}

	if !s.UpdatedAt.IsZero() {
		lines = append(lines, "", StatusLineStyle.Render("updated "+s.UpdatedAt.Format(time.TimeOnly)))
	}
	if s.Stale || s.Error != "" {
		msg := s.Error
		if s.Stale {
			msg = StaleMarker + " stale: " + msg
		}
		lines = append(lines, StaleStyle.Render(msg))
	}
	return ReadingBoxStyle(width).Render(strings.Join(lines, "\n"))
}
