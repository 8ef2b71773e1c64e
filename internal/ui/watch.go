package ui

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/ecomax360/internal/poller"
)

// RefreshFunc reads one parameter and returns its updated snapshot
type RefreshFunc func(ctx context.Context, name string) poller.Snapshot

type tickMsg time.Time

type snapshotMsg poller.Snapshot

// WatchModel is a Bubble Tea model that re-reads parameters on an interval
// and shows the latest snapshot of each
type WatchModel struct {
	ctx        context.Context
	refresh    RefreshFunc
	parameters []string
	interval   time.Duration

	spinner  spinner.Model
	snaps    map[string]poller.Snapshot
	pending  int
	width    int
	lastTick time.Time
	quitting bool
}

// NewWatchModel creates a model reading parameters every interval
func NewWatchModel(ctx context.Context, refresh RefreshFunc, parameters []string, interval time.Duration) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WatchModel{
		ctx:        ctx,
		refresh:    refresh,
		parameters: slices.Clone(parameters),
		interval:   interval,
		spinner:    s,
		snaps:      make(map[string]poller.Snapshot),
		width:      GetTerminalWidth(),
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return tickMsg(time.Now()) })
}

// fetch reads the parameters one after the other; the engine allows only
// one exchange at a time anyway
func (m WatchModel) fetch() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.parameters))
	for _, name := range m.parameters {
		cmds = append(cmds, func() tea.Msg {
			return snapshotMsg(m.refresh(m.ctx, name))
		})
	}
	return tea.Sequence(cmds...)
}

func (m WatchModel) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.pending == 0 {
				m.pending = len(m.parameters)
				return m, m.fetch()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width, MinTerminalWidth), MaxContentWidth)
		return m, nil

	case tickMsg:
		m.lastTick = time.Time(msg)
		if m.pending > 0 {
			return m, m.schedule()
		}
		m.pending = len(m.parameters)
		return m, tea.Batch(m.fetch(), m.schedule())

	case snapshotMsg:
		s := poller.Snapshot(msg)
		m.snaps[s.Parameter] = s
		if m.pending > 0 {
			m.pending--
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	for _, name := range m.parameters {
		s, ok := m.snaps[name]
		if !ok {
			s = poller.Snapshot{Parameter: name}
		}
		b.WriteString(RenderSnapshot(s, m.width))
		b.WriteString("\n")
	}

	status := "every " + m.interval.String() + "  •  r refresh  •  q quit"
	if m.pending > 0 {
		status = m.spinner.View() + " reading...  " + status
	}
	b.WriteString(StatusLineStyle.Render(status))
	b.WriteString("\n")
	return b.String()
}

// Snapshot returns the latest snapshot shown for a parameter
func (m WatchModel) Snapshot(name string) (poller.Snapshot, bool) {
	s, ok := m.snaps[name]
	return s, ok
}

// RunWatch runs the watch TUI until the user quits
func RunWatch(ctx context.Context, refresh RefreshFunc, parameters []string, interval time.Duration) error {
	p := tea.NewProgram(NewWatchModel(ctx, refresh, parameters, interval), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
