package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/seda/internal/scaling"
	"github.com/Iron-Ham/seda/internal/seda"
)

// DefaultRefresh is how often the monitor re-reads stage statistics.
const DefaultRefresh = 500 * time.Millisecond

// columnWidths matches Headers.
var columnWidths = []int{20, 13, 12, 8, 9, 7, 10, 10, 8, 8, 36}

// StatsFunc returns the current statistics of the stages to display.
type StatsFunc func() []seda.Stats

// Options configures a Model.
type Options struct {
	// Title is shown above the table.
	Title string
	// Stats is polled on every refresh. Required.
	Stats StatsFunc
	// Footer, if set, is polled on every refresh and shown below the table.
	Footer func() string
	// Monitor, if set, supplies the reason for each stage's last decision.
	Monitor *scaling.Monitor
	// Refresh overrides DefaultRefresh.
	Refresh time.Duration
}

type tickMsg time.Time

// Model is a bubbletea model that shows live stage statistics.
type Model struct {
	opts     Options
	table    table.Model
	footer   string
	updated  time.Time
	quitting bool
}

// New creates a monitor model.
func New(opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Title == "" {
		opts.Title = "seda"
	}

	cols := make([]table.Column, len(Headers))
	for i, h := range Headers {
		cols[i] = table.Column{Title: h, Width: columnWidths[i]}
	}

	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		BorderBottom(true).
		Bold(true)
	st.Selected = Selected

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(st),
	)

	m := Model{opts: opts, table: t}
	m.refresh(time.Now())
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) refresh(now time.Time) {
	var stats []seda.Stats
	if m.opts.Stats != nil {
		stats = m.opts.Stats()
	}
	rows := Rows(stats, m.opts.Monitor)
	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row(r)
	}
	m.table.SetRows(tableRows)
	if m.opts.Footer != nil {
		m.footer = m.opts.Footer()
	}
	m.updated = now
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles refresh ticks, resizes and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh(time.Time(msg))
		return m, m.tick()

	case tea.WindowSizeMsg:
		// Leave room for the title, footer and help.
		m.table.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.refresh(time.Now())
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(Title.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(Box.Render(m.table.View()))
	b.WriteString("\n")
	if m.footer != "" {
		b.WriteString(m.footer)
		b.WriteString("\n")
	}
	b.WriteString(Subtitle.Render(fmt.Sprintf("updated %s", m.updated.Format("15:04:05"))))
	b.WriteString(Help.Render("↑/↓ select • r refresh • q quit"))
	return b.String()
}

// Run shows the monitor in the alternate screen until the user quits or ctx
// ends.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
