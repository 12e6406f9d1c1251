// Package statusbar renders the one-line footer of the REPL.
package statusbar

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sqlsense/internal/theme"
)

// clearAfter is how long a result or message stays before the key hints
// return.
const clearAfter = 5 * time.Second

// ConnectedMsg reports the active adapter and database.
type ConnectedMsg struct {
	Adapter  string
	Database string
}

// ResultMsg reports a finished statement.
type ResultMsg struct {
	Duration time.Duration
	Rows     int64
	Err      error
}

// StatusMsg shows a transient message.
type StatusMsg struct {
	Text    string
	IsError bool
}

// ClearStatusMsg reverts the bar to key hints. Only the latest one counts.
type ClearStatusMsg struct{ gen int }

// Model is the status bar component.
type Model struct {
	width        int
	adapterName  string
	databaseName string
	queryTime    time.Duration
	rowCount     int64
	message      string
	isError      bool
	format       string
	tables       int
	loading      bool
	gen          int
}

// New creates a new status bar.
func New() Model {
	return Model{rowCount: -1}
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages. Results and messages schedule a
// ClearStatusMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ConnectedMsg:
		m.adapterName = msg.Adapter
		m.databaseName = msg.Database

	case ResultMsg:
		if msg.Err != nil {
			m.message = firstLine(msg.Err.Error())
			m.isError = true
			m.queryTime = 0
			m.rowCount = -1
		} else {
			m.message = ""
			m.isError = false
			m.queryTime = msg.Duration
			m.rowCount = msg.Rows
		}
		return m, m.clearLater()

	case StatusMsg:
		m.message = msg.Text
		m.isError = msg.IsError
		return m, m.clearLater()

	case ClearStatusMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.queryTime = 0
		m.rowCount = -1
		m.message = ""
		m.isError = false
	}
	return m, nil
}

func (m *Model) clearLater() tea.Cmd {
	m.gen++
	gen := m.gen
	return tea.Tick(clearAfter, func(time.Time) tea.Msg {
		return ClearStatusMsg{gen: gen}
	})
}

// View renders the status bar.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	th := theme.Current

	left := th.StatusBarKey.Render(" disconnected ")
	if m.adapterName != "" {
		left = th.StatusBarKey.Render(fmt.Sprintf(" %s://%s ", m.adapterName, m.databaseName))
	}

	var center string
	switch {
	case m.message != "" && m.isError:
		center = th.StatusBarError.Render(" " + truncate(m.message, m.width/2) + " ")
	case m.message != "":
		center = th.StatusBarSuccess.Render(" " + truncate(m.message, m.width/2) + " ")
	case m.queryTime > 0:
		center = th.StatusBarValue.Render(fmt.Sprintf(" %s ", formatDuration(m.queryTime)))
		if m.rowCount >= 0 {
			center += th.StatusBarValue.Render(fmt.Sprintf(" %s rows ", formatCount(m.rowCount)))
		}
	default:
		center = th.StatusBarValue.Render("Tab") +
			th.StatusBar.Render(" Complete ") +
			th.StatusBarValue.Render("Ctrl+E") +
			th.StatusBar.Render(" Explain ") +
			th.StatusBarValue.Render("Ctrl+R") +
			th.StatusBar.Render(" Reload ") +
			th.StatusBarValue.Render(`\?`) +
			th.StatusBar.Render(" Help ")
	}

	schemaStr := fmt.Sprintf(" %d tables ", m.tables)
	if m.loading {
		schemaStr = " loading schema "
	}
	right := th.StatusBarValue.Render(schemaStr)
	if m.format != "" {
		right += th.StatusBarKey.Render(" " + m.format + " ")
	}

	gap := max(0, m.width-lipgloss.Width(left)-lipgloss.Width(center)-lipgloss.Width(right))
	leftGap := gap / 2

	bar := left +
		th.StatusBar.Render(strings.Repeat(" ", leftGap)) +
		center +
		th.StatusBar.Render(strings.Repeat(" ", gap-leftGap)) +
		right
	return th.StatusBar.Width(m.width).Render(bar)
}

// SetSize sets the status bar width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// SetSchema updates the schema cache display.
func (m *Model) SetSchema(tables int, loading bool) {
	m.tables = tables
	m.loading = loading
}

// SetFormat updates the result format display.
func (m *Model) SetFormat(format string) {
	m.format = format
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatCount(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		return s
	}
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
