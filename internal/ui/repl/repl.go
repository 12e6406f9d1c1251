// Package repl is the interactive bubbletea front end: a single input line
// with completion dropdown, explain panel and result scrollback.
package repl

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/audit"
	"github.com/sadopc/sqlsense/internal/favorites"
	"github.com/sadopc/sqlsense/internal/manager"
	"github.com/sadopc/sqlsense/internal/sqlctx"
	"github.com/sadopc/sqlsense/internal/theme"
	"github.com/sadopc/sqlsense/internal/ui/autocomplete"
	"github.com/sadopc/sqlsense/internal/ui/highlight"
	"github.com/sadopc/sqlsense/internal/ui/results"
	"github.com/sadopc/sqlsense/internal/ui/statusbar"
)

// maxScrollback bounds the number of output lines kept.
const maxScrollback = 2000

const helpText = `Commands:
  \?                 this help
  \q                 quit
  use DB, \u DB      switch database
  \T FORMAT          set result format
  \f                 list favorite queries
  \f NAME [ARGS...]  run a favorite query, filling $1, $2, ...
  \fs NAME QUERY     save a favorite query
  \fd NAME           delete a favorite query
  source FILE        run the statements in FILE, stopping at the first error
  connect DSN, \c DSN open another session and switch to it
  \sessions          list open sessions
  \session ID        switch to a session (an id prefix is enough)
Keys:
  Tab                complete / accept suggestion
  Ctrl+E             explain the identifier under the cursor
  Ctrl+R             reload the schema
  Ctrl+D             quit`

// execMsg carries the outcome of a statement.
type execMsg struct {
	stmt string
	res  *adapter.QueryResult
	err  error
}

// sourceMsg carries the outcomes of a sourced file's statements, in order.
type sourceMsg []execMsg

// useMsg carries the outcome of a database switch.
type useMsg struct {
	name string
	err  error
}

// connectMsg carries a newly opened session.
type connectMsg struct {
	mgr *manager.Manager
	err error
}

// explainMsg carries explain output for the identifier under the cursor.
type explainMsg struct {
	text string
	ok   bool
}

// Model is the REPL state.
type Model struct {
	mgr    *manager.Manager
	favs   *favorites.Store
	audit  *audit.Logger

	sessions  *manager.Registry
	sessionID string
	open      Opener
	input  textinput.Model
	ac     autocomplete.Model
	hl     *highlight.Highlighter
	status statusbar.Model
	format string

	lines   []string
	explain string
	busy    bool
	width   int
	height  int
	timeout time.Duration
}

// Opener connects to dsn and returns a manager for the new connection.
type Opener func(ctx context.Context, dsn string) (*manager.Manager, error)

// Option configures a Model.
type Option func(*Model)

// WithFavorites enables the \f commands.
func WithFavorites(s *favorites.Store) Option {
	return func(m *Model) { m.favs = s }
}

// WithSessions enables the session commands. The REPL starts on session id
// of reg; open creates the managers of new sessions.
func WithSessions(reg *manager.Registry, id string, open Opener) Option {
	return func(m *Model) {
		m.sessions, m.sessionID, m.open = reg, id, open
	}
}

// WithAudit records every executed statement to l.
func WithAudit(l *audit.Logger) Option {
	return func(m *Model) { m.audit = l }
}

// WithFormat sets the initial result format.
func WithFormat(f string) Option {
	return func(m *Model) {
		if results.Supported(f) {
			m.format = f
		}
	}
}

// WithTimeout bounds statement execution. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

// New returns a REPL over mgr.
func New(mgr *manager.Manager, opts ...Option) Model {
	in := textinput.New()
	in.Prompt = theme.Current.Prompt.Render(promptFor(mgr))
	in.Placeholder = `SQL, or \? for help`
	in.Focus()

	m := Model{
		mgr:    mgr,
		input:  in,
		ac:     autocomplete.New(mgr),
		hl:     highlight.New(mgr.Connection().AdapterName()),
		status: statusbar.New(),
		format: "ascii",
		width:  80,
		height: 24,
	}
	for _, o := range opts {
		o(&m)
	}
	m.status.SetSize(m.width)
	m.status.SetFormat(m.format)
	m.status, _ = m.status.Update(connected(mgr))
	return m
}

// activeDatabase is the database completion is scoped to. For SQLite that
// is "main", not the file the connection was opened on.
func activeDatabase(mgr *manager.Manager) string {
	if db := mgr.Cache().ActiveDatabase(); db != "" {
		return db
	}
	return mgr.Connection().DatabaseName()
}

func connected(mgr *manager.Manager) statusbar.ConnectedMsg {
	return statusbar.ConnectedMsg{Adapter: mgr.Connection().AdapterName(), Database: activeDatabase(mgr)}
}

func promptFor(mgr *manager.Manager) string {
	db := activeDatabase(mgr)
	if db == "" {
		db = "(none)"
	}
	return fmt.Sprintf("%s:%s> ", mgr.Connection().AdapterName(), db)
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles keys and command results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-lipgloss.Width(m.input.Prompt)-1)
		m.ac.SetWidth(min(60, msg.Width-2))
		m.status.SetSize(msg.Width)
		return m, nil

	case statusbar.ClearStatusMsg:
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case autocomplete.SelectedMsg:
		text, cursor := autocomplete.Apply(m.input.Value(), msg.Suggestion)
		m.input.SetValue(text)
		m.input.SetCursor(cursor)
		return m, nil

	case autocomplete.DismissMsg:
		return m, nil

	case execMsg:
		m.busy = false
		done := statusbar.ResultMsg{Err: msg.err, Rows: -1}
		if msg.res != nil {
			done.Duration, done.Rows = msg.res.Duration, msg.res.RowCount
		}
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(done)
		if msg.err != nil {
			m.printError(msg.err)
			return m, cmd
		}
		var buf bytes.Buffer
		if err := results.Write(&buf, msg.res, m.format); err != nil {
			m.printError(err)
			return m, cmd
		}
		m.print(strings.TrimRight(buf.String(), "\n"))
		if changesSchema(msg.stmt) {
			if err := m.mgr.Refresh(); err != nil {
				m.printError(err)
			}
		}
		return m, cmd

	case sourceMsg:
		// Only the last status tick matters; earlier ones are superseded.
		var cmd tea.Cmd
		for _, res := range msg {
			var next tea.Model
			next, cmd = m.Update(res)
			m = next.(Model)
		}
		return m, cmd

	case useMsg:
		m.busy = false
		if msg.err != nil {
			m.printError(msg.err)
			return m, nil
		}
		m.input.Prompt = theme.Current.Prompt.Render(promptFor(m.mgr))
		m.status, _ = m.status.Update(connected(m.mgr))
		m.print(theme.Current.SuccessText.Render(fmt.Sprintf("You are now connected to database %q", msg.name)))
		return m, nil

	case connectMsg:
		m.busy = false
		if msg.err != nil {
			m.printError(msg.err)
			return m, nil
		}
		m.switchTo(m.sessions.Add(msg.mgr), msg.mgr)
		return m, nil

	case explainMsg:
		if !msg.ok {
			m.explain = theme.Current.MutedText.Render("nothing to explain here")
		} else {
			m.explain = strings.TrimRight(msg.text, "\n")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ac.Visible() {
		switch msg.String() {
		case "up", "down", "ctrl+p", "ctrl+n", "tab", "enter", "esc":
			var cmd tea.Cmd
			m.ac, cmd = m.ac.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c":
		if m.input.Value() != "" {
			m.input.SetValue("")
			m.ac.Dismiss()
			return m, nil
		}
		return m, tea.Quit
	case "ctrl+d":
		return m, tea.Quit
	case "esc":
		m.explain = ""
		return m, nil
	case "tab", "ctrl+@":
		m.complete(msg.String() == "tab")
		return m, nil
	case "ctrl+e":
		m.ac.Dismiss()
		return m, m.explainCmd()
	case "ctrl+r":
		if err := m.mgr.Refresh(); err != nil {
			m.printError(err)
			return m, nil
		}
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(statusbar.StatusMsg{Text: "schema reload started"})
		return m, cmd
	case "enter":
		line := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		m.ac.Dismiss()
		m.explain = ""
		if line == "" {
			return m, nil
		}
		m.input.Prompt = theme.Current.Prompt.Render(promptFor(m.mgr))
		m.print(m.input.Prompt + m.hl.Highlight(line, theme.Current))
		return m, m.submit(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.updateSuggestions()
	return m, cmd
}

// complete shows the dropdown, or applies the suggestion directly when it
// is the only one and accept is set.
func (m *Model) complete(accept bool) {
	m.ac.Trigger(m.input.Value(), m.input.Position())
	if !accept || len(m.ac.Items()) != 1 {
		return
	}
	s, _ := m.ac.Selected()
	text, cursor := autocomplete.Apply(m.input.Value(), s)
	m.input.SetValue(text)
	m.input.SetCursor(cursor)
	m.ac.Dismiss()
}

// updateSuggestions refreshes the dropdown while typing. Nothing is shown
// until a word has been started.
func (m *Model) updateSuggestions() {
	text, pos := m.input.Value(), m.input.Position()
	if pos == 0 || pos > len(text) || isBreak(text[pos-1]) {
		m.ac.Dismiss()
		return
	}
	m.ac.Trigger(text, pos)
}

func isBreak(b byte) bool {
	return b == ' ' || b == '\t' || b == ',' || b == '(' || b == ')' || b == ';' || b == '='
}

func (m Model) explainCmd() tea.Cmd {
	text, pos := m.input.Value(), m.input.Position()
	mgr := m.mgr
	return func() tea.Msg {
		out, ok := mgr.Explain(context.Background(), text, pos)
		return explainMsg{text: out, ok: ok}
	}
}

// submit runs one input line: a client command or a statement.
func (m *Model) submit(line string) tea.Cmd {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case `\q`, "quit", "exit":
		return tea.Quit
	case `\?`, "help":
		m.print(helpText)
		return nil
	case `\t`:
		return m.setFormat(args)
	case "use", `\u`:
		if len(args) != 1 {
			m.printError(fmt.Errorf("usage: use DATABASE"))
			return nil
		}
		return m.useCmd(strings.Trim(strings.TrimSuffix(args[0], ";"), "`\""))
	case `\f`:
		return m.runFavorite(args)
	case `\fs`:
		return m.saveFavorite(strings.TrimSpace(line[len(fields[0]):]), args)
	case `\fd`:
		return m.deleteFavorite(args)
	case "connect", `\c`:
		return m.connectCmd(args)
	case `\sessions`:
		m.listSessions()
		return nil
	case `\session`:
		m.switchSession(args)
		return nil
	case "source", `\.`:
		if len(args) != 1 {
			m.printError(fmt.Errorf("usage: source FILE"))
			return nil
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			m.printError(err)
			return nil
		}
		stmts := sqlctx.Split(string(data))
		if len(stmts) == 0 {
			m.printError(fmt.Errorf("%s: no statements", args[0]))
			return nil
		}
		return m.sourceCmd(stmts)
	}
	return m.execCmd(line)
}

func (m *Model) setFormat(args []string) tea.Cmd {
	if len(args) != 1 || !results.Supported(args[0]) {
		m.printError(fmt.Errorf("table format must be one of %s", strings.Join(results.Formats, ", ")))
		return nil
	}
	m.format = args[0]
	m.status.SetFormat(m.format)
	m.print(theme.Current.MutedText.Render("Changed table format to " + m.format))
	return nil
}

func (m *Model) connectCmd(args []string) tea.Cmd {
	if m.sessions == nil || m.open == nil {
		m.printError(fmt.Errorf("sessions are not available"))
		return nil
	}
	if len(args) != 1 {
		m.printError(fmt.Errorf("usage: connect DSN"))
		return nil
	}
	m.busy = true
	open, dsn := m.open, args[0]
	return func() tea.Msg {
		mgr, err := open(context.Background(), dsn)
		return connectMsg{mgr: mgr, err: err}
	}
}

func (m *Model) listSessions() {
	if m.sessions == nil {
		m.printError(fmt.Errorf("sessions are not available"))
		return
	}
	// Touching every session oldest first keeps the eviction order.
	for _, id := range m.sessions.IDs() {
		mgr, err := m.sessions.Get(id)
		if err != nil {
			continue
		}
		mark := "  "
		if id == m.sessionID {
			mark = "* "
		}
		c := connected(mgr)
		m.print(fmt.Sprintf("%s%s  %s://%s", mark, id, c.Adapter, c.Database))
	}
}

func (m *Model) switchSession(args []string) {
	if m.sessions == nil {
		m.printError(fmt.Errorf("sessions are not available"))
		return
	}
	if len(args) != 1 {
		m.printError(fmt.Errorf(`usage: \session ID`))
		return
	}
	id, mgr, err := m.sessions.Lookup(args[0])
	if err != nil {
		m.printError(err)
		return
	}
	m.switchTo(id, mgr)
}

// switchTo makes mgr the session completion, explain and execution use.
func (m *Model) switchTo(id string, mgr *manager.Manager) {
	m.sessionID = id
	m.mgr = mgr
	m.ac = autocomplete.New(mgr)
	m.ac.SetWidth(min(60, m.width-2))
	m.hl = highlight.New(mgr.Connection().AdapterName())
	m.explain = ""
	m.input.Prompt = theme.Current.Prompt.Render(promptFor(mgr))
	m.status, _ = m.status.Update(connected(mgr))
	c := connected(mgr)
	m.print(theme.Current.SuccessText.Render(fmt.Sprintf("Session %s: %s://%s", id, c.Adapter, c.Database)))
}

// SessionID returns the id of the active session, if sessions are enabled.
func (m Model) SessionID() string {
	return m.sessionID
}

func (m *Model) useCmd(name string) tea.Cmd {
	m.busy = true
	mgr := m.mgr
	return func() tea.Msg {
		return useMsg{name: name, err: mgr.OnDatabaseChanged(context.Background(), name)}
	}
}

func (m *Model) execCmd(stmt string) tea.Cmd {
	m.busy = true
	run := m.runner()
	return func() tea.Msg { return run(stmt) }
}

// sourceCmd runs stmts in order and stops at the first failure.
func (m *Model) sourceCmd(stmts []string) tea.Cmd {
	m.busy = true
	run := m.runner()
	return func() tea.Msg {
		var out sourceMsg
		for _, stmt := range stmts {
			res := run(stmt)
			out = append(out, res)
			if res.err != nil {
				break
			}
		}
		return out
	}
}

// runner executes one statement on the current connection and audits it.
func (m *Model) runner() func(stmt string) execMsg {
	conn, timeout, log := m.mgr.Connection(), m.timeout, m.audit
	return func(stmt string) execMsg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		res, err := conn.Execute(ctx, stmt)
		e := audit.Entry{
			Query:    stmt,
			Adapter:  conn.AdapterName(),
			Database: conn.DatabaseName(),
			Duration: time.Since(start),
			Err:      err,
		}
		if res != nil {
			e.Rows = res.RowCount
		}
		log.Record(e)
		return execMsg{stmt: stmt, res: res, err: err}
	}
}

func (m *Model) runFavorite(args []string) tea.Cmd {
	if m.favs == nil {
		m.printError(fmt.Errorf("favorite queries are not available"))
		return nil
	}
	if len(args) == 0 {
		list, err := m.favs.List()
		if err != nil {
			m.printError(err)
			return nil
		}
		if len(list) == 0 {
			m.print(theme.Current.MutedText.Render("No favorite queries."))
			return nil
		}
		for _, f := range list {
			m.print(fmt.Sprintf("%s: %s", theme.Current.ExplainLabel.Render(f.Name), f.Query))
		}
		return nil
	}

	f, err := m.favs.Get(args[0])
	if err != nil {
		m.printError(err)
		return nil
	}
	stmt, err := favorites.Substitute(f.Query, args[1:])
	if err != nil {
		m.printError(err)
		return nil
	}
	m.print(theme.Current.MutedText.Render("> " + stmt))
	return m.execCmd(stmt)
}

// saveFavorite stores rest, the line after the command, as NAME QUERY.
func (m *Model) saveFavorite(rest string, args []string) tea.Cmd {
	if m.favs == nil {
		m.printError(fmt.Errorf("favorite queries are not available"))
		return nil
	}
	if len(args) < 2 {
		m.printError(fmt.Errorf(`usage: \fs NAME QUERY`))
		return nil
	}
	// Keep the query's own spacing.
	query := strings.TrimSpace(rest[len(args[0]):])
	if err := m.favs.Save(args[0], query); err != nil {
		m.printError(err)
		return nil
	}
	m.print(theme.Current.SuccessText.Render("Saved."))
	return nil
}

func (m *Model) deleteFavorite(args []string) tea.Cmd {
	if m.favs == nil {
		m.printError(fmt.Errorf("favorite queries are not available"))
		return nil
	}
	if len(args) != 1 {
		m.printError(fmt.Errorf(`usage: \fd NAME`))
		return nil
	}
	if err := m.favs.Delete(args[0]); err != nil {
		m.printError(err)
		return nil
	}
	m.print(theme.Current.SuccessText.Render(args[0] + ": Deleted."))
	return nil
}

// changesSchema reports whether stmt may add or remove schema objects.
func changesSchema(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "create", "drop", "alter", "rename":
		return true
	}
	return false
}

func (m *Model) print(s string) {
	m.lines = append(m.lines, strings.Split(s, "\n")...)
	if over := len(m.lines) - maxScrollback; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m *Model) printError(err error) {
	m.print(theme.Current.ErrorText.Render("ERROR: " + err.Error()))
}

// View renders scrollback, the input line, the dropdown or explain panel
// below it and the status bar.
func (m Model) View() string {
	var below string
	switch {
	case m.ac.Visible():
		below = m.ac.View()
	case m.explain != "":
		below = theme.Current.ExplainBorder.Render(m.explain)
	}

	// The cache may have been published since the prompt was built.
	in := m.input
	in.Prompt = theme.Current.Prompt.Render(promptFor(m.mgr))
	input := in.View()
	if m.busy {
		input = theme.Current.MutedText.Render("running...")
	}

	status := m.status
	status, _ = status.Update(connected(m.mgr))
	status.SetSchema(m.mgr.Cache().Counts().Tables, m.mgr.Refreshing())
	bar := status.View()

	room := max(0, m.height-1-lipgloss.Height(bar))
	if below != "" {
		room = max(0, room-lipgloss.Height(below))
	}
	start := max(0, len(m.lines)-room)

	var b strings.Builder
	for _, l := range m.lines[start:] {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(input)
	if below != "" {
		b.WriteByte('\n')
		b.WriteString(below)
	}
	if bar != "" {
		b.WriteByte('\n')
		b.WriteString(bar)
	}
	return b.String()
}

// Output returns the scrollback lines.
func (m Model) Output() []string {
	return m.lines
}

// Format returns the current result format.
func (m Model) Format() string {
	return m.format
}
