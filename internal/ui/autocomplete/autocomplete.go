package autocomplete

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sqlsense/internal/completion"
	"github.com/sadopc/sqlsense/internal/sqlctx"
	"github.com/sadopc/sqlsense/internal/theme"
)

const maxVisible = 8

// Source produces suggestions for text at cursor. manager.Manager is one.
type Source interface {
	GetCompletions(text string, cursor int) []completion.Suggestion
}

// SelectedMsg is sent when a suggestion is accepted.
type SelectedMsg struct {
	Suggestion completion.Suggestion
}

// DismissMsg is sent when the dropdown is dismissed.
type DismissMsg struct{}

// Model is the suggestion dropdown.
type Model struct {
	source   Source
	items    []completion.Suggestion
	selected int
	visible  bool
	width    int
}

// New creates a dropdown fed by src.
func New(src Source) Model {
	return Model{
		source: src,
		width:  40,
	}
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles navigation while the dropdown is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "ctrl+p":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "ctrl+n":
		if m.selected < len(m.items)-1 {
			m.selected++
		}
	case "tab", "enter":
		if s, ok := m.Selected(); ok {
			m.visible = false
			return m, func() tea.Msg { return SelectedMsg{Suggestion: s} }
		}
	case "esc":
		m.visible = false
		return m, func() tea.Msg { return DismissMsg{} }
	}
	return m, nil
}

// View renders the visible window of suggestions.
func (m Model) View() string {
	if !m.visible || len(m.items) == 0 {
		return ""
	}

	th := theme.Current
	offset := 0
	if m.selected >= maxVisible {
		offset = m.selected - maxVisible + 1
	}
	end := min(offset+maxVisible, len(m.items))

	lines := make([]string, 0, end-offset)
	for i := offset; i < end; i++ {
		s := m.items[i]
		kind := th.AutocompleteKind.Render(kindTag(s.Kind))
		text := truncate(s.Text, m.width-lipgloss.Width(kind)-3)
		pad := max(0, m.width-2-lipgloss.Width(text)-lipgloss.Width(kind))
		label := text + strings.Repeat(" ", pad) + kind

		if i == m.selected {
			lines = append(lines, th.AutocompleteSelected.Render(label))
		} else {
			lines = append(lines, th.AutocompleteItem.Render(label))
		}
	}
	if len(m.items) > maxVisible {
		lines = append(lines, th.MutedText.Render(fmt.Sprintf(" %d/%d", m.selected+1, len(m.items))))
	}
	return th.AutocompleteBorder.Render(strings.Join(lines, "\n"))
}

// Trigger asks the source for suggestions at cursor and shows them. An
// empty result hides the dropdown.
func (m *Model) Trigger(text string, cursor int) {
	if m.source == nil {
		m.visible = false
		return
	}
	m.SetItems(m.source.GetCompletions(text, cursor))
}

// SetItems replaces the suggestions and selects the first.
func (m *Model) SetItems(items []completion.Suggestion) {
	m.items = items
	m.selected = 0
	m.visible = len(items) > 0
}

// Selected returns the highlighted suggestion.
func (m Model) Selected() (completion.Suggestion, bool) {
	if !m.visible || m.selected >= len(m.items) {
		return completion.Suggestion{}, false
	}
	return m.items[m.selected], true
}

// Items returns the current suggestions.
func (m Model) Items() []completion.Suggestion {
	return m.items
}

// Dismiss hides the dropdown.
func (m *Model) Dismiss() {
	m.visible = false
}

// Visible reports whether the dropdown is shown.
func (m Model) Visible() bool {
	return m.visible
}

// SetWidth sets the dropdown width in cells.
func (m *Model) SetWidth(w int) {
	if w > 10 {
		m.width = w
	}
}

// Apply replaces the span of s in text with the suggestion and returns the
// new text and cursor position.
func Apply(text string, s completion.Suggestion) (string, int) {
	start := max(0, min(s.Start, len(text)))
	end := max(start, min(s.End, len(text)))
	return text[:start] + s.Text + text[end:], start + len(s.Text)
}

func kindTag(k sqlctx.Kind) string {
	if k == sqlctx.KindNone {
		return ""
	}
	return k.String()
}

func truncate(s string, w int) string {
	if w < 4 || lipgloss.Width(s) <= w {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+3 > w {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
