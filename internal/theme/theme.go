// Package theme provides the lipgloss styles used by the sqlsense REPL and
// explain output. Styles are grouped in a Theme so the look can be swapped
// at runtime.
package theme

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds lipgloss.Style values for every element the REPL renders.
type Theme struct {
	Name string

	// Input line
	Prompt lipgloss.Style

	// SQL Syntax highlighting
	SQLKeyword    lipgloss.Style
	SQLString     lipgloss.Style
	SQLNumber     lipgloss.Style
	SQLComment    lipgloss.Style
	SQLOperator   lipgloss.Style
	SQLFunction   lipgloss.Style
	SQLType       lipgloss.Style
	SQLIdentifier lipgloss.Style

	// Autocomplete
	AutocompleteItem     lipgloss.Style
	AutocompleteSelected lipgloss.Style
	AutocompleteKind     lipgloss.Style
	AutocompleteBorder   lipgloss.Style

	// Explain panel
	ExplainLabel  lipgloss.Style
	ExplainBorder lipgloss.Style

	// Status bar
	StatusBar        lipgloss.Style
	StatusBarKey     lipgloss.Style
	StatusBarValue   lipgloss.Style
	StatusBarError   lipgloss.Style
	StatusBarSuccess lipgloss.Style

	// General
	ErrorText   lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	MutedText   lipgloss.Style
}

// palette is the handful of colours a theme is derived from.
type palette struct {
	fg, muted, border, accent string
	keyword, str, number       string
	comment, function, typ     string
	ident, popupBg, selectBg   string
	selectFg                   string
	errColor, okColor, warn    string
}

func (p palette) build(name string) *Theme {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return &Theme{
		Name: name,

		Prompt: fg(p.accent).Bold(true),

		SQLKeyword:    fg(p.keyword).Bold(true),
		SQLString:     fg(p.str),
		SQLNumber:     fg(p.number),
		SQLComment:    fg(p.comment).Italic(true),
		SQLOperator:   fg(p.fg),
		SQLFunction:   fg(p.function),
		SQLType:       fg(p.typ),
		SQLIdentifier: fg(p.ident),

		AutocompleteItem: fg(p.fg).
			Background(lipgloss.Color(p.popupBg)).
			PaddingLeft(1).
			PaddingRight(1),
		AutocompleteSelected: fg(p.selectFg).
			Background(lipgloss.Color(p.selectBg)).
			PaddingLeft(1).
			PaddingRight(1),
		AutocompleteKind: fg(p.muted).Italic(true),
		AutocompleteBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.accent)),

		ExplainLabel: fg(p.accent).Bold(true),
		ExplainBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.border)).
			Padding(0, 1),

		StatusBar: fg(p.muted).Background(lipgloss.Color(p.popupBg)),
		StatusBarKey: fg(p.selectFg).
			Background(lipgloss.Color(p.selectBg)).
			Bold(true),
		StatusBarValue:   fg(p.fg).Background(lipgloss.Color(p.popupBg)),
		StatusBarError:   fg(p.errColor).Background(lipgloss.Color(p.popupBg)).Bold(true),
		StatusBarSuccess: fg(p.okColor).Background(lipgloss.Color(p.popupBg)),

		ErrorText:   fg(p.errColor).Bold(true),
		SuccessText: fg(p.okColor),
		WarningText: fg(p.warn),
		MutedText:   fg(p.muted),
	}
}

var palettes = map[string]palette{
	"default": {
		fg: "#D4D4D4", muted: "#808080", border: "#3C3C3C", accent: "#569CD6",
		keyword: "#569CD6", str: "#CE9178", number: "#B5CEA8",
		comment: "#6A9955", function: "#DCDCAA", typ: "#4EC9B0",
		ident: "#9CDCFE", popupBg: "#252526", selectBg: "#264F78",
		selectFg: "#FFFFFF",
		errColor: "#F44747", okColor: "#6A9955", warn: "#CCA700",
	},
	// Light suits light terminal backgrounds.
	"light": {
		fg: "#1E1E1E", muted: "#A0A0A0", border: "#D4D4D4", accent: "#0451A5",
		keyword: "#0000FF", str: "#A31515", number: "#098658",
		comment: "#008000", function: "#795E26", typ: "#267F99",
		ident: "#001080", popupBg: "#F3F3F3", selectBg: "#0060C0",
		selectFg: "#FFFFFF",
		errColor: "#E51400", okColor: "#16825D", warn: "#BF8803",
	},
	"monokai": {
		fg: "#F8F8F2", muted: "#75715E", border: "#49483E", accent: "#F92672",
		keyword: "#F92672", str: "#E6DB74", number: "#AE81FF",
		comment: "#75715E", function: "#A6E22E", typ: "#66D9EF",
		ident: "#F8F8F2", popupBg: "#3E3D32", selectBg: "#49483E",
		selectFg: "#F8F8F2",
		errColor: "#F92672", okColor: "#A6E22E", warn: "#E6DB74",
	},
}

// Themes maps theme names to their Theme definitions.
var Themes = func() map[string]*Theme {
	m := make(map[string]*Theme, len(palettes))
	for name, p := range palettes {
		m[name] = p.build(name)
	}
	return m
}()

// Current is the currently active theme. It is initialized to Default.
var Current = Themes["default"]

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name. If no theme with that name exists
// it falls back to the default theme.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Names returns the registered theme names in order.
func Names() []string {
	names := make([]string, 0, len(Themes))
	for name := range Themes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
