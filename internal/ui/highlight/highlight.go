// Package highlight colours SQL text with chroma and the active theme.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sqlsense/internal/theme"
)

// lexerNames maps adapter names to chroma lexer aliases.
var lexerNames = map[string]string{
	"mysql":    "mysql",
	"mariadb":  "mysql",
	"postgres": "postgresql",
}

// Highlighter tokenises SQL text using chroma and renders it with lipgloss
// styles from a theme.
type Highlighter struct {
	lexer chroma.Lexer
}

// New returns a Highlighter for the dialect of the named adapter. Unknown
// adapters get the generic SQL lexer.
func New(adapterName string) *Highlighter {
	var l chroma.Lexer
	if name, ok := lexerNames[adapterName]; ok {
		l = lexers.Get(name)
	}
	if l == nil {
		l = lexers.Get("sql")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// Highlight returns sql with every token styled by th. Newlines are emitted
// unstyled so multi-line input renders correctly. A nil theme or a lexer
// failure returns sql unchanged.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil || sql == "" {
		return sql
	}

	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2)
	for _, tok := range iter.Tokens() {
		style, ok := styleFor(tok.Type, th)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		for i, line := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}
	out := b.String()
	// Some lexers terminate the last line.
	if !strings.HasSuffix(sql, "\n") {
		out = strings.TrimSuffix(out, "\n")
	}
	return out
}

// styleFor maps a chroma token type to a theme style. It reports false for
// tokens that pass through unstyled.
func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	// KeywordType is also a Keyword; types get their own colour.
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction || tt == chroma.NameBuiltin:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt.InCategory(chroma.Operator):
		return th.SQLOperator, true
	case tt == chroma.NameVariable || tt == chroma.LiteralStringName:
		return th.SQLIdentifier, true
	}
	return lipgloss.Style{}, false
}
