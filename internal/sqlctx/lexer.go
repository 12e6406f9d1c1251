package sqlctx

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sadopc/sqlsense/internal/schema"
)

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*(?:[^*]|\*+[^*/])*\*+/`},
	{Name: "String", Pattern: `'(?:[^'\\]|\\.|'')*'|"(?:[^"\\]|\\.|"")*"`},
	{Name: "Quoted", Pattern: "`(?:[^`]|``)*`"},
	{Name: "Backslash", Pattern: `\\\S*`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_$@][\p{L}\p{N}_$@]*`},
	{Name: "Operator", Pattern: `<=>|<>|!=|<=|>=|:=|\|\||&&|[-+*/%=<>!~^&|]`},
	{Name: "Punct", Pattern: `[(),.;]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Other", Pattern: `.`},
})

var (
	symbols      = sqlLexer.Symbols()
	identType    = symbols["Ident"]
	quotedType   = symbols["Quoted"]
	operatorType = symbols["Operator"]
	skipTypes    = map[lexer.TokenType]bool{
		symbols["Whitespace"]: true,
		symbols["Comment"]:    true,
		lexer.EOF:             true,
	}
)

// keywords are the words treated as SQL keywords rather than identifiers,
// across every supported dialect.
var keywords = func() map[string]bool {
	set := map[string]bool{}
	for _, d := range []string{"mysql", "postgres", "sqlite"} {
		for _, k := range schema.KeywordsForDialect(d) {
			set[strings.ToLower(k)] = true
		}
	}
	return set
}()

type token struct {
	typ   lexer.TokenType
	text  string
	lower string
	off   int
}

func (t token) isIdent() bool   { return t.typ == identType }
func (t token) isKeyword() bool { return t.typ == identType && keywords[t.lower] }

// isName reports whether t can name a schema object.
func (t token) isName() bool {
	return (t.typ == identType && !clauseWords[t.lower]) || t.typ == quotedType
}

// name returns the object name t spells, without quoting.
func (t token) name() string {
	if t.typ == quotedType {
		return strings.ReplaceAll(t.text[1:len(t.text)-1], "``", "`")
	}
	return t.text
}

// clauseWords never name a table even in a position where one is expected.
var clauseWords = map[string]bool{
	"select": true, "where": true, "group": true, "order": true, "limit": true,
	"having": true, "on": true, "using": true, "set": true, "values": true,
	"join": true, "inner": true, "left": true, "right": true, "cross": true,
	"natural": true, "union": true, "as": true, "from": true, "into": true,
}

// tokenize returns the significant tokens of text. Offsets are byte
// offsets into text.
func tokenize(text string) []token {
	lex, err := sqlLexer.LexString("", text)
	if err != nil {
		return nil
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil
	}
	out := make([]token, 0, len(raw))
	for _, t := range raw {
		if skipTypes[t.Type] {
			continue
		}
		out = append(out, token{
			typ:   t.Type,
			text:  t.Value,
			lower: strings.ToLower(t.Value),
			off:   t.Pos.Offset,
		})
	}
	return out
}
