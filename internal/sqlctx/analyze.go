package sqlctx

import (
	"regexp"
	"strings"
	"unicode"
)

// Punctuation selects which characters end a word in LastWord.
type Punctuation int

const (
	// MostPunctuations stops at whitespace and . ( ) : ,
	MostPunctuations Punctuation = iota
	// ManyPunctuations stops at whitespace and ( ) : , keeping qualifiers.
	ManyPunctuations
	// AllPunctuations stops at whitespace only.
	AllPunctuations
)

var lastWordPatterns = map[Punctuation]*regexp.Regexp{
	MostPunctuations: regexp.MustCompile(`[^.():,\s]+$`),
	ManyPunctuations: regexp.MustCompile(`[^():,\s]+$`),
	AllPunctuations:  regexp.MustCompile(`\S+$`),
}

// LastWord returns the word that ends text. Text ending in whitespace has
// no last word.
func LastWord(text string, p Punctuation) string {
	return lastWordPatterns[p].FindString(text)
}

// Analyze returns the contexts valid at the end of textBeforeCursor, which
// must be a prefix of fullText. Only the statement holding the cursor is
// considered. The order of the result is the order completion categories
// should be presented in.
func Analyze(fullText, textBeforeCursor string) []Context {
	if !strings.HasPrefix(fullText, textBeforeCursor) {
		fullText = textBeforeCursor
	}
	stmt, before := currentStatement(fullText, len(textBeforeCursor))

	toks := tokenize(before)
	if len(toks) > 0 && (toks[0].lower == "source" || strings.HasPrefix(toks[0].text, `\`)) {
		return suggestSpecial(before)
	}

	word := LastWord(before, ManyPunctuations)
	var qualifier string
	if word != "" && !strings.HasPrefix(word, `\`) {
		before = before[:len(before)-len(word)]
		if i := strings.LastIndex(word, "."); i > 0 {
			qualifier = unquote(word[:i])
		}
		toks = tokenize(before)
	}

	a := &analyzer{
		before:    before,
		toks:      toks,
		stmt:      tokenize(stmt),
		qualifier: qualifier,
	}
	return a.suggest(len(toks) - 1)
}

// Split breaks text into its ;-separated statements, trimmed. Pieces holding
// only whitespace or comments are dropped. Semicolons inside strings, quoted
// names and comments do not split.
func Split(text string) []string {
	var out []string
	start, empty := 0, true
	for _, t := range tokenize(text) {
		if t.text != ";" {
			empty = false
			continue
		}
		if !empty {
			out = append(out, strings.TrimSpace(text[start:t.off]))
		}
		start, empty = t.off+1, true
	}
	if !empty {
		out = append(out, strings.TrimSpace(text[start:]))
	}
	return out
}

// currentStatement returns the ;-separated statement around cursor and its
// part before the cursor.
func currentStatement(text string, cursor int) (stmt, before string) {
	start, end := 0, len(text)
	for _, t := range tokenize(text) {
		if t.text != ";" {
			continue
		}
		if t.off < cursor {
			start = t.off + 1
		} else {
			end = t.off
			break
		}
	}
	return text[start:end], text[start:cursor]
}

func suggestSpecial(text string) []Context {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	cmd, _, found := strings.Cut(text, " ")
	if !found {
		return []Context{Special{}}
	}
	cmd = strings.ReplaceAll(strings.TrimSpace(cmd), "+", "")

	switch cmd {
	case `\u`, `\r`:
		return []Context{Database{}}
	case `\T`, "tableformat":
		return []Context{TableFormat{}}
	case `\f`, `\fs`, `\fd`:
		return []Context{Favorite{}}
	case `\dt`:
		return []Context{Table{}, View{}, Database{}}
	case `\.`, "source":
		return []Context{FileName{}}
	}
	return []Context{Keyword{}, Special{}}
}

type analyzer struct {
	before    string
	toks      []token // tokens of before
	stmt      []token // tokens of the whole statement
	qualifier string
}

var logicalOperators = map[string]bool{"and": true, "or": true, "not": true, "between": true}

// suggest returns the contexts that follow toks[i].
func (a *analyzer) suggest(i int) []Context {
	if i < 0 {
		return []Context{Keyword{}, Special{}}
	}
	tok := a.toks[i]

	switch {
	case tok.text == "(":
		return a.afterParen(i)
	case tok.lower == "set" || tok.lower == "by" || tok.lower == "distinct":
		return []Context{Column{Tables: a.tables()}}
	case tok.lower == "as":
		return nil
	case tok.lower == "show":
		return []Context{Show{}}
	case tok.lower == "to":
		if a.toks[0].lower == "change" {
			return []Context{Change{}}
		}
		return []Context{User{}}
	case tok.lower == "user" || tok.lower == "for":
		return []Context{User{}}
	case tok.lower == "select" || tok.lower == "where" || tok.lower == "having":
		return a.columnsOf()
	case tok.isIdent() && (strings.HasSuffix(tok.lower, "join") || relationWords[tok.lower]):
		schema := a.qualifier
		var out []Context
		if schema == "" {
			out = append(out, Database{})
		}
		out = append(out, Table{Schema: schema})
		if tok.lower != "truncate" {
			out = append(out, View{Schema: schema})
		}
		return out
	case tok.lower == "table" || tok.lower == "view" || tok.lower == "function":
		var rel Context
		switch tok.lower {
		case "table":
			rel = Table{Schema: a.qualifier}
		case "view":
			rel = View{Schema: a.qualifier}
		default:
			rel = Function{Schema: a.qualifier}
		}
		if a.qualifier != "" {
			return []Context{rel}
		}
		return []Context{Database{}, rel}
	case tok.lower == "on":
		return a.afterOn()
	case tok.lower == "use" || tok.lower == "database" || tok.lower == "template" || tok.lower == "connect":
		return []Context{Database{}}
	case tok.lower == "tableformat":
		return []Context{TableFormat{}}
	case tok.text == "," || tok.typ == operatorType || logicalOperators[tok.lower]:
		if j := a.prevKeyword(i - 1); j >= 0 {
			return a.suggest(j)
		}
		return nil
	}

	if a.inWhere(i) >= 0 {
		return a.columnsOf()
	}
	return []Context{Keyword{}}
}

var relationWords = map[string]bool{
	"copy": true, "from": true, "update": true, "into": true, "describe": true,
	"truncate": true, "desc": true, "explain": true,
}

// columnsOf returns the contexts of a select list or WHERE condition.
func (a *analyzer) columnsOf() []Context {
	tables := a.tables()
	if a.qualifier != "" {
		var scoped []TableRef
		for _, t := range tables {
			if t.identifiedBy(a.qualifier) {
				scoped = append(scoped, t)
			}
		}
		return []Context{
			Column{Tables: scoped},
			Table{Schema: a.qualifier},
			View{Schema: a.qualifier},
			Function{Schema: a.qualifier},
		}
	}
	return []Context{
		Column{Tables: tables},
		Function{},
		Alias{Aliases: aliases(tables)},
		Keyword{},
	}
}

func (a *analyzer) afterOn() []Context {
	tables := a.tables()
	if a.qualifier != "" {
		return a.columnsOf()
	}
	names := aliases(tables)
	out := []Context{Alias{Aliases: names}}
	// GRANT ... ON has no table references to alias.
	if len(names) == 0 {
		out = append(out, Table{})
	}
	return out
}

func (a *analyzer) afterParen(i int) []Context {
	if a.inWhere(i) >= 0 {
		if i > 0 && a.toks[i-1].lower == "exists" {
			return []Context{Keyword{}}
		}
		return a.columnsOf()
	}
	if i > 0 && a.toks[i-1].lower == "using" {
		return []Context{Column{Tables: a.tables(), DropUnique: true}}
	}
	switch a.toks[0].lower {
	case "select":
		// A parenthesis after whitespace most likely opens a subquery.
		if off := a.toks[i].off; off == 0 || unicode.IsSpace(rune(a.before[off-1])) {
			return []Context{Keyword{}}
		}
	case "show":
		return []Context{Show{}}
	}
	return []Context{Column{Tables: a.tables()}}
}

// prevKeyword returns the index of the last opening parenthesis or
// non-logical keyword at or before i, or -1.
func (a *analyzer) prevKeyword(i int) int {
	for ; i >= 0; i-- {
		t := a.toks[i]
		if t.text == "(" || (t.isKeyword() && !logicalOperators[t.lower]) {
			return i
		}
	}
	return -1
}

var clauseStarts = map[string]bool{
	"select": true, "from": true, "join": true, "group": true, "order": true,
	"limit": true, "having": true, "set": true, "values": true, "on": true,
	"into": true, "update": true, "union": true,
}

// inWhere returns the index of the WHERE keyword whose condition extends
// to toks[i], or -1.
func (a *analyzer) inWhere(i int) int {
	for j := i; j >= 0; j-- {
		switch t := a.toks[j]; {
		case t.lower == "where":
			return j
		case clauseStarts[t.lower]:
			return -1
		}
	}
	return -1
}

func (a *analyzer) tables() []TableRef {
	return extractTables(a.stmt)
}

func aliases(tables []TableRef) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Ref())
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '`' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
