// Package introspect identifies the single schema object under the cursor
// and renders a short explanation of it.
package introspect

import (
	"unicode"
	"unicode/utf8"

	"github.com/sadopc/sqlsense/internal/schema"
	"github.com/sadopc/sqlsense/internal/sqlctx"
)

// Classification is the object a token resolves to. Database is set for
// tables and columns, Table for columns.
type Classification struct {
	Word     string
	Kind     sqlctx.Kind
	Database string
	Table    string
}

// matcher tries to resolve word within one context kind.
type matcher struct {
	kind  sqlctx.Kind
	match func(c *schema.Cache, ctx sqlctx.Context, word string) (Classification, bool)
}

// matchers are tried in order; the first hit wins.
var matchers = []matcher{
	{sqlctx.KindKeyword, matchKeyword},
	{sqlctx.KindFunction, matchFunction},
	{sqlctx.KindDatabase, matchDatabase},
	{sqlctx.KindTable, matchTable},
	{sqlctx.KindColumn, matchColumn},
}

// Resolve classifies the identifier under the cursor. The cursor may sit
// anywhere inside the identifier. It reports false when nothing in the
// cache matches.
func Resolve(text string, cursor int, cache *schema.Cache) (Classification, bool) {
	cursor = max(0, min(cursor, len(text)))
	word, start := TokenAt(text, cursor)
	if word == "" {
		return Classification{}, false
	}

	byKind := map[sqlctx.Kind]sqlctx.Context{}
	for _, ctx := range sqlctx.Analyze(text, text[:start]) {
		if _, seen := byKind[ctx.Kind()]; !seen {
			byKind[ctx.Kind()] = ctx
		}
	}

	for _, m := range matchers {
		ctx, ok := byKind[m.kind]
		if !ok {
			continue
		}
		if cls, ok := m.match(cache, ctx, word); ok {
			cls.Word = word
			cls.Kind = m.kind
			return cls, true
		}
	}
	return Classification{}, false
}

// TokenAt returns the identifier around cursor: the word characters right
// before it joined with those right after it, and the offset it starts at.
func TokenAt(text string, cursor int) (string, int) {
	start := cursor
	for start > 0 {
		r, n := utf8.DecodeLastRuneInString(text[:start])
		if !isWordRune(r) {
			break
		}
		start -= n
	}
	end := cursor
	for end < len(text) {
		r, n := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(r) {
			break
		}
		end += n
	}
	return text[start:end], start
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func matchKeyword(c *schema.Cache, _ sqlctx.Context, word string) (Classification, bool) {
	return Classification{}, c.IsKeyword(word)
}

func matchFunction(c *schema.Cache, ctx sqlctx.Context, word string) (Classification, bool) {
	db := c.ActiveDatabase()
	if f, ok := ctx.(sqlctx.Function); ok && f.Schema != "" {
		db = f.Schema
	}
	return Classification{}, c.IsFunction(db, word)
}

func matchDatabase(c *schema.Cache, _ sqlctx.Context, word string) (Classification, bool) {
	return Classification{}, c.HasDatabase(word)
}

func matchTable(c *schema.Cache, ctx sqlctx.Context, word string) (Classification, bool) {
	db := c.ActiveDatabase()
	if t, ok := ctx.(sqlctx.Table); ok && t.Schema != "" {
		db = t.Schema
	}
	if db == "" || !c.HasTable(db, word) {
		return Classification{}, false
	}
	return Classification{Database: db}, true
}

// matchColumn looks in the first table of the context, then in every table
// and view of the active database in name order.
func matchColumn(c *schema.Cache, ctx sqlctx.Context, word string) (Classification, bool) {
	active := c.ActiveDatabase()
	if col, ok := ctx.(sqlctx.Column); ok && len(col.Tables) > 0 && col.Tables[0].Name != "" {
		first := col.Tables[0]
		db := first.Schema
		if db == "" {
			db = active
		}
		if c.HasColumn(db, first.Name, word) {
			return Classification{Database: db, Table: first.Name}, true
		}
	}

	if active == "" {
		return Classification{}, false
	}
	for _, group := range [][]string{c.Tables(active), c.Views(active)} {
		for _, t := range group {
			if c.HasColumn(active, t, word) {
				return Classification{Database: active, Table: t}, true
			}
		}
	}
	return Classification{}, false
}
