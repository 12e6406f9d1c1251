// Package completion turns a partially typed statement and a schema cache
// into ranked completion suggestions.
package completion

import (
	"io/fs"
	"strings"

	"github.com/sadopc/sqlsense/internal/schema"
	"github.com/sadopc/sqlsense/internal/sqlctx"
)

// Casing controls how keyword and built-in function candidates are cased.
type Casing string

const (
	CasingUpper Casing = "upper"
	CasingLower Casing = "lower"
	// CasingAuto follows the last typed character: lower case if it is a
	// lower-case letter, upper case otherwise.
	CasingAuto Casing = "auto"
)

// ParseCasing returns the Casing named by s, or CasingAuto for anything
// unrecognised.
func ParseCasing(s string) Casing {
	switch c := Casing(strings.ToLower(strings.TrimSpace(s))); c {
	case CasingUpper, CasingLower:
		return c
	}
	return CasingAuto
}

// Options controls a single Suggest call.
type Options struct {
	// Smart enables context analysis. Without it every known name that
	// starts with the word before the cursor is offered, uncategorised.
	Smart         bool
	KeywordCasing Casing
	// MaxSuggestions caps the result; zero means no limit.
	MaxSuggestions int
}

// DefaultOptions returns smart completion with automatic keyword casing.
func DefaultOptions() Options {
	return Options{Smart: true, KeywordCasing: CasingAuto}
}

// Suggestion is a single completion candidate. It replaces the text
// between Start and End, which always ends at the cursor.
type Suggestion struct {
	Text  string
	Kind  sqlctx.Kind
	Start int
	End   int
}

// StartPosition returns the span as a non-positive offset from the cursor.
func (s Suggestion) StartPosition() int { return s.Start - s.End }

// FavoriteSource lists the names of saved favorite queries.
type FavoriteSource interface {
	Names() []string
}

// Engine produces suggestions. It reads only the cache it is given and is
// safe for concurrent use.
type Engine struct {
	favorites FavoriteSource
	files     fs.FS
}

// Option configures an Engine.
type Option func(*Engine)

// WithFavorites sets the source of favorite query names.
func WithFavorites(src FavoriteSource) Option {
	return func(e *Engine) { e.favorites = src }
}

// WithFiles sets the file system file names are completed from. Paths
// typed by the user are resolved relative to its root.
func WithFiles(fsys fs.FS) Option {
	return func(e *Engine) { e.files = fsys }
}

// NewEngine returns an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Suggest returns the completions for text with the cursor at byte offset
// cursor. Offsets outside text are clamped.
func (e *Engine) Suggest(text string, cursor int, cache *schema.Cache, opts Options) []Suggestion {
	cursor = max(0, min(cursor, len(text)))
	before := text[:cursor]
	word := sqlctx.LastWord(before, sqlctx.MostPunctuations)

	r := &results{cursor: cursor, seen: map[dedupeKey]bool{}, limit: opts.MaxSuggestions}

	if !opts.Smart {
		r.add(sqlctx.KindNone, len(word), prefixMatches(word, cache.AllCompletions(), ""))
		return r.out
	}

	casing := opts.KeywordCasing
	if casing == "" {
		casing = CasingAuto
	}
	active := cache.ActiveDatabase()
	scope := func(schemaName string) string {
		if schemaName != "" {
			return schemaName
		}
		return active
	}

	for _, c := range sqlctx.Analyze(text, before) {
		if r.full() {
			break
		}
		kind := c.Kind()
		n := len(word)

		switch c := c.(type) {
		case sqlctx.Column:
			r.add(kind, n, fuzzyMatches(word, scopedColumns(cache, active, c), ""))
		case sqlctx.Function:
			r.add(kind, n, fuzzyMatches(word, cache.Functions(scope(c.Schema)), ""))
			// A qualifier most likely names a table, not a function schema.
			if c.Schema == "" {
				r.add(kind, n, prefixMatches(word, cache.StaticFunctions(), casing))
			}
		case sqlctx.Table:
			r.add(kind, n, fuzzyMatches(word, cache.Tables(scope(c.Schema)), ""))
		case sqlctx.View:
			r.add(kind, n, fuzzyMatches(word, cache.Views(scope(c.Schema)), ""))
		case sqlctx.Alias:
			r.add(kind, n, fuzzyMatches(word, c.Aliases, ""))
		case sqlctx.Database:
			r.add(kind, n, fuzzyMatches(word, cache.Databases(), ""))
		case sqlctx.Keyword:
			r.add(kind, n, prefixMatches(word, cache.Keywords(), casing))
		case sqlctx.Show:
			r.add(kind, n, fuzzyMatches(word, cache.ShowItems(), casing))
		case sqlctx.Change:
			r.add(kind, n, fuzzyMatches(word, cache.ChangeItems(), ""))
		case sqlctx.User:
			r.add(kind, n, fuzzyMatches(word, cache.Users(), ""))
		case sqlctx.Special:
			r.add(kind, n, prefixMatches(word, cache.SpecialCommands(), ""))
		case sqlctx.TableFormat:
			r.add(kind, n, prefixMatches(word, cache.TableFormats(), ""))
		case sqlctx.Favorite:
			if e.favorites != nil {
				r.add(kind, n, fuzzyMatches(word, e.favorites.Names(), ""))
			}
		case sqlctx.FileName:
			path := sqlctx.LastWord(before, sqlctx.AllPunctuations)
			r.add(kind, len(path), e.fileNames(path))
		}
	}
	return r.out
}

// scopedColumns returns the columns of the tables in c's scope. Each known
// table contributes "*" followed by its columns.
func scopedColumns(cache *schema.Cache, active string, c sqlctx.Column) []string {
	var cols []string
	for _, t := range c.Tables {
		db := t.Schema
		if db == "" {
			db = active
		}
		if !cache.HasTable(db, t.Name) {
			continue
		}
		cols = append(cols, "*")
		cols = append(cols, cache.Columns(db, t.Name)...)
	}
	if !c.DropUnique {
		return cols
	}

	// Keep only columns shared by more than one table, in first-seen order.
	counts := map[string]int{}
	var order []string
	for _, col := range cols {
		if counts[col] == 0 {
			order = append(order, col)
		}
		counts[col]++
	}
	var shared []string
	for _, col := range order {
		if col != "*" && counts[col] > 1 {
			shared = append(shared, col)
		}
	}
	return shared
}

type dedupeKey struct {
	text string
	kind sqlctx.Kind
}

type results struct {
	cursor int
	limit  int
	seen   map[dedupeKey]bool
	out    []Suggestion
}

func (r *results) full() bool { return r.limit > 0 && len(r.out) >= r.limit }

func (r *results) add(kind sqlctx.Kind, span int, texts []string) {
	for _, t := range texts {
		if r.full() {
			return
		}
		k := dedupeKey{t, kind}
		if r.seen[k] {
			continue
		}
		r.seen[k] = true
		r.out = append(r.out, Suggestion{
			Text:  t,
			Kind:  kind,
			Start: r.cursor - span,
			End:   r.cursor,
		})
	}
}
