// Package favorites stores named queries in a SQLite database.
package favorites

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS favorites (
	name     TEXT PRIMARY KEY,
	query    TEXT NOT NULL,
	saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

var (
	// ErrNotFound is returned for names that have no saved query.
	ErrNotFound = errors.New("favorite not found")
	// ErrInvalidName is returned for empty names or names containing spaces.
	ErrInvalidName = errors.New("invalid favorite name")
)

// Favorite is a saved query.
type Favorite struct {
	Name    string
	Query   string
	SavedAt time.Time
}

// Store provides SQLite-backed favorite query storage. Names are kept in
// memory as well so completion never touches the database.
type Store struct {
	db *sql.DB

	mu    sync.RWMutex
	names []string
}

// Open opens (or creates) the favorites database at path. ":memory:" gives
// a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("favorites: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("favorites: open db: %w", err)
	}
	// Each pooled connection to :memory: would see its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("favorites: create table: %w", err)
	}

	s := &Store{db: db}
	if err := s.reloadNames(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Save stores query under name, replacing any previous query of that name.
func (s *Store) Save(name, query string) error {
	if name == "" || strings.ContainsFunc(name, isSpace) {
		return fmt.Errorf("favorites save %q: %w", name, ErrInvalidName)
	}
	_, err := s.db.Exec(
		`INSERT INTO favorites (name, query, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET query = excluded.query, saved_at = excluded.saved_at`,
		name, query, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("favorites save: %w", err)
	}
	return s.reloadNames()
}

// Get returns the favorite called name.
func (s *Store) Get(name string) (Favorite, error) {
	var f Favorite
	err := s.db.QueryRow(
		`SELECT name, query, saved_at FROM favorites WHERE name = ?`, name,
	).Scan(&f.Name, &f.Query, &f.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Favorite{}, fmt.Errorf("favorites get %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Favorite{}, fmt.Errorf("favorites get: %w", err)
	}
	return f, nil
}

// Delete removes the favorite called name.
func (s *Store) Delete(name string) error {
	res, err := s.db.Exec(`DELETE FROM favorites WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("favorites delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("favorites delete %q: %w", name, ErrNotFound)
	}
	return s.reloadNames()
}

// List returns every favorite ordered by name.
func (s *Store) List() ([]Favorite, error) {
	rows, err := s.db.Query(`SELECT name, query, saved_at FROM favorites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("favorites list: %w", err)
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.Name, &f.Query, &f.SavedAt); err != nil {
			return nil, fmt.Errorf("favorites scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("favorites rows: %w", err)
	}
	return out, nil
}

// Names returns the saved names in order. It satisfies
// completion.FavoriteSource.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) reloadNames() error {
	favs, err := s.List()
	if err != nil {
		return err
	}
	names := make([]string, len(favs))
	for i, f := range favs {
		names[i] = f.Name
	}
	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Substitute replaces $1, $2, ... in query with the matching args. Every
// arg must be used and every placeholder filled.
func Substitute(query string, args []string) (string, error) {
	used := make([]bool, len(args))
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(query, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil || n < 1 || n > len(args) {
			missing = append(missing, m)
			return m
		}
		used[n-1] = true
		return args[n-1]
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing arguments for %s", strings.Join(missing, ", "))
	}
	if i := slices.Index(used, false); i >= 0 {
		return "", fmt.Errorf("too many arguments: $%d is not used", i+1)
	}
	return out, nil
}
