// Package manager ties a connection to its schema cache, the background
// refresher and the completion and introspection front ends.
package manager

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/completion"
	"github.com/sadopc/sqlsense/internal/introspect"
	"github.com/sadopc/sqlsense/internal/loader"
	"github.com/sadopc/sqlsense/internal/refresh"
	"github.com/sadopc/sqlsense/internal/schema"
)

// Manager serves completions for one connection. Queries always read the
// most recently published cache and never wait for a refresh.
type Manager struct {
	conn      adapter.Connection
	logger    *slog.Logger
	loader    refresh.Loader
	refresher *refresh.Refresher
	engine    *completion.Engine
	explainer *introspect.Explainer
	options   completion.Options

	tableFormats []string
	engineOpts   []completion.Option
	explainOpts  []introspect.ExplainOption

	cache atomic.Pointer[schema.Cache]
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger shared by the manager's components.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithLoader replaces the metadata loader.
func WithLoader(l refresh.Loader) Option {
	return func(m *Manager) { m.loader = l }
}

// WithCompletionOptions sets the options every completion request uses.
func WithCompletionOptions(o completion.Options) Option {
	return func(m *Manager) { m.options = o }
}

// WithTableFormats sets the table formats offered after \T.
func WithTableFormats(formats []string) Option {
	return func(m *Manager) { m.tableFormats = formats }
}

// WithFavorites sets where favorite query names come from.
func WithFavorites(src completion.FavoriteSource) Option {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, completion.WithFavorites(src)) }
}

// WithFiles sets the file system file names are completed from.
func WithFiles(fsys fs.FS) Option {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, completion.WithFiles(fsys)) }
}

// WithExplainOptions configures the explainer.
func WithExplainOptions(opts ...introspect.ExplainOption) Option {
	return func(m *Manager) { m.explainOpts = append(m.explainOpts, opts...) }
}

// New returns a Manager for conn and starts loading its schema. Until the
// first load completes, completions draw on the static lists only. The
// Manager owns conn and closes it in Close.
func New(conn adapter.Connection, opts ...Option) *Manager {
	m := &Manager{
		conn:    conn,
		options: completion.DefaultOptions(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.loader == nil {
		m.loader = loader.New(loader.WithTableFormats(m.tableFormats))
	}

	dialect := conn.AdapterName()
	m.cache.Store(schema.Empty(dialect, schema.StaticFor(dialect, m.tableFormats)))
	m.refresher = refresh.New(m.loader, m.logger.With("component", "refresh"))
	m.engine = completion.NewEngine(m.engineOpts...)
	m.explainer = introspect.NewExplainer(conn,
		append([]introspect.ExplainOption{introspect.WithLogger(m.logger)}, m.explainOpts...)...)

	if err := m.Refresh(); err != nil {
		m.logger.Warn("initial schema refresh not started", "err", err)
	}
	return m
}

// GetCompletions returns the suggestions for text with the cursor at byte
// offset cursor.
func (m *Manager) GetCompletions(text string, cursor int) []completion.Suggestion {
	return m.engine.Suggest(text, cursor, m.Cache(), m.options)
}

// GetIntrospection classifies the identifier under the cursor.
func (m *Manager) GetIntrospection(text string, cursor int) (introspect.Classification, bool) {
	return introspect.Resolve(text, cursor, m.Cache())
}

// Explain describes the identifier under the cursor. It reports false when
// the identifier is not recognised.
func (m *Manager) Explain(ctx context.Context, text string, cursor int) (string, bool) {
	cache := m.Cache()
	cls, ok := introspect.Resolve(text, cursor, cache)
	if !ok {
		return "", false
	}
	return m.explainer.Explain(ctx, cache, cls), true
}

// OnDatabaseChanged switches the connection to database name and refreshes
// the cache. The old cache stays in use until the new one is published.
func (m *Manager) OnDatabaseChanged(ctx context.Context, name string) error {
	if err := m.conn.UseDatabase(ctx, name); err != nil {
		return fmt.Errorf("manager: use database %q: %w", name, err)
	}
	m.logger.Info("database changed", "database", name)
	return m.Refresh()
}

// Refresh requests a cache rebuild without waiting for it.
func (m *Manager) Refresh() error {
	if err := m.refresher.RequestRefresh(m.conn, m.onRefreshComplete); err != nil {
		return fmt.Errorf("manager: refresh: %w", err)
	}
	return nil
}

func (m *Manager) onRefreshComplete(c *schema.Cache) {
	m.cache.Store(c)
}

// Cache returns the published cache.
func (m *Manager) Cache() *schema.Cache {
	return m.cache.Load()
}

// Connection returns the managed connection.
func (m *Manager) Connection() adapter.Connection {
	return m.conn
}

// Stats returns the refresher counters.
func (m *Manager) Stats() refresh.Stats {
	return m.refresher.Stats()
}

// Refreshing reports whether a schema build is in progress.
func (m *Manager) Refreshing() bool {
	return m.refresher.Running()
}

// Wait blocks until no refresh is running.
func (m *Manager) Wait() {
	m.refresher.Wait()
}

// Close stops refreshing, waits for a running build and closes the
// connection.
func (m *Manager) Close() error {
	m.refresher.Close()
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("manager: close connection: %w", err)
	}
	return nil
}
