package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/audit"
	"github.com/sadopc/sqlsense/internal/completion"
	"github.com/sadopc/sqlsense/internal/config"
	"github.com/sadopc/sqlsense/internal/favorites"
	"github.com/sadopc/sqlsense/internal/introspect"
	"github.com/sadopc/sqlsense/internal/logging"
	"github.com/sadopc/sqlsense/internal/manager"
	"github.com/sadopc/sqlsense/internal/theme"
)

const connectTimeout = 30 * time.Second

// connOptions holds the connection and configuration flags shared by every
// command.
type connOptions struct {
	adapter    string
	host       string
	port       int
	user       string
	password   string
	database   string
	file       string
	config     string
	connection string
}

func (o *connOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.adapter, "adapter", "a", "", "Database adapter ("+strings.Join(adapter.Names(), ", ")+")")
	f.StringVarP(&o.host, "host", "H", "localhost", "Database host")
	f.IntVarP(&o.port, "port", "p", 0, "Database port")
	f.StringVarP(&o.user, "user", "u", "", "Database user")
	f.StringVarP(&o.password, "password", "P", "", "Database password")
	f.StringVarP(&o.database, "database", "d", "", "Database name")
	f.StringVarP(&o.file, "file", "f", "", "Database file (for SQLite)")
	f.StringVarP(&o.config, "config", "c", "", "Config file path")
	f.StringVarP(&o.connection, "connection", "C", "", "Saved connection name from the config file")

	// Configuration overrides; see config.Load.
	f.String("theme", "", "Color theme ("+strings.Join(theme.Names(), ", ")+")")
	f.Bool("smart", true, "Context-aware completion")
	f.String("keyword-casing", "", "Keyword casing: upper, lower or auto")
	f.Int("max-suggestions", 0, "Maximum suggestions (0 for no limit)")
	f.Int("sample-rows", 0, "Rows shown by explain")
	f.String("table-format", "", "Result format in the REPL")
	f.String("favorites", "", "Favorite query database path")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.String("log-format", "", "Log format: text or json")
	f.Bool("audit", false, "Record executed statements to the audit log")
}

// loadConfig reads the config file named by --config, or the default one,
// with flag overrides applied.
func (o *connOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if o.config != "" {
		return config.Load(o.config, cmd.Flags())
	}
	return config.LoadDefault(cmd.Flags())
}

// target resolves the adapter and DSN from a positional DSN, a saved
// connection or the individual flags, in that order.
func (o *connOptions) target(cfg *config.Config, args []string) (string, string, error) {
	var dsn, adapterName string

	if len(args) > 0 {
		dsn = args[0]
		adapterName = detectAdapter(dsn)
	} else if o.connection != "" {
		sc, ok := cfg.Connection(o.connection)
		if !ok {
			return "", "", fmt.Errorf("no saved connection named %q", o.connection)
		}
		adapterName = strings.ToLower(sc.Adapter)
		if sc.DSN != "" || adapterName == "sqlite" {
			dsn = sc.BuildDSN()
		} else {
			dsn = buildDSN(adapterName, sc.Host, sc.Port, sc.User, sc.Password, sc.Database, "")
		}
	}

	if o.adapter != "" {
		adapterName = o.adapter
	}
	if o.file != "" && adapterName == "" {
		adapterName = "sqlite"
	}
	if dsn == "" && adapterName != "" {
		dsn = buildDSN(adapterName, o.host, o.port, o.user, o.password, o.database, o.file)
	}

	if adapterName == "" || dsn == "" {
		return "", "", fmt.Errorf("no connection given: pass a DSN, --connection or --adapter")
	}
	if adapterName != "mariadb" {
		if _, ok := adapter.Registry[adapterName]; !ok {
			return "", "", fmt.Errorf("unknown adapter: %s (available: %s)", adapterName, strings.Join(adapter.Names(), ", "))
		}
	}
	return adapterName, dsn, nil
}

// session is an open connection wrapped in a registered manager.
type session struct {
	id     string
	mgr    *manager.Manager
	reg    *manager.Registry
	favs   *favorites.Store
	audit  *audit.Logger
	cfg    *config.Config
	logger *slog.Logger
	mopts  []manager.Option
}

// open connects to dsn with the session's manager options. The REPL uses it
// for connect; the caller registers the result.
func (s *session) open(ctx context.Context, dsn string) (*manager.Manager, error) {
	adapterName := detectAdapter(dsn)
	if adapterName == "" {
		return nil, fmt.Errorf("cannot tell the adapter of %q", audit.SanitizeDSN(dsn))
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	conn, err := adapter.Open(ctx, adapterName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s.logger.Debug("connection opened", "adapter", adapterName,
		"dsn", audit.SanitizeDSN(dsn), "database", conn.DatabaseName())
	return manager.New(conn, s.mopts...), nil
}

func (s *session) Close() {
	if s.reg != nil {
		s.reg.Close()
	}
	if s.favs != nil {
		s.favs.Close()
	}
	s.audit.Close()
}

// openSession connects, registers a manager for the connection and starts
// the first schema load. Logs go to logOut.
func openSession(cmd *cobra.Command, opts *connOptions, args []string, logOut io.Writer) (*session, error) {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	theme.Current = theme.Get(cfg.Theme)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	adapterName, dsn, err := opts.target(cfg, args)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
	defer cancel()
	conn, err := adapter.Open(ctx, adapterName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := &session{cfg: cfg, logger: logger}
	if path, err := cfg.FavoritesPath(); err == nil {
		if s.favs, err = favorites.Open(path); err != nil {
			logger.Warn("favorite queries unavailable", "path", path, "err", err)
		}
	}

	if cfg.Audit.Enabled {
		if path, err := cfg.AuditPath(); err == nil {
			if s.audit, err = audit.New(path, cfg.Audit.MaxSizeMB); err != nil {
				logger.Warn("audit log unavailable", "path", path, "err", err)
			}
		}
	}

	mopts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithCompletionOptions(completion.Options{
			Smart:          cfg.Completion.Smart,
			KeywordCasing:  completion.ParseCasing(cfg.Completion.KeywordCasing),
			MaxSuggestions: cfg.Completion.MaxSuggestions,
		}),
		manager.WithTableFormats(cfg.Completion.TableFormats),
		manager.WithExplainOptions(
			introspect.WithSampleRows(cfg.Explain.SampleRows),
			introspect.WithLabelStyle(theme.Current.ExplainLabel),
		),
	}
	if s.favs != nil {
		mopts = append(mopts, manager.WithFavorites(s.favs))
	}
	if wd, err := os.Getwd(); err == nil {
		mopts = append(mopts, manager.WithFiles(os.DirFS(wd)))
	}

	s.reg, err = manager.NewRegistry(cfg.Sessions.Max, logger)
	if err != nil {
		conn.Close()
		s.Close()
		return nil, err
	}
	s.mopts = mopts
	s.mgr = manager.New(conn, mopts...)
	s.id = s.reg.Add(s.mgr)
	logger.Debug("session opened", "session", s.id, "adapter", adapterName,
		"dsn", audit.SanitizeDSN(dsn), "database", conn.DatabaseName())
	return s, nil
}

// replLog opens the REPL log file in the config directory. Logging to the
// terminal would corrupt the display.
func replLog() (io.WriteCloser, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "sqlsense.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func detectAdapter(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"), strings.HasPrefix(lower, "mariadb://"):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://") || strings.HasPrefix(lower, "file:"):
		return "sqlite"
	case strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite"
	case lower == ":memory:":
		return "sqlite"
	case strings.Contains(lower, "@tcp("):
		return "mysql"
	}
	// Default: try as PostgreSQL DSN
	if strings.Contains(dsn, "@") {
		return "postgres"
	}
	return ""
}

func buildDSN(adapterName, host string, port int, user, password, database, file string) string {
	if host == "" {
		host = "localhost"
	}
	switch adapterName {
	case "postgres":
		u := &url.URL{
			Scheme: "postgres",
			Host:   host,
		}
		if user != "" {
			if password != "" {
				u.User = url.UserPassword(user, password)
			} else {
				u.User = url.User(user)
			}
		}
		if port > 0 {
			u.Host = fmt.Sprintf("%s:%d", host, port)
		}
		if database != "" {
			u.Path = "/" + database
		}
		return u.String()

	case "mysql", "mariadb":
		// go-sql-driver format: user:pass@tcp(host:port)/db
		var b strings.Builder
		if user != "" {
			b.WriteString(user)
			if password != "" {
				b.WriteString(":" + password)
			}
			b.WriteByte('@')
		}
		if port == 0 {
			port = 3306
		}
		fmt.Fprintf(&b, "tcp(%s:%d)/%s", host, port, database)
		return b.String()

	case "sqlite":
		if file != "" {
			return file
		}
		if database != "" {
			return database
		}
		return ":memory:"
	}
	return ""
}
