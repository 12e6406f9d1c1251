package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: SQLSENSE_COMPLETION__KEYWORD_CASING=upper.
const EnvPrefix = "SQLSENSE_"

// Config holds all application configuration.
type Config struct {
	Theme       string            `koanf:"theme" yaml:"theme"`
	Completion  CompletionConfig  `koanf:"completion" yaml:"completion"`
	Explain     ExplainConfig     `koanf:"explain" yaml:"explain"`
	Output      OutputConfig      `koanf:"output" yaml:"output"`
	Favorites   FavoritesConfig   `koanf:"favorites" yaml:"favorites"`
	Sessions    SessionsConfig    `koanf:"sessions" yaml:"sessions"`
	Log         LogConfig         `koanf:"log" yaml:"log"`
	Audit       AuditConfig       `koanf:"audit" yaml:"audit"`
	Connections []SavedConnection `koanf:"connections" yaml:"connections"`
}

// CompletionConfig controls suggestions.
type CompletionConfig struct {
	Smart          bool     `koanf:"smart" yaml:"smart"`
	KeywordCasing  string   `koanf:"keyword_casing" yaml:"keyword_casing"` // "upper", "lower" or "auto"
	MaxSuggestions int      `koanf:"max_suggestions" yaml:"max_suggestions"`
	TableFormats   []string `koanf:"table_formats" yaml:"table_formats,omitempty"`
}

// ExplainConfig controls explain output.
type ExplainConfig struct {
	SampleRows int `koanf:"sample_rows" yaml:"sample_rows"`
}

// OutputConfig controls how statement results are printed.
type OutputConfig struct {
	TableFormat string `koanf:"table_format" yaml:"table_format"`
}

// FavoritesConfig locates the favorite query store. An empty path means
// ConfigDir()/favorites.db.
type FavoritesConfig struct {
	Path string `koanf:"path" yaml:"path,omitempty"`
}

// SessionsConfig bounds the number of open sessions.
type SessionsConfig struct {
	Max int `koanf:"max" yaml:"max"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// AuditConfig controls the statement audit log. An empty path means
// ConfigDir()/audit.jsonl.
type AuditConfig struct {
	Enabled   bool   `koanf:"enabled" yaml:"enabled"`
	Path      string `koanf:"path" yaml:"path,omitempty"`
	MaxSizeMB int    `koanf:"max_size_mb" yaml:"max_size_mb"`
}

// SavedConnection holds parameters for a saved database connection.
type SavedConnection struct {
	Name     string `koanf:"name" yaml:"name"`
	Adapter  string `koanf:"adapter" yaml:"adapter"`
	DSN      string `koanf:"dsn" yaml:"dsn,omitempty"`
	Host     string `koanf:"host" yaml:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port,omitempty"`
	User     string `koanf:"user" yaml:"user,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	Database string `koanf:"database" yaml:"database,omitempty"`
	File     string `koanf:"file" yaml:"file,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Theme: "default",
		Completion: CompletionConfig{
			Smart:         true,
			KeywordCasing: "auto",
		},
		Explain:  ExplainConfig{SampleRows: 5},
		Output:   OutputConfig{TableFormat: "ascii"},
		Sessions: SessionsConfig{Max: 16},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Audit: AuditConfig{MaxSizeMB: 10},
	}
}

func defaultValues() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"theme":                      d.Theme,
		"completion.smart":           d.Completion.Smart,
		"completion.keyword_casing":  d.Completion.KeywordCasing,
		"completion.max_suggestions": d.Completion.MaxSuggestions,
		"explain.sample_rows":        d.Explain.SampleRows,
		"output.table_format":        d.Output.TableFormat,
		"sessions.max":               d.Sessions.Max,
		"log.level":                  d.Log.Level,
		"log.format":                 d.Log.Format,
		"audit.enabled":              d.Audit.Enabled,
		"audit.max_size_mb":          d.Audit.MaxSizeMB,
	}
}

// flagKeys maps command-line flag names to configuration keys. Other flags
// are not configuration.
var flagKeys = map[string]string{
	"theme":           "theme",
	"smart":           "completion.smart",
	"keyword-casing":  "completion.keyword_casing",
	"max-suggestions": "completion.max_suggestions",
	"sample-rows":     "explain.sample_rows",
	"table-format":    "output.table_format",
	"favorites":       "favorites.path",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"audit":           "audit.enabled",
}

// ConfigDir returns the sqlsense configuration directory path,
// typically ~/.config/sqlsense/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "sqlsense"), nil
}

// DefaultPath returns ConfigDir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds a Config from, in increasing precedence, the defaults, the
// YAML file at path, SQLSENSE_* environment variables and the flags in
// flags that were set explicitly. A missing file is not an error; flags
// may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// LoadDefault loads configuration from DefaultPath().
func LoadDefault(flags *pflag.FlagSet) (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path, flags)
}

// normalize replaces out-of-range values with their defaults.
func (c *Config) normalize() {
	d := DefaultConfig()
	c.Completion.KeywordCasing = strings.ToLower(strings.TrimSpace(c.Completion.KeywordCasing))
	if !slices.Contains([]string{"upper", "lower", "auto"}, c.Completion.KeywordCasing) {
		c.Completion.KeywordCasing = d.Completion.KeywordCasing
	}
	if c.Completion.MaxSuggestions < 0 {
		c.Completion.MaxSuggestions = 0
	}
	if c.Explain.SampleRows < 0 {
		c.Explain.SampleRows = 0
	}
	if c.Audit.MaxSizeMB < 0 {
		c.Audit.MaxSizeMB = 0
	}
	if c.Sessions.Max <= 0 {
		c.Sessions.Max = d.Sessions.Max
	}
	if c.Output.TableFormat == "" {
		c.Output.TableFormat = d.Output.TableFormat
	}
}

// FavoritesPath returns the configured favorites store, defaulting to
// ConfigDir()/favorites.db.
func (c *Config) FavoritesPath() (string, error) {
	if c.Favorites.Path != "" {
		return c.Favorites.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "favorites.db"), nil
}

// AuditPath returns the configured audit log, defaulting to
// ConfigDir()/audit.jsonl.
func (c *Config) AuditPath() (string, error) {
	if c.Audit.Path != "" {
		return c.Audit.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.jsonl"), nil
}

// Connection returns the saved connection called name.
func (c *Config) Connection(name string) (SavedConnection, bool) {
	for _, sc := range c.Connections {
		if sc.Name == name {
			return sc, true
		}
	}
	return SavedConnection{}, false
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to DefaultPath().
func (c *Config) SaveDefault() error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return c.Save(path)
}

// BuildDSN constructs a connection string from the individual fields of a
// SavedConnection. If DSN is already set, it is returned as-is. For SQLite
// it returns the File field. For network adapters it builds
// "user:password@host:port/database".
func (sc *SavedConnection) BuildDSN() string {
	if sc.DSN != "" {
		return sc.DSN
	}

	if strings.EqualFold(sc.Adapter, "sqlite") {
		return sc.File
	}

	var b strings.Builder

	if sc.User != "" {
		b.WriteString(sc.User)
		if sc.Password != "" {
			b.WriteByte(':')
			b.WriteString(sc.Password)
		}
		b.WriteByte('@')
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	b.WriteString(host)

	if sc.Port > 0 {
		fmt.Fprintf(&b, ":%d", sc.Port)
	}

	if sc.Database != "" {
		b.WriteByte('/')
		b.WriteString(sc.Database)
	}

	return b.String()
}

// DisplayString returns "adapter://host:port/database" for network
// adapters or "adapter://file" for SQLite. It never includes the password.
func (sc *SavedConnection) DisplayString() string {
	if strings.EqualFold(sc.Adapter, "sqlite") {
		file := sc.File
		if file == "" {
			file = sc.DSN
		}
		return fmt.Sprintf("%s://%s", sc.Adapter, file)
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}

	location := host
	if sc.Port > 0 {
		location = fmt.Sprintf("%s:%d", host, sc.Port)
	}

	if sc.Database != "" {
		return fmt.Sprintf("%s://%s/%s", sc.Adapter, location, sc.Database)
	}
	return fmt.Sprintf("%s://%s", sc.Adapter, location)
}
