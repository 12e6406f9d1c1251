// Package audit records executed statements as JSON lines.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry describes one executed statement.
type Entry struct {
	Query    string
	Adapter  string
	Database string
	Duration time.Duration
	Rows     int64
	Err      error
}

// Logger writes one JSON object per statement. A nil Logger discards
// everything.
type Logger struct {
	file *rotatingFile
	log  *slog.Logger
}

// New opens (creating parents 0o700 and the file 0o600) an append-only
// audit log at path. With maxSizeMB > 0 the file is moved to path.1 once it
// grows past that size.
func New(path string, maxSizeMB int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	rf := &rotatingFile{path: path, maxBytes: int64(maxSizeMB) << 20}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return &Logger{
		file: rf,
		log:  slog.New(slog.NewJSONHandler(rf, nil)),
	}, nil
}

// Record writes e. It is safe for concurrent use.
func (l *Logger) Record(e Entry) {
	if l == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("query", e.Query),
		slog.String("adapter", e.Adapter),
		slog.String("database", e.Database),
		slog.Int64("duration_ms", e.Duration.Milliseconds()),
		slog.Int64("rows", e.Rows),
	}
	level := slog.LevelInfo
	if e.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	l.log.LogAttrs(context.Background(), level, "statement", attrs...)
}

// Close closes the file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}

// rotatingFile is an io.Writer over an append-mode file that is renamed to
// path.1 when it exceeds maxBytes.
type rotatingFile struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	maxBytes int64
	size     int64
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("audit: stat file: %w", err)
	}
	r.f, r.size = f, info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return 0, os.ErrClosed
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	if err == nil && r.maxBytes > 0 && r.size >= r.maxBytes {
		err = r.rotate()
	}
	return n, err
}

func (r *rotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("audit: rotate: %w", err)
	}
	r.f = nil
	if err := os.Rename(r.path, r.path+".1"); err != nil {
		return fmt.Errorf("audit: rotate: %w", err)
	}
	return r.open()
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// SanitizeDSN masks the password in a DSN.
func SanitizeDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	for _, scheme := range []string{"postgres://", "postgresql://", "mysql://", "mariadb://"} {
		if !strings.HasPrefix(lower, scheme) {
			continue
		}
		u, err := url.Parse(dsn)
		if err != nil {
			return scheme + "xxxxx"
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		return u.String()
	}
	dsn = reDriverPassword.ReplaceAllString(dsn, "$1:xxxxx@")
	return reKeywordPassword.ReplaceAllString(dsn, "password=xxxxx")
}

var (
	// user:pass@tcp(host) as used by go-sql-driver/mysql.
	reDriverPassword  = regexp.MustCompile(`^([^:@/]*):[^@]*@`)
	reKeywordPassword = regexp.MustCompile(`password=\S+`)
)
