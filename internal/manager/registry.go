package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSessions bounds a Registry created with a non-positive size.
const DefaultMaxSessions = 16

// ErrNoSession is returned for an unknown session id.
var ErrNoSession = errors.New("manager: no such session")

// Registry keeps the managers of open sessions. When it is full the least
// recently used session is evicted and its manager closed.
type Registry struct {
	sessions *lru.Cache[string, *Manager]
	logger   *slog.Logger
}

// NewRegistry returns a Registry holding up to size sessions.
func NewRegistry(size int, logger *slog.Logger) (*Registry, error) {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger}
	sessions, err := lru.NewWithEvict(size, r.evicted)
	if err != nil {
		return nil, fmt.Errorf("manager: new registry: %w", err)
	}
	r.sessions = sessions
	return r, nil
}

func (r *Registry) evicted(id string, m *Manager) {
	if err := m.Close(); err != nil {
		r.logger.Warn("closing session", "session", id, "err", err)
		return
	}
	r.logger.Debug("session closed", "session", id)
}

// Add registers m under a new session id and returns the id.
func (r *Registry) Add(m *Manager) string {
	id := uuid.NewString()
	r.sessions.Add(id, m)
	return id
}

// Get returns the manager of session id and marks it recently used.
func (r *Registry) Get(id string) (*Manager, error) {
	m, ok := r.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return m, nil
}

// ErrAmbiguousSession is returned by Lookup when a prefix matches more than
// one session.
var ErrAmbiguousSession = errors.New("manager: ambiguous session id")

// Lookup returns the session whose id is prefix or starts with it, and marks
// it recently used.
func (r *Registry) Lookup(prefix string) (string, *Manager, error) {
	if m, ok := r.sessions.Get(prefix); ok {
		return prefix, m, nil
	}
	var found string
	for _, id := range r.sessions.Keys() {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if found != "" {
			return "", nil, fmt.Errorf("%w: %s", ErrAmbiguousSession, prefix)
		}
		found = id
	}
	if found == "" || prefix == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrNoSession, prefix)
	}
	m, _ := r.sessions.Get(found)
	return found, m, nil
}

// IDs returns the open session ids, least recently used first.
func (r *Registry) IDs() []string {
	return r.sessions.Keys()
}

// Remove closes session id.
func (r *Registry) Remove(id string) error {
	if !r.sessions.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close closes every session.
func (r *Registry) Close() {
	r.sessions.Purge()
}
