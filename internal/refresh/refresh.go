// Package refresh rebuilds schema caches in the background, one build at a
// time per connection.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/schema"
)

// ErrClosed is returned by RequestRefresh after Close.
var ErrClosed = errors.New("refresh: closed")

// Loader builds a cache from a connection.
type Loader interface {
	Load(ctx context.Context, conn adapter.Connection) (*schema.Cache, error)
}

// Stats counts what the Refresher has done so far.
type Stats struct {
	Requests   uint64
	Builds     uint64
	Published  uint64
	Superseded uint64
	Failures   uint64
	LastError  error
	LastBuild  time.Duration
}

type request struct {
	conn       adapter.Connection
	onComplete func(*schema.Cache)
}

// Refresher runs at most one build at a time. Every request bumps a
// generation counter; a build whose generation is no longer the latest
// when it finishes is thrown away and the build restarts with the newest
// request. Requests made during a build therefore coalesce into a single
// follow-up build, and onComplete runs once per burst.
type Refresher struct {
	loader Loader
	logger *slog.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	gen     uint64
	latest  request
	running bool
	closed  bool
	stats   Stats
}

// New returns an idle Refresher. A nil logger uses slog.Default().
func New(loader Loader, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{loader: loader, logger: logger}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// RequestRefresh asks for a fresh cache of conn. It never blocks on a
// build: when one is already running it only records the request, and the
// running worker rebuilds once it finishes. onComplete receives the cache
// of the last build of the burst, on the worker goroutine; it is not
// called when that build fails.
func (r *Refresher) RequestRefresh(conn adapter.Connection, onComplete func(*schema.Cache)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	r.gen++
	r.latest = request{conn: conn, onComplete: onComplete}
	r.stats.Requests++
	if r.running {
		r.logger.Debug("refresh coalesced", "generation", r.gen)
		return nil
	}
	r.running = true
	go r.run()
	return nil
}

func (r *Refresher) run() {
	for {
		r.mu.Lock()
		gen, req := r.gen, r.latest
		r.mu.Unlock()

		start := time.Now()
		cache, err := r.loader.Load(context.Background(), req.conn)
		took := time.Since(start)

		r.mu.Lock()
		r.stats.Builds++
		r.stats.LastBuild = took
		if gen != r.gen {
			r.stats.Superseded++
			latest, closed := r.gen, r.closed
			if closed {
				r.stopLocked()
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			r.logger.Debug("refresh superseded", "generation", gen, "latest", latest)
			continue
		}
		if err != nil {
			r.stats.Failures++
			r.stats.LastError = err
			r.mu.Unlock()
			r.logger.Error("schema refresh failed",
				"err", err, "generation", gen, "database", databaseName(req.conn))
		} else {
			r.stats.Published++
			r.mu.Unlock()
			counts := cache.Counts()
			r.logger.Debug("schema refreshed",
				"generation", gen,
				"database", cache.ActiveDatabase(),
				"databases", counts.Databases,
				"tables", counts.Tables,
				"columns", counts.Columns,
				"took", took)
			if req.onComplete != nil {
				req.onComplete(cache)
			}
		}

		// A request that arrived while publishing starts a new burst on
		// this same worker, so publications never overlap.
		r.mu.Lock()
		if gen != r.gen && !r.closed {
			r.mu.Unlock()
			continue
		}
		r.stopLocked()
		r.mu.Unlock()
		return
	}
}

func (r *Refresher) stopLocked() {
	r.running = false
	r.idle.Broadcast()
}

// Running reports whether a build is in progress.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Generation returns the number of refreshes requested so far.
func (r *Refresher) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Stats returns a snapshot of the counters.
func (r *Refresher) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Wait blocks until no build is running.
func (r *Refresher) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.running {
		r.idle.Wait()
	}
}

// Close rejects further requests and waits for the running build, if any.
// An in-flight load is not interrupted.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.Wait()
}

func databaseName(conn adapter.Connection) string {
	if conn == nil {
		return ""
	}
	return conn.DatabaseName()
}
