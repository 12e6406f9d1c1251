package refresh

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/schema"
	"github.com/sadopc/sqlsense/internal/testutil"
)

type fakeConn struct{ db string }

func (c *fakeConn) Execute(context.Context, string) (*adapter.QueryResult, error) {
	return nil, adapter.ErrUnsupported
}
func (c *fakeConn) UseDatabase(context.Context, string) error { return nil }
func (c *fakeConn) Ping(context.Context) error                { return nil }
func (c *fakeConn) Close() error                              { return nil }
func (c *fakeConn) DatabaseName() string                      { return c.db }
func (c *fakeConn) AdapterName() string                       { return "mysql" }

// fakeLoader numbers its builds. The cache of build n has active
// database "n". Builds listed in block wait for release; builds listed in
// fail return an error.
type fakeLoader struct {
	calls   atomic.Int64
	started chan int64
	release chan struct{}
	block   map[int64]bool
	fail    map[int64]bool
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		started: make(chan int64, 100),
		release: make(chan struct{}),
		block:   map[int64]bool{},
		fail:    map[int64]bool{},
	}
}

func (l *fakeLoader) Load(context.Context, adapter.Connection) (*schema.Cache, error) {
	n := l.calls.Add(1)
	l.started <- n
	if l.block[n] {
		<-l.release
	}
	if l.fail[n] {
		return nil, errors.New("connection reset")
	}
	b := schema.NewBuilder("mysql", schema.Static{})
	b.SetActiveDatabase(strconv.FormatInt(n, 10))
	return b.Build(), nil
}

type recorder struct {
	mu     sync.Mutex
	caches []*schema.Cache
}

func (r *recorder) onComplete(c *schema.Cache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches = append(r.caches, c)
}

func (r *recorder) actives() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.caches))
	for i, c := range r.caches {
		out[i] = c.ActiveDatabase()
	}
	return out
}

func waitStarted(t *testing.T, l *fakeLoader, want int64) {
	t.Helper()
	select {
	case n := <-l.started:
		require.Equal(t, want, n)
	case <-time.After(5 * time.Second):
		t.Fatalf("build %d never started", want)
	}
}

func TestRequestRefresh_Publishes(t *testing.T) {
	l := newFakeLoader()
	r := New(l, testutil.NewTestLogger(t))
	var rec recorder

	require.NoError(t, r.RequestRefresh(&fakeConn{}, rec.onComplete))
	r.Wait()

	assert.Equal(t, []string{"1"}, rec.actives())
	assert.False(t, r.Running())
	st := r.Stats()
	assert.Equal(t, uint64(1), st.Builds)
	assert.Equal(t, uint64(1), st.Published)
	assert.Equal(t, uint64(1), r.Generation())
}

func TestRequestRefresh_CoalescesBurst(t *testing.T) {
	l := newFakeLoader()
	l.block[1] = true
	r := New(l, testutil.NewTestLogger(t))
	var rec recorder
	conn := &fakeConn{}

	require.NoError(t, r.RequestRefresh(conn, rec.onComplete))
	waitStarted(t, l, 1)
	assert.True(t, r.Running())

	for range 10 {
		require.NoError(t, r.RequestRefresh(conn, rec.onComplete))
	}
	close(l.release)
	r.Wait()

	assert.Equal(t, int64(2), l.calls.Load(), "the running build plus one rebuild")
	assert.Equal(t, []string{"2"}, rec.actives(), "only the rebuild is published")

	st := r.Stats()
	assert.Equal(t, uint64(11), st.Requests)
	assert.Equal(t, uint64(2), st.Builds)
	assert.Equal(t, uint64(1), st.Superseded)
	assert.Equal(t, uint64(1), st.Published)
}

func TestRequestRefresh_LatestCallbackWins(t *testing.T) {
	l := newFakeLoader()
	l.block[1] = true
	r := New(l, testutil.NewTestLogger(t))
	var first, second recorder

	require.NoError(t, r.RequestRefresh(&fakeConn{}, first.onComplete))
	waitStarted(t, l, 1)
	require.NoError(t, r.RequestRefresh(&fakeConn{}, second.onComplete))
	close(l.release)
	r.Wait()

	assert.Empty(t, first.actives())
	assert.Equal(t, []string{"2"}, second.actives())
}

func TestRequestRefresh_FailureDoesNotPublish(t *testing.T) {
	l := newFakeLoader()
	l.fail[1] = true
	r := New(l, testutil.NewTestLogger(t))
	var rec recorder

	require.NoError(t, r.RequestRefresh(&fakeConn{db: "db1"}, rec.onComplete))
	r.Wait()

	assert.Empty(t, rec.actives())
	st := r.Stats()
	assert.Equal(t, uint64(1), st.Failures)
	assert.EqualError(t, st.LastError, "connection reset")

	// The next request retries from scratch.
	require.NoError(t, r.RequestRefresh(&fakeConn{db: "db1"}, rec.onComplete))
	r.Wait()
	assert.Equal(t, []string{"2"}, rec.actives())
}

func TestRequestRefresh_SupersededFailureIsRetried(t *testing.T) {
	l := newFakeLoader()
	l.block[1] = true
	l.fail[1] = true
	r := New(l, testutil.NewTestLogger(t))
	var rec recorder

	require.NoError(t, r.RequestRefresh(&fakeConn{}, rec.onComplete))
	waitStarted(t, l, 1)
	require.NoError(t, r.RequestRefresh(&fakeConn{}, rec.onComplete))
	close(l.release)
	r.Wait()

	assert.Equal(t, []string{"2"}, rec.actives())
	assert.Equal(t, uint64(0), r.Stats().Failures)
}

func TestRequestRefresh_RequestDuringPublishRebuilds(t *testing.T) {
	l := newFakeLoader()
	r := New(l, testutil.NewTestLogger(t))
	var rec recorder
	conn := &fakeConn{}

	var once sync.Once
	onComplete := func(c *schema.Cache) {
		rec.onComplete(c)
		once.Do(func() {
			assert.NoError(t, r.RequestRefresh(conn, rec.onComplete))
		})
	}

	require.NoError(t, r.RequestRefresh(conn, onComplete))
	r.Wait()

	assert.Equal(t, []string{"1", "2"}, rec.actives())
	assert.Equal(t, uint64(2), r.Stats().Published)
}

func TestRequestRefresh_ConcurrentRequests(t *testing.T) {
	l := newFakeLoader()
	r := New(l, nil)
	var published atomic.Int64

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RequestRefresh(&fakeConn{}, func(*schema.Cache) { published.Add(1) })
		}()
	}
	wg.Wait()
	r.Wait()

	st := r.Stats()
	assert.Equal(t, uint64(50), st.Requests)
	assert.Equal(t, st.Builds, st.Published+st.Superseded)
	assert.Equal(t, int64(st.Published), published.Load())
	assert.GreaterOrEqual(t, published.Load(), int64(1))
}

func TestClose(t *testing.T) {
	l := newFakeLoader()
	l.block[1] = true
	r := New(l, testutil.NewTestLogger(t))
	var rec recorder

	require.NoError(t, r.RequestRefresh(&fakeConn{}, rec.onComplete))
	waitStarted(t, l, 1)

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Close returned while a build was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(l.release)
	<-done

	assert.Equal(t, []string{"1"}, rec.actives(), "the in-flight build still publishes")
	assert.ErrorIs(t, r.RequestRefresh(&fakeConn{}, rec.onComplete), ErrClosed)
}

func TestClose_DropsSupersededBuild(t *testing.T) {
	l := newFakeLoader()
	l.block[1] = true
	r := New(l, testutil.NewTestLogger(t))
	var rec recorder

	require.NoError(t, r.RequestRefresh(&fakeConn{}, rec.onComplete))
	waitStarted(t, l, 1)
	require.NoError(t, r.RequestRefresh(&fakeConn{}, rec.onComplete))

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	// Close must have marked the refresher closed before the build ends.
	require.Eventually(t, func() bool {
		return errors.Is(r.RequestRefresh(&fakeConn{}, nil), ErrClosed)
	}, time.Second, time.Millisecond)
	close(l.release)
	<-done

	assert.Empty(t, rec.actives())
	assert.Equal(t, int64(1), l.calls.Load())
}
