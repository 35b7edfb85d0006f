package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test doubles
// ============================================================================

type fakeStrategy struct {
	mu      sync.Mutex
	records []Record
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Load(context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.loadErr
}

func (f *fakeStrategy) Save(_ context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records = records
	return nil
}

func (f *fakeStrategy) Close() error { return nil }

type recordingListener struct {
	mu        sync.Mutex
	created   []string
	destroyed []string
}

func (l *recordingListener) SessionCreated(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, s.ID())
}

func (l *recordingListener) SessionDestroyed(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.destroyed = append(l.destroyed, s.ID())
}

func (l *recordingListener) destroyedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.destroyed...)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestManagerRestoresAndPersists(t *testing.T) {
	t.Parallel()

	now := time.Now()
	strategy := &fakeStrategy{records: []Record{
		{ID: "fresh", CreatedAt: now, LastAccess: now, Attributes: map[string]string{"n": "1"}},
		{ID: "stale", CreatedAt: now.Add(-2 * time.Hour), LastAccess: now.Add(-2 * time.Hour)},
	}}

	m := NewManager(Config{IdleTimeout: time.Hour}, strategy, nil)
	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, 1, m.Count())
	s, ok := m.Lookup("fresh")
	require.True(t, ok)
	v, _ := s.Get("n")
	assert.Equal(t, "1", v)

	_, ok = m.Lookup("stale")
	assert.False(t, ok)

	s.Set("n", "2")
	require.NoError(t, m.Stop(context.Background()))

	require.Len(t, strategy.records, 1)
	assert.Equal(t, "2", strategy.records[0].Attributes["n"])
	assert.Equal(t, 0, m.Count())
}

func TestManagerLoadFailure(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{}, &fakeStrategy{loadErr: errors.New("disk gone")}, nil)
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestManagerSaveFailure(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{}, &fakeStrategy{saveErr: errors.New("read-only")}, nil)
	require.NoError(t, m.Start(context.Background()))
	m.Create()

	assert.Error(t, m.Stop(context.Background()))
}

func TestManagerStopWithoutStart(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{}, nil, nil)
	assert.ErrorIs(t, m.Stop(context.Background()), ErrNotStarted)
}

func TestManagerStopWithoutPersistenceDestroys(t *testing.T) {
	t.Parallel()

	l := &recordingListener{}
	m := NewManager(Config{}, nil, l)
	require.NoError(t, m.Start(context.Background()))

	s := m.Create()
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{s.ID()}, l.destroyedIDs())
	assert.False(t, s.Valid())
}

// ============================================================================
// Expiry & invalidation
// ============================================================================

func TestManagerExpire(t *testing.T) {
	t.Parallel()

	l := &recordingListener{}
	m := NewManager(Config{IdleTimeout: time.Minute}, nil, l)

	clock := time.Now()
	m.now = func() time.Time { return clock }

	old := m.Create()
	clock = clock.Add(45 * time.Second)
	young := m.Create()
	clock = clock.Add(30 * time.Second)

	assert.Equal(t, 1, m.Expire())
	assert.Equal(t, []string{old.ID()}, l.destroyedIDs())

	_, ok := m.Lookup(young.ID())
	assert.True(t, ok)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	t.Parallel()

	l := &recordingListener{}
	m := NewManager(Config{}, nil, l)

	s := m.Create()
	s.Invalidate()
	s.Invalidate()

	assert.Len(t, l.destroyedIDs(), 1)
	assert.Equal(t, 0, m.Count())
}

func TestReapInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, reapInterval(time.Second))
	assert.Equal(t, 15*time.Second, reapInterval(time.Minute))
	assert.Equal(t, time.Minute, reapInterval(time.Hour))
}

// ============================================================================
// HTTP binding
// ============================================================================

func TestMiddlewareCreatesAndReusesSession(t *testing.T) {
	t.Parallel()

	l := &recordingListener{}
	m := NewManager(Config{CookieName: "SID"}, nil, l)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := Get(r.Context(), true)
		v, _ := s.Get("hits")
		s.Set("hits", v+"x")
		_, _ = w.Write([]byte(v + "x"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "x", rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "SID", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "xx", rec.Body.String())
	assert.Empty(t, rec.Result().Cookies(), "existing session must not reissue the cookie")
	assert.Len(t, l.created, 1)
}

func TestGetWithoutCreate(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{}, nil, nil)
	var got *Session
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Get(r.Context(), false)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Nil(t, got)
	assert.Equal(t, 0, m.Count())
}

func TestGetOutsideMiddleware(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Get(context.Background(), true))
}

func TestUnknownCookieStartsNewSession(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{}, nil, nil)
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "HOSTKIT_SESSION", Value: "forged"})

	var id string
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = Get(r.Context(), true).ID()
	})).ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "forged", id)
	assert.Equal(t, 1, m.Count())
}
