package connector

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

// ============================================================================
// Listener
// ============================================================================

func TestListener_StartServeStop(t *testing.T) {
	t.Parallel()

	l := NewListener(ListenerConfig{Name: "WEBAPP", Address: "127.0.0.1", Handler: okHandler()})
	assert.Nil(t, l.Addr())

	require.NoError(t, l.Start())
	require.NotZero(t, l.Port())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", l.Port()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Stop(ctx))
	require.NoError(t, l.Stop(ctx), "second stop is a no-op")

	_, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/", l.Port()))
	assert.Error(t, err)
}

func TestListener_DefaultIdleTimeout(t *testing.T) {
	t.Parallel()

	l := NewListener(ListenerConfig{Name: "WEBAPP"})
	assert.Equal(t, DefaultIdleTimeout, l.server.IdleTimeout)
}

func TestListener_BindError(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	l := NewListener(ListenerConfig{
		Name:    "WEBSERVICE",
		Address: "127.0.0.1",
		Port:    busy.Addr().(*net.TCPAddr).Port,
		Handler: okHandler(),
	})
	assert.Error(t, l.Start())
	assert.NoError(t, l.Stop(context.Background()), "stop after failed start")
}

func TestListener_StartTwice(t *testing.T) {
	t.Parallel()

	l := NewListener(ListenerConfig{Name: "WEBAPP", Address: "127.0.0.1", Handler: okHandler()})
	require.NoError(t, l.Start())
	defer func() { _ = l.Stop(context.Background()) }()

	assert.Error(t, l.Start())
}

func TestListener_StopForcesAfterTimeout(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	l := NewListener(ListenerConfig{Name: "WEBAPP", Address: "127.0.0.1", Handler: slow})
	require.NoError(t, l.Start())

	go func() {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", l.Port()))
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Stop(ctx) }()

	select {
	case err := <-done:
		assert.Error(t, err, "graceful drain timed out")
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not complete")
	}
}

// ============================================================================
// MetricsHandler
// ============================================================================

func TestMetricsHandler_CountsRequests(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "hello") })
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })

	h := NewMetricsHandler("WEBSERVICE", mux, nil)
	h.SetEndpoint("127.0.0.1", 9091)

	for _, p := range []string{"/ok", "/ok", "/missing", "/fail"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	}

	s := h.Snapshot()
	assert.Equal(t, "WEBSERVICE", s.Name)
	assert.Equal(t, 9091, s.Port)
	assert.Equal(t, "127.0.0.1", s.Address)
	assert.False(t, s.StartedAt.IsZero())
	assert.Equal(t, uint64(4), s.Requests)
	assert.Equal(t, uint64(1), s.ClientErrors)
	assert.Equal(t, uint64(1), s.ServerErrors)
	assert.GreaterOrEqual(t, s.BytesWritten, uint64(10))
	assert.Zero(t, s.ActiveRequests)
	assert.GreaterOrEqual(t, s.MaxTime, s.MinTime)

	h.Reset()
	s = h.Snapshot()
	assert.Zero(t, s.Requests)
	assert.Zero(t, s.ClientErrors)
	assert.Equal(t, 9091, s.Port, "endpoint survives reset")
}

func TestMetricsHandler_KeepsIncomingRequestID(t *testing.T) {
	t.Parallel()

	var entry AccessEntry
	h := NewMetricsHandler("WEBAPP", okHandler(), AccessLoggerFunc(func(e AccessEntry) { entry = e }))

	r := httptest.NewRequest(http.MethodGet, "/x?y=1", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	r.Header.Set("User-Agent", "hostkit-test")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", entry.RequestID)
	assert.Equal(t, "WEBAPP", entry.Connector)
	assert.Equal(t, "/x", entry.Path)
	assert.Equal(t, "y=1", entry.Query)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, 2, entry.Bytes)
	assert.Equal(t, "hostkit-test", entry.UserAgent)
}

func TestMetricsHandler_RecoversPanic(t *testing.T) {
	t.Parallel()

	h := NewMetricsHandler("WEBAPP", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), nil)

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() { h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, uint64(1), h.Snapshot().ServerErrors)
}

func TestMetricsHandler_RepanicsAbort(t *testing.T) {
	t.Parallel()

	h := NewMetricsHandler("WEBAPP", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}), nil)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, uint64(1), h.Snapshot().Requests)
}

func TestMetricsHandler_ConnectionCounters(t *testing.T) {
	t.Parallel()

	h := NewMetricsHandler("WEBAPP", okHandler(), nil)
	l := NewListener(ListenerConfig{Name: "WEBAPP", Address: "127.0.0.1", Handler: h, ConnState: h.ConnState})
	require.NoError(t, l.Start())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", l.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, uint64(1), h.Snapshot().TotalConnections)

	require.NoError(t, l.Stop(context.Background()))
	assert.Eventually(t, func() bool { return h.Snapshot().OpenConnections == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "10.0.0.1", clientIP("10.0.0.1:1234"))
	assert.Equal(t, "::1", clientIP("[::1]:80"))
	assert.Equal(t, "garbage", clientIP("garbage"))
}
