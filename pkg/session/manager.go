package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/hostkit/internal/logger"
)

// ErrNotStarted is returned by Stop when Start was never called.
var ErrNotStarted = errors.New("session manager not started")

// PersistenceStrategy saves sessions when the web application stops and
// restores them when it starts again.
type PersistenceStrategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Load returns every persisted session.
	Load(ctx context.Context) ([]Record, error)

	// Save replaces the persisted sessions with records.
	Save(ctx context.Context, records []Record) error

	Close() error
}

// Listener observes session creation and destruction. Destruction covers
// invalidation, idle expiry and manager shutdown without persistence.
type Listener interface {
	SessionCreated(s *Session)
	SessionDestroyed(s *Session)
}

// Config configures a Manager.
type Config struct {
	CookieName  string
	IdleTimeout time.Duration

	// Secure marks the cookie Secure; set it when TLS terminates in front.
	Secure bool
}

// Manager owns the live sessions of one web application deployment.
type Manager struct {
	cfg         Config
	persistence PersistenceStrategy
	listener    Listener
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopReaper chan struct{}
	reaperDone chan struct{}
	started    bool
}

// NewManager creates a manager. persistence and listener may be nil.
func NewManager(cfg Config, persistence PersistenceStrategy, listener Listener) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "HOSTKIT_SESSION"
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Manager{
		cfg:         cfg,
		persistence: persistence,
		listener:    listener,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Start restores persisted sessions, dropping the ones already idle for
// longer than the timeout, and starts the expiry reaper.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	if m.persistence != nil {
		records, err := m.persistence.Load(ctx)
		if err != nil {
			return fmt.Errorf("load sessions from %s: %w", m.persistence.Name(), err)
		}
		now := m.now()
		restored := 0
		for _, r := range records {
			if now.Sub(r.LastAccess) > m.cfg.IdleTimeout {
				continue
			}
			m.sessions[r.ID] = fromRecord(m, r)
			restored++
		}
		logger.Info("Sessions restored", logger.KeyStore, m.persistence.Name(), logger.KeyCount, restored)
	}

	m.stopReaper = make(chan struct{})
	m.reaperDone = make(chan struct{})
	m.started = true
	go m.reap(reapInterval(m.cfg.IdleTimeout))

	return nil
}

// Stop halts the reaper and persists live sessions. Without a persistence
// strategy live sessions are destroyed and listeners notified.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.started = false
	close(m.stopReaper)
	done := m.reaperDone
	m.mu.Unlock()

	<-done

	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if m.persistence == nil {
		for _, s := range live {
			if s.markInvalid() && m.listener != nil {
				m.listener.SessionDestroyed(s)
			}
		}
		return nil
	}

	records := make([]Record, 0, len(live))
	for _, s := range live {
		records = append(records, s.record())
	}
	if err := m.persistence.Save(ctx, records); err != nil {
		return fmt.Errorf("save sessions to %s: %w", m.persistence.Name(), err)
	}
	logger.Info("Sessions persisted", logger.KeyStore, m.persistence.Name(), logger.KeyCount, len(records))
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Lookup returns the live session with id.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.expired(m.now(), m.cfg.IdleTimeout) {
		return nil, false
	}
	return s, true
}

// Create starts a new session and notifies the listener.
func (m *Manager) Create() *Session {
	s := newSession(m, uuid.NewString(), m.now())

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	if m.listener != nil {
		m.listener.SessionCreated(s)
	}
	return s
}

func (m *Manager) destroy(s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()

	if s.markInvalid() && m.listener != nil {
		m.listener.SessionDestroyed(s)
	}
}

// Expire destroys every session idle for longer than the timeout and
// returns how many were removed.
func (m *Manager) Expire() int {
	now := m.now()

	m.mu.RLock()
	var stale []*Session
	for _, s := range m.sessions {
		if s.expired(now, m.cfg.IdleTimeout) {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		m.destroy(s)
	}
	return len(stale)
}

func (m *Manager) reap(interval time.Duration) {
	defer close(m.reaperDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			if n := m.Expire(); n > 0 {
				logger.Debug("Expired idle sessions", logger.KeyCount, n)
			}
		}
	}
}

func reapInterval(idle time.Duration) time.Duration {
	d := idle / 4
	switch {
	case d < time.Second:
		return time.Second
	case d > time.Minute:
		return time.Minute
	default:
		return d
	}
}

// ============================================================================
// HTTP binding
// ============================================================================

type ctxKey struct{}

// binding carries what Get needs to find or create the request's session.
type binding struct {
	m       *Manager
	w       http.ResponseWriter
	session *Session
}

// Middleware binds the request to its session cookie. Sessions are created
// lazily by Get(ctx, true).
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := &binding{m: m, w: w}
		if c, err := r.Cookie(m.cfg.CookieName); err == nil {
			if s, ok := m.Lookup(c.Value); ok {
				s.touch(m.now())
				b.session = s
			}
		}

		ctx := r.Context()
		if b.session != nil {
			tagLogContext(ctx, b.session.id)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxKey{}, b)))
	})
}

// Get returns the session bound to the request. With create set, a new
// session is started and its cookie set when none is bound; the cookie must
// be written before the response header.
func Get(ctx context.Context, create bool) *Session {
	b, _ := ctx.Value(ctxKey{}).(*binding)
	if b == nil {
		return nil
	}
	if b.session != nil && b.session.Valid() {
		return b.session
	}
	if !create {
		return nil
	}

	s := b.m.Create()
	b.session = s
	tagLogContext(ctx, s.id)
	http.SetCookie(b.w, &http.Cookie{
		Name:     b.m.cfg.CookieName,
		Value:    s.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   b.m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

// tagLogContext records the session on the request's log context in place
// so the connector's access log sees it too.
func tagLogContext(ctx context.Context, id string) {
	if lc := logger.FromContext(ctx); lc != nil {
		lc.SessionID = id
	}
}
