package session

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	// DefaultCookieName is the cookie carrying the session id
	DefaultCookieName = "image-assistant"

	idKey = "sid"
)

// Options configures a Manager
type Options struct {
	// Secret authenticates the cookie; a random key is generated when empty,
	// which invalidates every session on restart
	Secret          []byte
	CookieName      string
	HistoryCapacity int
	// IdleTimeout drops sessions not seen for this long; zero keeps them forever
	IdleTimeout time.Duration
	MaxAge      int
	Secure      bool
}

// Manager maps signed session cookies to in-memory Session values
type Manager struct {
	cookies *sessions.CookieStore
	opts    Options
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewManager creates a session registry
func NewManager(opts Options, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Secret) == 0 {
		opts.Secret = securecookie.GenerateRandomKey(32)
		if opts.Secret == nil {
			return nil, errors.New("failed to generate session secret")
		}
		logger.Warn("no session secret configured, using a random key")
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}

	cookies := sessions.NewCookieStore(opts.Secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		cookies:  cookies,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}, nil
}

// Get returns the session bound to the request's cookie, creating a new one
// (and setting the cookie on w) when the cookie is absent, invalid, or refers
// to a session that has been evicted.
func (m *Manager) Get(w http.ResponseWriter, r *http.Request) (*Session, error) {
	cs, err := m.cookies.Get(r, m.opts.CookieName)
	if err != nil {
		// a tampered or stale cookie yields a fresh cookie session
		m.logger.Debug("discarding invalid session cookie", zap.Error(err))
	}

	id, _ := cs.Values[idKey].(string)

	m.mu.Lock()
	now := m.now()
	m.evictLocked(now)
	sess, ok := m.sessions[id]
	if !ok {
		id = uuid.NewString()
		sess = New(id, m.opts.HistoryCapacity)
		m.sessions[id] = sess
	}
	sess.touch(now)
	m.mu.Unlock()

	if !ok {
		cs.Values[idKey] = id
		if err := cs.Save(r, w); err != nil {
			return nil, err
		}
		m.logger.Debug("session created", zap.String("session", id))
	}
	return sess, nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) evictLocked(now time.Time) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	for id, s := range m.sessions {
		if s.idleSince(now) > m.opts.IdleTimeout {
			delete(m.sessions, id)
			m.logger.Debug("session evicted", zap.String("session", id))
		}
	}
}
