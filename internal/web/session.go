package web

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = time.Hour
)

// UserSession is the server-side state of one browser: the requested year, the form fields
// and the authorization session.
type UserSession struct {
	ID   string
	Auth *auth.Session

	mu       sync.Mutex
	year     int
	name     string
	age      string
	building bool
}

// Year returns the pending chart year, or 0.
func (u *UserSession) Year() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.year
}

// SetForm records the submitted form fields. Name and age are kept but not used.
func (u *UserSession) SetForm(year int, name, age string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.year, u.name, u.age = year, name, age
}

// ClearYear forgets the pending year.
func (u *UserSession) ClearYear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.year = 0
}

// StartBuild marks a build in flight; it returns false when one already is.
func (u *UserSession) StartBuild() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.building {
		return false
	}
	u.building = true
	return true
}

// FinishBuild clears the in-flight mark.
func (u *UserSession) FinishBuild() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.building = false
}

// SessionStore maps session ids to [UserSession]s. Entries expire after the TTL since their
// last use, and the least recently used session is evicted once the store is full.
type SessionStore struct {
	sessions *expirable.LRU[string, *UserSession]
	provider *auth.Provider
	logger   *log.Logger
}

// NewSessionStore creates a store whose sessions authorize through provider.
func NewSessionStore(provider *auth.Provider, size int, ttl time.Duration, logger *log.Logger) *SessionStore {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &SessionStore{provider: provider, logger: logger}
	s.sessions = expirable.NewLRU[string, *UserSession](size, func(id string, _ *UserSession) {
		logger.Debug("session evicted", "session", id)
	}, ttl)
	return s
}

// New creates and stores an empty session.
func (s *SessionStore) New() *UserSession {
	us := &UserSession{
		ID:   shared.GenerateID(),
		Auth: auth.NewSession(s.provider, s.logger),
	}
	s.sessions.Add(us.ID, us)
	return us
}

// Get returns the session for id and extends its lifetime.
func (s *SessionStore) Get(id string) (*UserSession, bool) {
	if id == "" {
		return nil, false
	}
	us, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s.sessions.Add(id, us)
	return us, true
}

// Remove deletes the session for id.
func (s *SessionStore) Remove(id string) {
	s.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.sessions.Len()
}
