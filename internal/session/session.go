// Package session holds per-visitor state for the web UI.
package session

import (
	"sync"
	"time"
)

// Session is the mutable state of one visitor. Callers hold Lock for the
// duration of a user action so actions within a session are serialized.
type Session struct {
	mu sync.Mutex

	ID                 string
	LoggedIn           bool
	CurrentUser        string
	UsageCount         int
	SubscriptionStatus bool
	ShowPaymentPage    bool

	// Notice is a one-shot message rendered on the next page view
	Notice string

	history  *History
	lastSeen time.Time
}

// New creates a logged-out session with an empty history
func New(id string, historyCapacity int) *Session {
	return &Session{
		ID:       id,
		history:  NewHistory(historyCapacity),
		lastSeen: time.Now(),
	}
}

// Lock acquires the session for one action
func (s *Session) Lock() {
	s.mu.Lock()
}

// Unlock releases the session
func (s *Session) Unlock() {
	s.mu.Unlock()
}

// Login rehydrates the session from a stored account
func (s *Session) Login(username string, usage int, subscribed bool) {
	s.LoggedIn = true
	s.CurrentUser = username
	s.UsageCount = usage
	s.SubscriptionStatus = subscribed
	s.ShowPaymentPage = false
}

// Reset returns the session to logged-out defaults and discards history
func (s *Session) Reset() {
	s.LoggedIn = false
	s.CurrentUser = ""
	s.UsageCount = 0
	s.SubscriptionStatus = false
	s.ShowPaymentPage = false
	s.Notice = ""
	s.history.Clear()
}

// History returns the session's result history
func (s *Session) History() *History {
	return s.history
}

// TakeNotice returns the pending notice and clears it
func (s *Session) TakeNotice() string {
	n := s.Notice
	s.Notice = ""
	return n
}

func (s *Session) touch(now time.Time) {
	s.lastSeen = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(s.lastSeen)
}
