package web

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/erazemk/evidenca/internal/api"
	"github.com/erazemk/evidenca/internal/client"
)

// Toast kinds.
const (
	ToastSuccess = "success"
	ToastError   = "error"
)

// Toast is a one-time notification shown on the next rendered page.
type Toast struct {
	Kind    string
	Message string
}

// Session is the state of one signed-in browser: its API client, query
// cache and pending toasts. It lives from sign-in until sign-out, expiry or
// the first request the API rejects as unauthenticated.
type Session struct {
	ID       string
	User     *api.Me
	Client   *client.Client
	Cache    *client.Cache
	Entities *client.Entities

	sets    map[string]recordSet
	expires time.Time

	mu      sync.Mutex
	toasts  []Toast
	unmount func()
}

// Flash queues a toast for the next page.
func (s *Session) Flash(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, Toast{Kind: kind, Message: message})
}

// TakeToasts returns and clears the queued toasts.
func (s *Session) TakeToasts() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.toasts
	s.toasts = nil
	return t
}

// watch replaces the mounted list query.
func (s *Session) watch(unmount func()) {
	s.mu.Lock()
	prev := s.unmount
	s.unmount = unmount
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (s *Session) close() {
	s.watch(nil)
	s.Client.Tokens.Clear()
}

// Sessions holds the live sessions by ID.
type Sessions struct {
	TTL time.Duration

	mu   sync.Mutex
	byID map[string]*Session
}

// NewSessions returns an empty store whose sessions expire after ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{TTL: ttl, byID: map[string]*Session{}}
}

// Add assigns sess an ID and stores it. Expired sessions are torn down on
// the way.
func (st *Sessions) Add(sess *Session) {
	now := time.Now()
	st.mu.Lock()
	var stale []*Session
	for id, old := range st.byID {
		if now.After(old.expires) {
			delete(st.byID, id)
			stale = append(stale, old)
		}
	}
	sess.ID = rand.Text()
	sess.expires = now.Add(st.TTL)
	st.byID[sess.ID] = sess
	st.mu.Unlock()

	for _, old := range stale {
		old.close()
	}
}

// Get returns a live session, or nil.
func (st *Sessions) Get(id string) *Session {
	st.mu.Lock()
	sess, ok := st.byID[id]
	if ok && time.Now().After(sess.expires) {
		delete(st.byID, id)
		st.mu.Unlock()
		sess.close()
		return nil
	}
	st.mu.Unlock()
	return sess
}

// Delete tears down a session.
func (st *Sessions) Delete(id string) {
	st.mu.Lock()
	sess, ok := st.byID[id]
	delete(st.byID, id)
	st.mu.Unlock()
	if ok {
		sess.close()
	}
}

// Len returns the number of live sessions.
func (st *Sessions) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.byID)
}
