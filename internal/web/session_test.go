package web

import (
	"testing"
	"time"

	"github.com/erazemk/evidenca/internal/client"
)

func newTestSession() *Session {
	c := client.New("http://api.invalid", nil, nil)
	c.Tokens.SetTokens("access", "refresh")
	return &Session{Client: c, Cache: client.NewCache(), sets: map[string]recordSet{}}
}

func TestExpiredSessionsSweptOnAdd(t *testing.T) {
	sessions := NewSessions(time.Millisecond)
	var old []*Session
	for range 100 {
		sess := newTestSession()
		sessions.Add(sess)
		old = append(old, sess)
	}
	time.Sleep(5 * time.Millisecond)

	sessions.Add(newTestSession())
	if n := sessions.Len(); n != 1 {
		t.Fatalf("expected only the new session, got %d", n)
	}
	for _, sess := range old {
		if sess.Client.Authenticated() {
			t.Fatal("expected swept session credentials to be cleared")
		}
	}
}

func TestLiveSessionsSurviveAdd(t *testing.T) {
	sessions := NewSessions(time.Hour)
	first := newTestSession()
	sessions.Add(first)
	sessions.Add(newTestSession())

	if sessions.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessions.Len())
	}
	if sessions.Get(first.ID) != first {
		t.Fatal("expected first session to stay live")
	}
}
