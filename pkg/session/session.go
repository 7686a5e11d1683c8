package session

import (
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultHistoryLimit is the number of turns kept per session (10 exchanges).
	DefaultHistoryLimit = 20
)

// Turn is one message in a conversation
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the bundle handed to the reply engine alongside a query
type Context struct {
	FromUserID string `json:"from_user_id"`
	Stream     bool   `json:"stream"`
	History    []Turn `json:"history"`
}

// Session holds the conversation state for one session ID.
// All fields are private; readers get copies.
type Session struct {
	id         string
	fromUserID string
	stream     bool
	createdAt  time.Time

	mu         sync.Mutex
	history    []Turn
	lastActive time.Time

	// exchangeMu is only taken when exchanges are serialized per session
	exchangeMu sync.Mutex
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:         id,
		fromUserID: id,
		stream:     false,
		createdAt:  now,
		history:    []Turn{},
		lastActive: now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastActive returns the time of the last lookup or recorded exchange
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Len returns the current number of turns
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// History returns a copy of the conversation history
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTurns(s.history)
}

// Context returns the reply context with a snapshot of the history as it is now.
// Later exchanges never show up in a context that was already taken.
func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Context{
		FromUserID: s.fromUserID,
		Stream:     s.stream,
		History:    cloneTurns(s.history),
	}
}

// AppendExchange records a user turn followed by the assistant reply and trims
// the history to the most recent limit turns. An odd limit is rounded down so
// only whole exchanges are dropped. It returns the resulting length.
func (s *Session) AppendExchange(query, reply string, limit int, now time.Time) int {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit -= limit % 2
	if limit == 0 {
		limit = 2
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history,
		Turn{Role: RoleUser, Content: query},
		Turn{Role: RoleAssistant, Content: reply},
	)
	if len(s.history) > limit {
		// Copy into a fresh slice so the dropped turns can be collected.
		s.history = cloneTurns(s.history[len(s.history)-limit:])
	}
	s.lastActive = now

	return len(s.history)
}

// Serialize blocks until no other serialized exchange is running on this
// session and returns the function that releases it.
func (s *Session) Serialize() (release func()) {
	s.exchangeMu.Lock()
	return s.exchangeMu.Unlock
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
