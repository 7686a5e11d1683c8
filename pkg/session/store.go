package session

import (
	"sync"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	"github.com/rs/zerolog/log"
)

// Store owns every Session in the process. The map is guarded by a single
// mutex; it is held only for lookup, insert and delete, never while a reply
// is being generated.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates an empty session store
func NewStore() *Store {
	observability.EnsureRegistered()

	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating it with an empty history
// and default context on first use. Concurrent calls for the same new id
// all receive the same Session.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	if sess, ok := st.sessions[id]; ok {
		sess.touch(now)
		return sess
	}

	sess := newSession(id, now)
	st.sessions[id] = sess
	observability.SetActiveSessions(len(st.sessions))

	log.Debug().Str("session_id", id).Msg("Session created")

	return sess
}

// Get returns the session for id without creating it
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Delete removes a session. It reports whether the session existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	observability.SetActiveSessions(len(st.sessions))

	log.Debug().Str("session_id", id).Msg("Session deleted")
	return true
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// IDs returns the identifiers of all live sessions in no particular order
func (st *Store) IDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}

// EvictIdle removes sessions whose last activity is older than maxIdle.
// A non-positive maxIdle evicts nothing. It returns the number removed.
//
// A request already holding an evicted Session finishes against the detached
// object; its exchange is not visible to the next GetOrCreate for that id.
func (st *Store) EvictIdle(maxIdle time.Duration, now time.Time) int {
	if maxIdle <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := now.Add(-maxIdle)
	evicted := 0
	for id, sess := range st.sessions {
		if sess.LastActive().Before(cutoff) {
			delete(st.sessions, id)
			evicted++
		}
	}

	if evicted > 0 {
		observability.SetActiveSessions(len(st.sessions))
	}
	return evicted
}

// Now returns the store clock
func (st *Store) Now() time.Time {
	return st.now()
}
