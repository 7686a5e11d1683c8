// Package session keeps per-session conversation state in memory.
//
// Invariants:
// - At most one Session exists per session ID; creation is serialized by the Store.
// - History is appended in user/assistant pairs and trimmed to the most recent turns.
// - Readers only ever receive copies of the history.
// - Nothing is persisted; sessions live until process exit or idle eviction.
//
// Usage:
//
//	store := session.NewStore()
//	sess := store.GetOrCreate("3f2a...")
//	rc := sess.Context()
//	sess.AppendExchange("hello", "hi there", session.DefaultHistoryLimit, time.Now())
//	_ = rc
package session
