package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	"github.com/ChlorophyllA/skin2/pkg/reply"
	"github.com/ChlorophyllA/skin2/pkg/session"
	"github.com/rs/zerolog"
)

// ErrReplyFailed is returned by BuildReply whenever the reply engine fails.
// The session history is left exactly as it was before the call.
var ErrReplyFailed = errors.New("reply generation failed")

// WebChannelConfig configures a WebChannel
type WebChannelConfig struct {
	Name string

	// HistoryLimit caps the turns kept per session (default 20). It must be
	// even so the history always holds whole exchanges.
	HistoryLimit int

	// ReplyTimeout bounds each engine call; zero means no timeout
	ReplyTimeout time.Duration

	// StrictOrdering serializes whole exchanges per session so every call
	// sees all earlier exchanges. Off by default: concurrent calls for one
	// session then read the same snapshot and their pairs land in either order.
	StrictOrdering bool
}

// WebChannel turns (query, session) pairs into replies while keeping
// per-session history bounded.
type WebChannel struct {
	name           string
	store          *session.Store
	engine         reply.Engine
	historyLimit   int
	replyTimeout   time.Duration
	strictOrdering bool
	logger         zerolog.Logger

	mu      sync.RWMutex
	running bool
}

// NewWebChannel creates a channel over store that asks engine for replies
func NewWebChannel(cfg WebChannelConfig, store *session.Store, engine reply.Engine, logger zerolog.Logger) (*WebChannel, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("reply engine is required")
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "web"
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = session.DefaultHistoryLimit
	}
	if limit%2 != 0 {
		return nil, fmt.Errorf("history limit must be even, got %d", limit)
	}

	return &WebChannel{
		name:           name,
		store:          store,
		engine:         engine,
		historyLimit:   limit,
		replyTimeout:   cfg.ReplyTimeout,
		strictOrdering: cfg.StrictOrdering,
		logger:         logger.With().Str("component", "channel").Str("channel", name).Logger(),
	}, nil
}

// Name returns channel name.
func (c *WebChannel) Name() string {
	return c.name
}

// Start marks the channel as running. Requests are driven by the HTTP layer.
func (c *WebChannel) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.logger.Info().Msg("Channel started")
	return nil
}

// Stop marks the channel as stopped.
func (c *WebChannel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.logger.Info().Msg("Channel stopped")
	return nil
}

// Running reports whether Start has been called without a later Stop
func (c *WebChannel) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// BuildReply generates a reply for query and records the exchange in the
// session's history. The engine sees only the exchanges recorded before
// this call. On engine failure nothing is recorded and ErrReplyFailed is returned.
func (c *WebChannel) BuildReply(ctx context.Context, query, sessionID string) (string, error) {
	start := time.Now()

	sess := c.store.GetOrCreate(sessionID)
	if c.strictOrdering {
		release := sess.Serialize()
		defer release()
	}

	rc := sess.Context()

	callCtx := ctx
	if c.replyTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.replyTimeout)
		defer cancel()
	}

	text, err := c.generate(callCtx, query, rc)
	if err != nil {
		observability.RecordReply(c.name, time.Since(start), false)
		c.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Int("history", len(rc.History)).
			Msg("Reply generation failed")
		return "", fmt.Errorf("%w: %v", ErrReplyFailed, err)
	}

	size := sess.AppendExchange(query, text, c.historyLimit, c.store.Now())
	observability.RecordReply(c.name, time.Since(start), true)

	c.logger.Debug().
		Str("session_id", sessionID).
		Int("history", size).
		Dur("duration", time.Since(start)).
		Msg("Reply built")

	return text, nil
}

// generate calls the engine, turning a panic into an error
func (c *WebChannel) generate(ctx context.Context, query string, rc session.Context) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reply engine panic: %v", r)
		}
	}()
	return c.engine.Generate(ctx, query, rc)
}

// History returns a copy of the session's history, if the session exists
func (c *WebChannel) History(sessionID string) ([]session.Turn, bool) {
	sess, ok := c.store.Get(sessionID)
	if !ok {
		return nil, false
	}
	return sess.History(), true
}

// Reset drops the session so the next request starts a fresh conversation
func (c *WebChannel) Reset(sessionID string) bool {
	return c.store.Delete(sessionID)
}
