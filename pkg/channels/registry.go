package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownChannel is returned when a message names no registered channel
	ErrUnknownChannel = errors.New("channel is not registered")

	// ErrChannelStopped is returned when a message reaches a channel that is not running
	ErrChannelStopped = errors.New("channel is not started")
)

type registration struct {
	channel Channel
	started bool
}

// Registry routes inbound questions to named channels. The web and
// websocket transports each own a channel over the same session store.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
}

// NewRegistry constructs an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register adds ch under its trimmed name
func (r *Registry) Register(ch Channel) error {
	if ch == nil {
		return fmt.Errorf("channel is required")
	}
	name := strings.TrimSpace(ch.Name())
	if name == "" {
		return fmt.Errorf("channel name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("channel %q already registered", name)
	}
	r.entries[name] = &registration{channel: ch}
	return nil
}

// Get returns a registered channel by name
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return reg.channel, true
}

// Names returns registered channel names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch answers msg through its channel's BuildReply
func (r *Registry) Dispatch(ctx context.Context, msg InboundMessage) (string, error) {
	name := strings.TrimSpace(msg.Channel)
	if name == "" {
		return "", fmt.Errorf("channel is required")
	}

	r.mu.RLock()
	reg, ok := r.entries[name]
	started := ok && reg.started
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	if !started {
		return "", fmt.Errorf("%w: %q", ErrChannelStopped, name)
	}

	return reg.channel.BuildReply(ctx, msg.Query, msg.SessionID)
}

// StartAll starts every channel in name order, stopping at the first failure
func (r *Registry) StartAll(ctx context.Context) error {
	for _, name := range r.Names() {
		if err := r.Start(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every channel in reverse name order and reports all failures
func (r *Registry) StopAll(ctx context.Context) error {
	names := r.Names()

	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		if err := r.Stop(ctx, names[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start starts one channel. Starting a running channel is a no-op.
func (r *Registry) Start(ctx context.Context, name string) error {
	return r.transition(ctx, name, true)
}

// Stop stops one channel. Stopping a stopped channel is a no-op.
func (r *Registry) Stop(ctx context.Context, name string) error {
	return r.transition(ctx, name, false)
}

func (r *Registry) transition(ctx context.Context, name string, start bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("channel name is required")
	}

	r.mu.RLock()
	reg, ok := r.entries[name]
	done := ok && reg.started == start
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	if done {
		return nil
	}

	action, call := "stop", reg.channel.Stop
	if start {
		action, call = "start", reg.channel.Start
	}
	if err := call(ctx); err != nil {
		return fmt.Errorf("failed to %s channel %q: %w", action, name, err)
	}

	r.mu.Lock()
	reg.started = start
	r.mu.Unlock()

	return nil
}
