package channels

import (
	"context"
)

// InboundMessage is the normalized ingress payload from any channel.
type InboundMessage struct {
	Channel   string
	SessionID string
	Query     string
}

// Channel is a conversational channel runtime (web, websocket, ...).
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// BuildReply answers query within the conversation identified by sessionID
	BuildReply(ctx context.Context, query, sessionID string) (string, error)
}
