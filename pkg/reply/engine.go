package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChlorophyllA/skin2/internal/config"
	"github.com/ChlorophyllA/skin2/pkg/session"
)

// Engine produces a reply for a query given the conversation context.
// Implementations may block; callers bound them with ctx.
type Engine interface {
	Generate(ctx context.Context, query string, rc session.Context) (string, error)
}

// EngineFunc adapts a function to the Engine interface
type EngineFunc func(ctx context.Context, query string, rc session.Context) (string, error)

// Generate calls f
func (f EngineFunc) Generate(ctx context.Context, query string, rc session.Context) (string, error) {
	return f(ctx, query, rc)
}

// DefaultStaticReply is returned by StaticEngine when no text is configured
const DefaultStaticReply = "The assistant is running in offline mode. " +
	"For any skin concern, please consult a qualified dermatologist."

// StaticEngine answers every query with the same text. It is the default
// engine so the server can run without provider credentials.
type StaticEngine struct {
	Text string
}

// Generate returns the configured text
func (e StaticEngine) Generate(ctx context.Context, _ string, _ session.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.Text == "" {
		return DefaultStaticReply, nil
	}
	return e.Text, nil
}

// NewEngine builds the engine selected by cfg.Type
func NewEngine(cfg config.ModelConfig) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "static":
		return StaticEngine{Text: cfg.StaticReply}, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai model requires api_key")
		}
		return NewChatEngine(NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), cfg), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic model requires api_key")
		}
		return NewChatEngine(NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), cfg), nil
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Type)
	}
}
