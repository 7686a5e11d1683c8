package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ChlorophyllA/skin2/internal/config"
	"github.com/ChlorophyllA/skin2/pkg/session"
	"github.com/rs/zerolog/log"
)

// ErrStreamingUnsupported is returned when a context asks for a streamed reply
var ErrStreamingUnsupported = errors.New("streaming replies are not supported")

// DefaultSystemPrompt frames the assistant for dermatology questions
const DefaultSystemPrompt = "You are a careful medical information assistant focused on dermatology. " +
	"Give general educational information, never a diagnosis, and recommend seeing a doctor " +
	"for anything that changes, bleeds or worries the user."

// ChatEngine generates replies through a chat completion Provider
type ChatEngine struct {
	provider     Provider
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// NewChatEngine creates an engine around provider using the model settings in cfg
func NewChatEngine(provider Provider, cfg config.ModelConfig) *ChatEngine {
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &ChatEngine{
		provider:     provider,
		model:        cfg.Name,
		systemPrompt: systemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    maxTokens,
	}
}

// Provider returns the underlying provider name
func (e *ChatEngine) Provider() string {
	return e.provider.Name()
}

// Generate sends the prior history plus query to the provider
func (e *ChatEngine) Generate(ctx context.Context, query string, rc session.Context) (string, error) {
	if rc.Stream {
		return "", ErrStreamingUnsupported
	}

	request := Request{
		Model:        e.model,
		SystemPrompt: e.systemPrompt,
		Messages:     BuildMessages(rc.History, query),
		Temperature:  e.temperature,
		MaxTokens:    e.maxTokens,
	}

	response, err := e.provider.Call(ctx, request)
	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", e.provider.Name(), err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", fmt.Errorf("%s returned an empty reply", e.provider.Name())
	}

	if response.Usage != nil {
		log.Debug().
			Str("provider", e.provider.Name()).
			Str("user", rc.FromUserID).
			Int("input_tokens", response.Usage.InputTokens).
			Int("output_tokens", response.Usage.OutputTokens).
			Msg("Reply generated")
	}

	return content, nil
}

// BuildMessages converts history turns and the new query into provider messages.
// Turns with unknown roles are dropped.
func BuildMessages(history []session.Turn, query string) []Message {
	messages := make([]Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case session.RoleUser, session.RoleAssistant:
			messages = append(messages, Message{Role: turn.Role, Content: turn.Content})
		}
	}
	return append(messages, Message{Role: session.RoleUser, Content: query})
}
