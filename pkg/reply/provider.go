package reply

import "context"

// Provider is a chat completion backend
type Provider interface {
	// Call sends one completion request
	Call(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Message is one provider-level chat message
type Message struct {
	Role    string
	Content string
}

// Request contains the parameters for a completion call
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// Response is the provider output
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
