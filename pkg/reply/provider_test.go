package reply

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedRequest is what a stub completion API received
type capturedRequest struct {
	path   string
	header http.Header
	body   []byte
}

func stubAPI(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		captured.path = r.URL.Path
		captured.header = r.Header.Clone()
		captured.body = body

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(ts.Close)
	return ts, captured
}

func conversationRequest() Request {
	return Request{
		Model:        "test-model",
		SystemPrompt: "You are a dermatology assistant.",
		Messages: []Message{
			{Role: "user", Content: "What is eczema?"},
			{Role: "assistant", Content: "A chronic skin inflammation."},
			{Role: "system", Content: "ignored"},
			{Role: "user", Content: "How is it treated?"},
		},
		Temperature: 0.3,
		MaxTokens:   256,
	}
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// text flattens a content field sent either as a string or as text blocks
func (m wireMessage) text(t *testing.T) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(m.Content, &blocks))
	out := ""
	for _, b := range blocks {
		assert.Equal(t, "text", b.Type)
		out += b.Text
	}
	return out
}

const openAICompletion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "Moisturize and avoid triggers."}
	}],
	"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
}`

func TestOpenAIProvider_Call(t *testing.T) {
	ts, captured := stubAPI(t, http.StatusOK, openAICompletion)
	p := NewOpenAIProvider("sk-test", ts.URL+"/")
	assert.Equal(t, "openai", p.Name())

	resp, err := p.Call(context.Background(), conversationRequest())
	require.NoError(t, err)
	assert.Equal(t, "Moisturize and avoid triggers.", resp.Content)
	assert.Equal(t, &TokenUsage{InputTokens: 42, OutputTokens: 7}, resp.Usage)

	assert.Equal(t, "/chat/completions", captured.path)
	assert.Equal(t, "Bearer sk-test", captured.header.Get("Authorization"))

	var sent struct {
		Model       string        `json:"model"`
		Messages    []wireMessage `json:"messages"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &sent))
	assert.Equal(t, "test-model", sent.Model)
	assert.Equal(t, 256, sent.MaxTokens)
	assert.InDelta(t, 0.3, sent.Temperature, 1e-9)

	require.Len(t, sent.Messages, 4, "system prompt first, unknown roles dropped")
	roles := []string{}
	texts := []string{}
	for _, m := range sent.Messages {
		roles = append(roles, m.Role)
		texts = append(texts, m.text(t))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, []string{
		"You are a dermatology assistant.",
		"What is eczema?",
		"A chronic skin inflammation.",
		"How is it treated?",
	}, texts)
}

func TestOpenAIProvider_OmitsUnsetOptions(t *testing.T) {
	ts, captured := stubAPI(t, http.StatusOK, openAICompletion)
	p := NewOpenAIProvider("sk-test", ts.URL+"/")

	_, err := p.Call(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	var sent map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(captured.body, &sent))
	assert.NotContains(t, sent, "max_tokens")
	assert.NotContains(t, sent, "temperature")

	var messages []wireMessage
	require.NoError(t, json.Unmarshal(sent["messages"], &messages))
	require.Len(t, messages, 1, "no system message without a prompt")
	assert.Equal(t, "user", messages[0].Role)
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	ts, _ := stubAPI(t, http.StatusOK, `{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1700000000,
		"model": "test-model", "choices": [],
		"usage": {"prompt_tokens": 1, "completion_tokens": 0, "total_tokens": 1}
	}`)
	p := NewOpenAIProvider("sk-test", ts.URL+"/")

	_, err := p.Call(context.Background(), conversationRequest())
	assert.ErrorContains(t, err, "no response choices")
}

func TestOpenAIProvider_APIError(t *testing.T) {
	ts, _ := stubAPI(t, http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	p := NewOpenAIProvider("sk-test", ts.URL+"/")

	_, err := p.Call(context.Background(), conversationRequest())
	assert.Error(t, err)
}

const anthropicMessage = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"model": "test-model",
	"content": [
		{"type": "text", "text": "Use emollients. "},
		{"type": "text", "text": "See a dermatologist if it spreads."}
	],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 30, "output_tokens": 11}
}`

func TestAnthropicProvider_Call(t *testing.T) {
	ts, captured := stubAPI(t, http.StatusOK, anthropicMessage)
	p := NewAnthropicProvider("sk-ant-test", ts.URL+"/")
	assert.Equal(t, "anthropic", p.Name())

	resp, err := p.Call(context.Background(), conversationRequest())
	require.NoError(t, err)
	assert.Equal(t, "Use emollients. See a dermatologist if it spreads.", resp.Content)
	assert.Equal(t, &TokenUsage{InputTokens: 30, OutputTokens: 11}, resp.Usage)

	assert.Equal(t, "/v1/messages", captured.path)
	assert.Equal(t, "sk-ant-test", captured.header.Get("X-Api-Key"))

	var sent struct {
		Model       string          `json:"model"`
		MaxTokens   int             `json:"max_tokens"`
		Temperature float64         `json:"temperature"`
		System      json.RawMessage `json:"system"`
		Messages    []wireMessage   `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &sent))
	assert.Equal(t, "test-model", sent.Model)
	assert.Equal(t, 256, sent.MaxTokens)
	assert.InDelta(t, 0.3, sent.Temperature, 1e-9)
	assert.Equal(t, "You are a dermatology assistant.", wireMessage{Content: sent.System}.text(t))

	require.Len(t, sent.Messages, 3, "system prompt is not a message, unknown roles dropped")
	assert.Equal(t, "user", sent.Messages[0].Role)
	assert.Equal(t, "What is eczema?", sent.Messages[0].text(t))
	assert.Equal(t, "assistant", sent.Messages[1].Role)
	assert.Equal(t, "A chronic skin inflammation.", sent.Messages[1].text(t))
	assert.Equal(t, "user", sent.Messages[2].Role)
	assert.Equal(t, "How is it treated?", sent.Messages[2].text(t))
}

func TestAnthropicProvider_OmitsUnsetOptions(t *testing.T) {
	ts, captured := stubAPI(t, http.StatusOK, anthropicMessage)
	p := NewAnthropicProvider("sk-ant-test", ts.URL+"/")

	_, err := p.Call(context.Background(), Request{
		Model:     "test-model",
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 64,
	})
	require.NoError(t, err)

	var sent map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(captured.body, &sent))
	assert.NotContains(t, sent, "system")
	assert.NotContains(t, sent, "temperature")
	assert.JSONEq(t, "64", string(sent["max_tokens"]))
}

func TestAnthropicProvider_APIError(t *testing.T) {
	ts, _ := stubAPI(t, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	p := NewAnthropicProvider("sk-ant-test", ts.URL+"/")

	_, err := p.Call(context.Background(), conversationRequest())
	assert.Error(t, err)
}
