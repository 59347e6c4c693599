// Package llm abstracts the chat-completion backend. The core pipeline only
// depends on the Client interface; provider-specific request and response
// translation lives in the concrete implementations.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    Role
	Content string
}

// Request is a provider-agnostic chat completion request.
type Request struct {
	// System is an optional system prompt prepended to Messages.
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token counters as returned by the backend.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response carries the generated text plus usage counters.
type Response struct {
	Text  string
	Usage Usage
}

// Client is the chat-completion capability consumed by the pipeline.
type Client interface {
	Chat(ctx context.Context, req Request) (Response, error)
}
