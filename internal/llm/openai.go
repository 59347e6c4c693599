package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds a single chat call. LLM calls are slow; minutes, not
// seconds.
const DefaultTimeout = 3 * time.Minute

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewOpenAIClient creates a client for the given endpoint, key, and model.
// baseURL may point at any OpenAI-compatible service; an empty baseURL uses
// the default OpenAI endpoint.
func NewOpenAIClient(baseURL, apiKey, model string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("LLM model is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	c := &OpenAIClient{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chat sends the request as a non-streaming chat completion and returns the
// full generated text.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("chat completion returned no choices")
	}

	return Response{
		Text: completion.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}

// convertMessages translates our message format to the OpenAI union type.
func convertMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
