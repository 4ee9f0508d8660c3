// Package genai provides the reasoning-capability client for VisaFlow,
// built on the official OpenAI API client.
//
// All LLM access in the core goes through ClientInterface so control flow can
// be tested with a deterministic fake. Call sites that expect structured
// output parse the returned text as JSON via ExtractJSON and treat any parse
// failure as a capability failure with a documented fallback.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration constants
const (
	// DefaultModel is the chat model used for all completions.
	DefaultModel = openai.ChatModelGPT4o
	// DefaultTimeout bounds every completion call; expiry is treated as a
	// capability failure by the caller's fallback path.
	DefaultTimeout = 30 * time.Second
	// DefaultTemperature is used when the caller does not set one.
	DefaultTemperature = 0.7
	// DefaultMaxTokens caps completion length when the caller does not set one.
	DefaultMaxTokens = 500
)

// CompletionOpts carries per-call completion parameters.
type CompletionOpts struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
}

// ClientInterface defines the reasoning capability consumed by the flow module.
type ClientInterface interface {
	// Complete sends the messages (with an optional system prompt prepended)
	// and returns the assistant's text.
	Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts CompletionOpts) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	Model   openai.ChatModel
	Timeout time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-call completion timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	slog.Debug("genai.NewClient: creating client", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete sends a chat completion request and returns the assistant text.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts CompletionOpts) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: c.model,
	}
	if opts.SystemPrompt != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(opts.SystemPrompt))
	}
	params.Messages = append(params.Messages, messages...)

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	params.Temperature = openai.Float(temperature)

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params.MaxTokens = openai.Int(maxTokens)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.Error("genai.Complete: completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.Complete: no choices returned", "model", c.model)
		return "", fmt.Errorf("no choices returned")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("genai.Complete: completion succeeded", "model", c.model, "responseLength", len(content))
	return content, nil
}

// ExtractJSON strips surrounding markdown code-fence markers from a model
// response so the payload can be unmarshaled. The input is returned trimmed
// when no fence is present; callers must still treat unmarshal errors as a
// capability failure.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	return s
}
