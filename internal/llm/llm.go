// Package llm wraps the chat-completion services the diary assistant talks
// to. Every call is fully parameterized; clients hold no per-call state and
// are safe for concurrent use.
package llm

import (
	"context"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string
	Content string
}

// Options are per-call generation parameters.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// Client is the chat-completion capability.
//
// Complete returns the full response text. Stream delivers text deltas to fn
// as they arrive and returns the accumulated text. Both may fail with
// network, timeout or malformed-response errors; callers decide how to
// degrade.
type Client interface {
	Complete(ctx context.Context, msgs []Message, opts Options) (string, error)
	Stream(ctx context.Context, msgs []Message, opts Options, fn func(delta string)) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "deepseek", "openai" or "anthropic"
	APIKey   string
	BaseURL  string // OpenAI-compatible endpoints only
	Model    string
}

// New builds a Client for the configured provider.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	switch cfg.Provider {
	case "deepseek", "openai":
		return newOpenAIClient(cfg), nil
	case "anthropic":
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
