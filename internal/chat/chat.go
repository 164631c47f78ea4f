// Package chat generates the assistant's conversational replies. Each reply
// style is a prompt template wrapped around the user input; the diary memory
// side of a turn is handled separately by the pipeline.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/echodiary/echodiary/internal/llm"
)

// DefaultPersonality is used when a request names no style or an unknown one.
const DefaultPersonality = "友好风格"

const chatSystemPrompt = "You are a helpful assistant"

var templates = map[string]string{
	"友好风格": `你是一位亲切友好且乐于助人的助手。请以亲切自然、礼貌的对话方式回应以下用户的输入：

用户：{user_input}

助手：`,
	"正式风格": `你是一位正式且专业的助手。请以恭敬、严谨、准确的态度回应以下用户的输入：

用户：{user_input}

助手：`,
	"幽默风格": `你是一位幽默风趣、机智俏皮的助手。请带着轻松愉快的幽默感回应以下用户的输入：

用户：{user_input}

助手：`,
	"共情风格": `你是一位善解人意、富有同理心的助手。请带着理解和支持回应以下用户的输入：

用户：{user_input}

助手：`,
}

// Personalities lists the available reply styles.
func Personalities() []string {
	out := make([]string, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Service produces chat replies.
type Service struct {
	client  llm.Client
	timeout time.Duration
}

// New creates a chat service. timeout caps each model call; zero means 60s.
func New(client llm.Client, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{client: client, timeout: timeout}
}

// Respond generates a reply in the given personality. Unlike the memory
// pipeline there is no fallback here: with no model there is no conversation,
// so the error goes back to the handler.
func (s *Service) Respond(ctx context.Context, input, personality string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.client.Complete(ctx, buildMessages(input, personality), llm.Options{})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return reply, nil
}

// RespondStream generates a reply, delivering deltas to fn as they arrive,
// and returns the complete text.
func (s *Service) RespondStream(ctx context.Context, input, personality string, fn func(delta string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.client.Stream(ctx, buildMessages(input, personality), llm.Options{}, fn)
	if err != nil {
		return "", fmt.Errorf("stream reply: %w", err)
	}
	return reply, nil
}

func buildMessages(input, personality string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: chatSystemPrompt},
		{Role: llm.RoleUser, Content: renderTemplate(personality, input)},
	}
}

func renderTemplate(personality, input string) string {
	template, ok := templates[personality]
	if !ok {
		template = templates[DefaultPersonality]
	}
	// Single placeholder; no template engine needed.
	return strings.ReplaceAll(template, "{user_input}", input)
}
