package docbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teilomillet/gollm"

	"github.com/teilomillet/docbot/config"
)

// Default system prompts of the query and chat modes.
const (
	DefaultQueryPrompt = config.DefaultQueryPrompt
	DefaultChatPrompt  = config.DefaultChatPrompt
)

// GollmGenerator answers conversations with a gollm model.
type GollmGenerator struct {
	llm     gollm.LLM
	timeout time.Duration
}

// NewGollmGenerator wraps an existing gollm model.
func NewGollmGenerator(llm gollm.LLM) *GollmGenerator {
	return &GollmGenerator{llm: llm}
}

// NewGollmGeneratorFromConfig creates the model described by cfg.
func NewGollmGeneratorFromConfig(cfg config.LLMConfig) (*GollmGenerator, error) {
	retryDelay := 2 * time.Second
	llm, err := gollm.NewLLM(
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
		gollm.SetMaxTokens(cfg.MaxTokens),
		gollm.SetMaxRetries(cfg.MaxRetries),
		gollm.SetRetryDelay(retryDelay),
		gollm.SetLogLevel(gollm.LogLevelInfo),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	g := NewGollmGenerator(llm)
	g.timeout = cfg.Timeout.Std()
	return g, nil
}

// Generate sends the conversation as one prompt: the system message becomes
// the system prompt, the retrieved passages the prompt context, and the
// remaining turns a transcript ending with the user's message.
func (g *GollmGenerator) Generate(ctx context.Context, messages []Message, passages string) (string, error) {
	var system string
	var transcript []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		transcript = append(transcript, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	if len(transcript) == 0 {
		return "", fmt.Errorf("conversation has no user message")
	}

	input := messages[len(messages)-1].Content
	if len(transcript) > 1 {
		input = "Conversation so far:\n" + strings.Join(transcript, "\n") + "\n\nReply to the last user message."
	}
	prompt := gollm.NewPrompt(input,
		gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral),
		gollm.WithContext(passages),
	)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	Debug("Generating response", "messages", len(messages), "context_chars", len(passages))
	resp, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return resp, nil
}
