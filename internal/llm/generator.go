package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/svaidyan/arthamitra/internal/config"
)

// ErrProvider marks a completion-provider failure: unreachable backend,
// timeout, or a malformed/empty response. It is the only fatal error in the
// Ask pipeline.
var ErrProvider = errors.New("completion provider failure")

// Request describes one completion call. Temperature 0 and MaxTokens 0 fall
// back to the generator defaults.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Completion is a normalized provider response. RLUsed is informational; no
// re-ranking path exists in this service, so it is always false.
type Completion struct {
	Text   string
	RLUsed bool
}

// Generator turns assembled prompts into normalized text via the configured
// completion provider. The concrete provider is chosen once at startup.
type Generator struct {
	client      Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGenerator wraps a provider client with the configured model and timeout.
func NewGenerator(client Client, cfg config.LLMConfig) *Generator {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}
}

// Generate performs one completion call and normalizes the output. Every call
// is bounded by the generator timeout so a stalled provider surfaces as an
// error instead of hanging the request.
func (g *Generator) Generate(ctx context.Context, req Request) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.temperature
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Completion{}, fmt.Errorf("%w: timed out after %s", ErrProvider, g.timeout)
		}
		return Completion{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: response contained no choices", ErrProvider)
	}

	text := normalize(resp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, fmt.Errorf("%w: empty completion", ErrProvider)
	}

	return Completion{Text: text}, nil
}

// normalize trims whitespace and a single pair of wrapping quotes, which some
// models add around short answers.
func normalize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}
