// Package summarize keeps conversation context bounded. After every
// completed exchange the full context is condensed into a fresh summary that
// replaces, rather than extends, the previous one.
package summarize

import (
	"context"
	"fmt"

	"github.com/svaidyan/arthamitra/internal/llm"
	"github.com/svaidyan/arthamitra/internal/prompt"
)

// Summarizer condenses conversation history via the completion provider.
type Summarizer struct {
	gen      *llm.Generator
	maxChars int
}

// New builds a Summarizer bounded to maxChars output.
func New(gen *llm.Generator, maxChars int) *Summarizer {
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &Summarizer{gen: gen, maxChars: maxChars}
}

// Summarize folds the just-completed exchange into the previous summary and
// condenses the result. On provider failure it falls back to truncating the
// raw context rather than losing it; the returned summary is always usable
// and the error, when non-nil, only reports that the fallback was taken.
func (s *Summarizer) Summarize(ctx context.Context, previous, question, answer string) (string, error) {
	updated := appendExchange(previous, question, answer)

	out, err := s.gen.Generate(ctx, llm.Request{
		System:    prompt.SummarizationSystem,
		Prompt:    updated,
		MaxTokens: 1000,
	})
	if err != nil {
		return tail(updated, s.maxChars), fmt.Errorf("summarization failed, truncated raw history: %w", err)
	}

	summary := out.Text
	if len(summary) > s.maxChars {
		summary = summary[:s.maxChars]
	}
	return summary, nil
}

func appendExchange(previous, question, answer string) string {
	exchange := fmt.Sprintf("Human: %s\nAI: %s", question, answer)
	if previous == "" {
		return exchange
	}
	return previous + "\n" + exchange
}

// tail keeps the most recent max characters; recent context matters most.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
