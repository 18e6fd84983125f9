package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/svaidyan/arthamitra/internal/config"
)

type mockClient struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (m *mockClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.got = req
	return m.resp, m.err
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func TestGenerateNormalizesOutput(t *testing.T) {
	client := &mockClient{resp: textResponse("  \"Bonds are debt instruments.\"  ")}
	g := NewGenerator(client, config.LLMConfig{Model: "m", TimeoutSeconds: 5})

	out, err := g.Generate(context.Background(), Request{System: "sys", Prompt: "What are bonds?"})
	require.NoError(t, err)
	require.Equal(t, "Bonds are debt instruments.", out.Text)
	require.False(t, out.RLUsed)

	require.Len(t, client.got.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, client.got.Messages[0].Role)
	require.Equal(t, "m", client.got.Model)
}

func TestGenerateProviderError(t *testing.T) {
	client := &mockClient{err: errors.New("connection refused")}
	g := NewGenerator(client, config.LLMConfig{Model: "m", TimeoutSeconds: 5})

	_, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrProvider)
}

func TestGenerateEmptyCompletionIsError(t *testing.T) {
	client := &mockClient{resp: textResponse("   ")}
	g := NewGenerator(client, config.LLMConfig{Model: "m", TimeoutSeconds: 5})

	_, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrProvider)
}

func TestGenerateNoChoicesIsError(t *testing.T) {
	client := &mockClient{resp: openai.ChatCompletionResponse{}}
	g := NewGenerator(client, config.LLMConfig{Model: "m", TimeoutSeconds: 5})

	_, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrProvider)
}
