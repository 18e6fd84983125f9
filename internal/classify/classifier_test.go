package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/svaidyan/arthamitra/internal/config"
	"github.com/svaidyan/arthamitra/internal/llm"
)

type mockLLM struct {
	content string
	err     error
	calls   int
}

func (m *mockLLM) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.calls++
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: m.content}}},
	}, nil
}

func newClassifier(mock *mockLLM, maxSymbols int) *Classifier {
	gen := llm.NewGenerator(mock, config.LLMConfig{Model: "m", TimeoutSeconds: 5})
	return New(gen, maxSymbols)
}

func TestClassifyExplicitTicker(t *testing.T) {
	mock := &mockLLM{}
	c := newClassifier(mock, 5)

	res := c.Classify(context.Background(), "What's the outlook for AAPL this quarter?")
	require.True(t, res.IsStockQuery)
	require.Equal(t, []string{"AAPL"}, res.Symbols)
	require.Zero(t, mock.calls, "explicit tickers must not cost a model sub-call")
}

func TestClassifyExchangeSuffix(t *testing.T) {
	c := newClassifier(&mockLLM{}, 5)

	res := c.Classify(context.Background(), "Compare TCS.NS and INFY.NS please")
	require.True(t, res.IsStockQuery)
	require.Equal(t, []string{"TCS.NS", "INFY.NS"}, res.Symbols)
}

func TestClassifyDeduplicatesAndCaps(t *testing.T) {
	c := newClassifier(&mockLLM{}, 2)

	res := c.Classify(context.Background(), "Compare AAPL, MSFT, AAPL, GOOG and TSLA for me")
	require.True(t, res.IsStockQuery)
	require.Equal(t, []string{"AAPL", "MSFT"}, res.Symbols)
}

func TestClassifyStopwordsAreNotTickers(t *testing.T) {
	mock := &mockLLM{content: `{"is_stock_query": false, "symbols": []}`}
	c := newClassifier(mock, 5)

	res := c.Classify(context.Background(), "WHAT IS A GOOD SIP FOR ME")
	require.False(t, res.IsStockQuery)
	require.Empty(t, res.Symbols)
}

func TestClassifyCompanyNameViaModel(t *testing.T) {
	mock := &mockLLM{content: `Sure! {"is_stock_query": true, "symbols": ["RELIANCE.NS"]}`}
	c := newClassifier(mock, 5)

	res := c.Classify(context.Background(), "how is reliance doing lately?")
	require.True(t, res.IsStockQuery)
	require.Equal(t, []string{"RELIANCE.NS"}, res.Symbols)
	require.Equal(t, 1, mock.calls)
}

func TestClassifyModelFailureIsAbsorbed(t *testing.T) {
	mock := &mockLLM{err: errors.New("boom")}
	c := newClassifier(mock, 5)

	res := c.Classify(context.Background(), "what are bonds?")
	require.False(t, res.IsStockQuery)
}

func TestClassifyUnparsableModelOutputIsAbsorbed(t *testing.T) {
	mock := &mockLLM{content: "I could not decide."}
	c := newClassifier(mock, 5)

	res := c.Classify(context.Background(), "tell me about the market")
	require.False(t, res.IsStockQuery)
}

func TestClassifyStockFlagWithoutSymbolsIsNegative(t *testing.T) {
	mock := &mockLLM{content: `{"is_stock_query": true, "symbols": []}`}
	c := newClassifier(mock, 5)

	res := c.Classify(context.Background(), "is the market overheated?")
	require.False(t, res.IsStockQuery)
}
