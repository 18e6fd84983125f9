package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/svaidyan/arthamitra/internal/config"
)

type fakeProvider struct {
	quote   func(symbol string) (*Snapshot, error)
	history func(symbol string, start, end time.Time) ([]Bar, error)
}

func (f *fakeProvider) Quote(symbol string) (*Snapshot, error) {
	return f.quote(symbol)
}

func (f *fakeProvider) History(symbol string, start, end time.Time) ([]Bar, error) {
	if f.history != nil {
		return f.history(symbol, start, end)
	}
	return []Bar{
		{Date: start, Close: decimal.NewFromInt(100)},
		{Date: end, Close: decimal.NewFromInt(110)},
	}, nil
}

func goodQuote(symbol string) (*Snapshot, error) {
	return &Snapshot{Symbol: symbol, Price: 187.5, Currency: "USD"}, nil
}

func TestFetchPartialFailure(t *testing.T) {
	provider := &fakeProvider{
		quote: func(symbol string) (*Snapshot, error) {
			if symbol == "ZZZZZZ" {
				return nil, fmt.Errorf("no quote data for %s", symbol)
			}
			return goodQuote(symbol)
		},
	}
	f := NewFetcher(provider, config.MarketConfig{TimeoutSeconds: 5})

	results := f.Fetch(context.Background(), []string{"AAPL", "ZZZZZZ"})
	require.Len(t, results, 2)

	require.NoError(t, results["AAPL"].Err)
	require.NotNil(t, results["AAPL"].Context)
	require.Equal(t, 187.5, results["AAPL"].Context.Snapshot.Price)

	require.Error(t, results["ZZZZZZ"].Err)
	require.Nil(t, results["ZZZZZZ"].Context)
}

func TestFetchTrend(t *testing.T) {
	provider := &fakeProvider{quote: goodQuote}
	f := NewFetcher(provider, config.MarketConfig{TimeoutSeconds: 5})

	results := f.Fetch(context.Background(), []string{"AAPL"})
	require.NotNil(t, results["AAPL"].Context)
	// (110 - 100) / 100
	require.True(t, results["AAPL"].Context.Trend.Equal(decimal.NewFromFloat(0.1)),
		"trend = %s", results["AAPL"].Context.Trend)
}

func TestFetchEmptyHistoryIsFailure(t *testing.T) {
	provider := &fakeProvider{
		quote: goodQuote,
		history: func(string, time.Time, time.Time) ([]Bar, error) {
			return nil, nil
		},
	}
	f := NewFetcher(provider, config.MarketConfig{TimeoutSeconds: 5})

	results := f.Fetch(context.Background(), []string{"AAPL"})
	require.Error(t, results["AAPL"].Err)
}

func TestFetchGlobalTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	provider := &fakeProvider{
		quote: func(symbol string) (*Snapshot, error) {
			if symbol == "SLOW" {
				<-release
			}
			return goodQuote(symbol)
		},
	}
	f := NewFetcher(provider, config.MarketConfig{TimeoutSeconds: 5})
	f.timeout = 50 * time.Millisecond

	start := time.Now()
	results := f.Fetch(context.Background(), []string{"AAPL", "SLOW"})
	require.Less(t, time.Since(start), 2*time.Second, "timeout must bound total latency")

	require.NoError(t, results["AAPL"].Err)
	require.ErrorIs(t, results["SLOW"].Err, ErrTimeout)
}

func TestFetchNoSymbols(t *testing.T) {
	f := NewFetcher(&fakeProvider{quote: goodQuote}, config.MarketConfig{})
	require.Empty(t, f.Fetch(context.Background(), nil))
}

func TestProbeSetsReadiness(t *testing.T) {
	ok := &fakeProvider{quote: goodQuote}
	f := NewFetcher(ok, config.MarketConfig{ProbeSymbol: "^NSEI"})
	require.False(t, f.Ready())
	require.True(t, f.Probe())
	require.True(t, f.Ready())

	bad := &fakeProvider{quote: func(string) (*Snapshot, error) { return nil, fmt.Errorf("down") }}
	f = NewFetcher(bad, config.MarketConfig{})
	require.False(t, f.Probe())
	require.False(t, f.Ready())
}
