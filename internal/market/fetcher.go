package market

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/svaidyan/arthamitra/internal/config"
	"github.com/svaidyan/arthamitra/internal/logger"
)

// ErrTimeout marks symbols still pending when the global augmentation timeout
// fired. They are not retried within the request.
var ErrTimeout = errors.New("market data fetch timed out")

// Fetcher resolves batches of symbols against a QuoteProvider. Per-symbol
// fetches run concurrently under a shared deadline.
type Fetcher struct {
	provider    QuoteProvider
	timeout     time.Duration
	lookback    int
	probeSymbol string
	ready       atomic.Bool
}

// NewFetcher builds a Fetcher from configuration.
func NewFetcher(provider QuoteProvider, cfg config.MarketConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	return &Fetcher{
		provider:    provider,
		timeout:     timeout,
		lookback:    lookback,
		probeSymbol: cfg.ProbeSymbol,
	}
}

// Probe verifies provider reachability once at startup. The outcome is
// exposed read-only through Ready for the health endpoint.
func (f *Fetcher) Probe() bool {
	symbol := f.probeSymbol
	if symbol == "" {
		symbol = "^NSEI"
	}
	_, err := f.provider.Quote(symbol)
	if err != nil {
		logger.L.Warn("stock fetcher probe failed", "symbol", symbol, "error", err)
	}
	f.ready.Store(err == nil)
	return err == nil
}

// Ready reports whether the startup probe succeeded.
func (f *Fetcher) Ready() bool {
	return f.ready.Load()
}

// Fetch resolves every symbol, concurrently, under one deadline. The result
// map always holds an entry per requested symbol: a StockContext on success
// or a per-symbol error. It never fails the batch for one bad symbol.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string) map[string]Result {
	results := make(map[string]Result, len(symbols))
	if len(symbols) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	ch := make(chan Result, len(symbols))
	for _, symbol := range symbols {
		go func(symbol string) {
			ch <- f.fetchOne(symbol)
		}(symbol)
	}

	for range symbols {
		select {
		case r := <-ch:
			results[r.Symbol] = r
			if r.Err != nil {
				logger.L.Warn("symbol fetch failed", "symbol", r.Symbol, "error", r.Err)
			}
		case <-ctx.Done():
			// Symbols still pending are marked failed; their goroutines
			// finish into the buffered channel and are discarded.
			for _, symbol := range symbols {
				if _, done := results[symbol]; !done {
					results[symbol] = Result{Symbol: symbol, Err: ErrTimeout}
				}
			}
			logger.L.Warn("market data fetch hit global timeout", "timeout", f.timeout)
			return results
		}
	}

	return results
}

func (f *Fetcher) fetchOne(symbol string) Result {
	snap, err := f.provider.Quote(symbol)
	if err != nil {
		return Result{Symbol: symbol, Err: err}
	}

	end := time.Now()
	start := end.AddDate(0, 0, -f.lookback)
	bars, err := f.provider.History(symbol, start, end)
	if err != nil {
		return Result{Symbol: symbol, Err: err}
	}
	if len(bars) == 0 {
		return Result{Symbol: symbol, Err: fmt.Errorf("no price history for %s", symbol)}
	}

	return Result{
		Symbol: symbol,
		Context: &StockContext{
			Snapshot: *snap,
			Trend:    trend(bars),
		},
	}
}

// trend computes (latest close - window start close) / window start close.
func trend(bars []Bar) decimal.Decimal {
	first := bars[0].Close
	latest := bars[len(bars)-1].Close
	if first.IsZero() {
		return decimal.Zero
	}
	return latest.Sub(first).Div(first)
}
