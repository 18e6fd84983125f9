// Package market resolves ticker symbols to point-in-time snapshots and a
// short-term trend. Data is always fetched fresh per request; stale financial
// data must never be served from a prior request.
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time set of market metrics for one symbol.
type Snapshot struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Currency      string  `json:"currency"`
	Exchange      string  `json:"exchange"`
	Price         float64 `json:"price"`
	Volume        int64   `json:"volume"`
	MarketCap     int64   `json:"market_cap"`
	PERatio       float64 `json:"pe_ratio"`
	EPS           float64 `json:"eps"`
	DividendYield float64 `json:"dividend_yield"`
	Week52Low     float64 `json:"week_52_low"`
	Week52High    float64 `json:"week_52_high"`
}

// Bar is one day of closing-price history.
type Bar struct {
	Date  time.Time
	Close decimal.Decimal
}

// StockContext is the resolved market context for one symbol. Trend is the
// fractional change over the lookback window: (latest - start) / start.
type StockContext struct {
	Snapshot Snapshot
	Trend    decimal.Decimal
}

// Result carries either a StockContext or a per-symbol failure. One bad
// symbol never fails the whole batch.
type Result struct {
	Symbol  string
	Context *StockContext
	Err     error
}

// QuoteProvider is the narrow surface of the external market-data source.
// Implementations may fail per symbol; they are mocked in tests.
type QuoteProvider interface {
	Quote(symbol string) (*Snapshot, error)
	History(symbol string, start, end time.Time) ([]Bar, error)
}
