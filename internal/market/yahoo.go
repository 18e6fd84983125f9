package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
)

// YahooProvider fetches quotes and daily history from Yahoo Finance. It
// supports exchange-suffixed symbols such as RELIANCE.NS out of the box.
type YahooProvider struct{}

// Quote returns the current snapshot for symbol.
func (YahooProvider) Quote(symbol string) (*Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	q, err := equity.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}

	return &Snapshot{
		Symbol:        symbol,
		Name:          q.ShortName,
		Currency:      q.CurrencyID,
		Exchange:      q.FullExchangeName,
		Price:         q.RegularMarketPrice,
		Volume:        int64(q.RegularMarketVolume),
		MarketCap:     q.MarketCap,
		PERatio:       q.TrailingPE,
		EPS:           q.EpsTrailingTwelveMonths,
		DividendYield: q.TrailingAnnualDividendYield,
		Week52Low:     q.FiftyTwoWeekLow,
		Week52High:    q.FiftyTwoWeekHigh,
	}, nil
}

// History returns daily closes for symbol between start and end.
func (YahooProvider) History(symbol string, start, end time.Time) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, Bar{
			Date:  time.Unix(int64(b.Timestamp), 0),
			Close: b.Close,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("history for %s: %w", symbol, err)
	}

	return bars, nil
}
