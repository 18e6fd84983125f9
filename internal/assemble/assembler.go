// Package assemble merges the question, summarized history and optional
// market context into a single completion request. Template selection is a
// small state machine over what context is actually available.
package assemble

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/svaidyan/arthamitra/internal/market"
	"github.com/svaidyan/arthamitra/internal/prompt"
)

// Mode names the template the assembler selected.
type Mode string

const (
	// ModeGeneral: no history and no market data.
	ModeGeneral Mode = "general"
	// ModeFinancialWithData: at least one symbol resolved.
	ModeFinancialWithData Mode = "financial-with-data"
	// ModeFinancialWithoutData: history available, no usable market data.
	ModeFinancialWithoutData Mode = "financial-without-data"
)

// Prompt is the assembled completion request payload.
type Prompt struct {
	System string
	User   string
	Mode   Mode
	// Resolved lists the symbols whose data made it into the prompt.
	Resolved []string
}

// Build selects the template and renders the prompt. Symbols that failed to
// resolve are silently omitted; if every symbol failed the assembler falls
// back as if no market data had been requested, never surfacing the fetch
// failure to the user.
func Build(question, history string, symbols []string, results map[string]market.Result) Prompt {
	block, resolved := marketBlock(symbols, results)

	switch {
	case block != "":
		return Prompt{
			System:   prompt.System,
			User:     prompt.FinancialWithData(historyOrNone(history), block, question),
			Mode:     ModeFinancialWithData,
			Resolved: resolved,
		}
	case history != "":
		return Prompt{
			System: prompt.System,
			User:   prompt.Financial(history, question),
			Mode:   ModeFinancialWithoutData,
		}
	default:
		return Prompt{
			System: prompt.System,
			User:   prompt.General(question),
			Mode:   ModeGeneral,
		}
	}
}

func historyOrNone(history string) string {
	if history == "" {
		return "(none)"
	}
	return history
}

// marketBlock renders the successful results in requested-symbol order.
func marketBlock(symbols []string, results map[string]market.Result) (string, []string) {
	var parts []string
	var resolved []string
	for _, symbol := range symbols {
		r, ok := results[symbol]
		if !ok || r.Err != nil || r.Context == nil {
			continue
		}
		parts = append(parts, formatContext(r.Context))
		resolved = append(resolved, symbol)
	}
	return strings.Join(parts, "\n\n"), resolved
}

func formatContext(c *market.StockContext) string {
	s := c.Snapshot
	var b strings.Builder

	name := s.Symbol
	if s.Name != "" {
		name = fmt.Sprintf("%s (%s)", s.Symbol, s.Name)
	}
	fmt.Fprintf(&b, "=== %s ===\n", name)
	fmt.Fprintf(&b, "Price: %.2f %s\n", s.Price, s.Currency)
	if s.Exchange != "" {
		fmt.Fprintf(&b, "Exchange: %s\n", s.Exchange)
	}
	fmt.Fprintf(&b, "Volume: %d\n", s.Volume)
	if s.MarketCap > 0 {
		fmt.Fprintf(&b, "Market Cap: %d\n", s.MarketCap)
	}
	if s.PERatio > 0 {
		fmt.Fprintf(&b, "P/E (TTM): %.2f\n", s.PERatio)
	}
	if s.EPS != 0 {
		fmt.Fprintf(&b, "EPS (TTM): %.2f\n", s.EPS)
	}
	if s.DividendYield > 0 {
		fmt.Fprintf(&b, "Dividend Yield: %.2f%%\n", s.DividendYield)
	}
	if s.Week52High > 0 {
		fmt.Fprintf(&b, "52-Week Range: %.2f - %.2f\n", s.Week52Low, s.Week52High)
	}
	fmt.Fprintf(&b, "1-Month Trend: %s%%", formatTrend(c.Trend))

	return b.String()
}

func formatTrend(trend decimal.Decimal) string {
	pct := trend.Mul(decimal.NewFromInt(100))
	if pct.IsPositive() {
		return "+" + pct.StringFixed(2)
	}
	return pct.StringFixed(2)
}
