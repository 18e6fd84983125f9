// Package classify decides whether a question needs market data and which
// ticker symbols it refers to. Explicit ticker tokens are matched locally;
// company names are resolved through a model sub-call. Ambiguity degrades to
// "not a stock query" so a bad guess never triggers a useless data fetch.
package classify

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/svaidyan/arthamitra/internal/llm"
	"github.com/svaidyan/arthamitra/internal/logger"
	"github.com/svaidyan/arthamitra/internal/prompt"
)

// Result is the classifier verdict for one question.
type Result struct {
	IsStockQuery bool
	Symbols      []string
}

// Classifier extracts ticker symbols from free-text questions.
type Classifier struct {
	gen        *llm.Generator
	maxSymbols int
}

// New builds a Classifier. maxSymbols caps downstream fan-out.
func New(gen *llm.Generator, maxSymbols int) *Classifier {
	if maxSymbols <= 0 {
		maxSymbols = 5
	}
	return &Classifier{gen: gen, maxSymbols: maxSymbols}
}

// Uppercase tokens that look like tickers but are almost always English words
// in a financial question.
var stopwords = map[string]struct{}{
	"A": {}, "I": {}, "AM": {}, "AN": {}, "AND": {}, "ARE": {}, "AT": {},
	"BE": {}, "BUY": {}, "CAN": {}, "DO": {}, "DOES": {}, "ETF": {}, "FAQ": {},
	"FOR": {}, "HOLD": {}, "HOW": {}, "IF": {}, "IN": {}, "IPO": {}, "IS": {},
	"IT": {}, "ME": {}, "MY": {}, "NOT": {}, "NOW": {}, "OF": {}, "OK": {},
	"ON": {}, "OR": {}, "PE": {}, "SELL": {}, "SIP": {}, "SO": {}, "THE": {},
	"TO": {}, "VS": {}, "WHAT": {}, "WHEN": {}, "WHO": {}, "WHY": {},
}

// Classify returns the verdict for question. A failed or ambiguous extraction
// sub-call is absorbed: the question is treated as general.
func (c *Classifier) Classify(ctx context.Context, question string) Result {
	if !shouty(question) {
		if symbols := c.explicitTickers(question); len(symbols) > 0 {
			logger.L.Debug("explicit tickers found", "symbols", symbols)
			return Result{IsStockQuery: true, Symbols: symbols}
		}
	}
	return c.extractWithModel(ctx, question)
}

// shouty reports whether a multi-word question contains no lowercase at all.
// Case carries no signal there, so the token heuristic would flag ordinary
// words; defer to the model instead.
func shouty(question string) bool {
	if strings.IndexFunc(question, unicode.IsLower) != -1 {
		return false
	}
	return len(strings.Fields(question)) > 1
}

// explicitTickers scans for uppercase ticker-like tokens (1-5 alphanumeric
// characters, optional exchange suffix such as .NS), deduplicated in
// first-seen order.
func (c *Classifier) explicitTickers(question string) []string {
	tokens := strings.FieldsFunc(question, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '^'
	})

	var symbols []string
	seen := make(map[string]struct{})
	for _, token := range tokens {
		token = strings.Trim(token, ".")
		if !looksLikeTicker(token) {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		symbols = append(symbols, token)
		if len(symbols) == c.maxSymbols {
			break
		}
	}
	return symbols
}

func looksLikeTicker(token string) bool {
	base, suffix, hasSuffix := strings.Cut(token, ".")
	if hasSuffix {
		if len(suffix) < 1 || len(suffix) > 4 || !isUpperAlnum(suffix) {
			return false
		}
	}
	if len(base) < 1 || len(base) > 5 {
		return false
	}
	if base[0] < 'A' || base[0] > 'Z' {
		return false
	}
	return isUpperAlnum(base)
}

func isUpperAlnum(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

type extraction struct {
	IsStockQuery bool     `json:"is_stock_query"`
	Symbols      []string `json:"symbols"`
}

// extractWithModel asks the completion provider to map company names to
// tickers, expecting a small JSON object back.
func (c *Classifier) extractWithModel(ctx context.Context, question string) Result {
	out, err := c.gen.Generate(ctx, llm.Request{
		Prompt:      prompt.Extraction(question),
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		logger.L.Warn("symbol extraction failed, treating as general question", "error", err)
		return Result{}
	}

	parsed, ok := parseExtraction(out.Text)
	if !ok {
		logger.L.Warn("symbol extraction returned no parsable JSON", "response", out.Text)
		return Result{}
	}

	var symbols []string
	seen := make(map[string]struct{})
	for _, s := range parsed.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
		if len(symbols) == c.maxSymbols {
			break
		}
	}

	if !parsed.IsStockQuery || len(symbols) == 0 {
		return Result{}
	}
	return Result{IsStockQuery: true, Symbols: symbols}
}

// parseExtraction finds the first JSON object in text and unmarshals it.
// Models occasionally wrap the object in prose.
func parseExtraction(text string) (extraction, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return extraction{}, false
	}

	var parsed extraction
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return extraction{}, false
	}
	return parsed, true
}
