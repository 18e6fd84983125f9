// Package prompt holds the prompt templates for every completion-provider
// call the pipeline makes: answering, symbol extraction, history
// summarization and session titles.
package prompt

import "fmt"

// System is the persona sent with every answer-generating completion.
const System = `You are Arthamitra, a knowledgeable financial advisor for retail investors in India.
Be clear, factual and concise. Prefer Indian market context (NSE/BSE listings, SEBI rules, INR amounts)
when it is relevant, but answer global questions accurately. Explain jargon when you use it.
Never promise returns; when giving an opinion on an investment, note that markets carry risk.`

// SummarizationSystem instructs the condensation sub-call. The summary must
// stand alone: it replaces, not extends, the previous one.
const SummarizationSystem = `You summarize financial advisory conversations.
Condense the conversation below into a short briefing that preserves every fact a follow-up
question could depend on: instruments discussed, figures quoted, advice given and the user's
stated goals or constraints. Write plain prose, no headings. Be brief.`

const generalTemplate = `Answer the question below for a retail investor in India.

Question: %s

Answer:`

const financialTemplate = `Conversation so far:
%s

Answer the new question below, staying consistent with the conversation so far.

Question: %s

Answer:`

const financialWithDataTemplate = `Conversation so far:
%s

Real-time market data:
%s

Answer the question below using the market data above where it is relevant.
Quote concrete figures from the data rather than from memory.

Question: %s

Answer:`

const extractionTemplate = `Decide whether the question below asks about specific publicly traded stocks.

Question: %s

Respond with JSON only, no other text:
{"is_stock_query": true or false, "symbols": ["TICKER1", "TICKER2"]}

Rules:
- Map company names to their stock ticker symbols. Use the .NS suffix for NSE-listed
  companies, e.g. "Reliance" -> "RELIANCE.NS", "Infosys" -> "INFY.NS".
- If the question is about markets in general rather than specific stocks, return
  {"is_stock_query": false, "symbols": []}.
- List at most five symbols.`

const titleTemplate = `Generate a very short, concise title (maximum 50 characters) for a chat session
based on this first question. Return ONLY the title, nothing else.

Question: %s

Title:`

// General renders the no-context answer prompt.
func General(question string) string {
	return fmt.Sprintf(generalTemplate, question)
}

// Financial renders the answer prompt carrying summarized history but no
// market data.
func Financial(history, question string) string {
	return fmt.Sprintf(financialTemplate, history, question)
}

// FinancialWithData renders the answer prompt with a market-data block.
func FinancialWithData(history, marketData, question string) string {
	return fmt.Sprintf(financialWithDataTemplate, history, marketData, question)
}

// Extraction renders the symbol-extraction classification prompt.
func Extraction(question string) string {
	return fmt.Sprintf(extractionTemplate, question)
}

// Title renders the session-title prompt.
func Title(question string) string {
	return fmt.Sprintf(titleTemplate, question)
}
