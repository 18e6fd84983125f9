// Package orchestrator sequences the Ask pipeline. Each request runs through
// a finite state machine; only a completion-provider failure is fatal, every
// other component failure degrades the answer instead of failing the request.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/svaidyan/arthamitra/internal/assemble"
	"github.com/svaidyan/arthamitra/internal/classify"
	"github.com/svaidyan/arthamitra/internal/llm"
	"github.com/svaidyan/arthamitra/internal/logger"
	"github.com/svaidyan/arthamitra/internal/market"
	"github.com/svaidyan/arthamitra/internal/prompt"
	"github.com/svaidyan/arthamitra/internal/store"
	"github.com/svaidyan/arthamitra/internal/summarize"
)

// Pipeline states.
type askState stateless.State

var (
	stateReceived       askState = "Received"
	stateClassified     askState = "Classified"
	stateAugmenting     askState = "Augmenting"
	stateAssembling     askState = "Assembling"
	stateGenerating     askState = "Generating"
	stateSummarizing    askState = "Summarizing"
	statePersisted      askState = "Persisted"
	stateResponded      askState = "Responded" // terminal: success
	stateProviderFailed askState = "ProviderFailed" // terminal: fatal
)

// Pipeline triggers.
type askTrigger stateless.Trigger

var (
	triggerClassify       askTrigger = "Classify"
	triggerAugment        askTrigger = "Augment"
	triggerAssemble       askTrigger = "Assemble"
	triggerGenerate       askTrigger = "Generate"
	triggerSummarize      askTrigger = "Summarize"
	triggerPersist        askTrigger = "Persist"
	triggerRespond        askTrigger = "Respond"
	triggerProviderFailed askTrigger = "ProviderFailed"
)

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	classifier *classify.Classifier
	fetcher    *market.Fetcher
	gen        *llm.Generator
	summarizer *summarize.Summarizer
	store      *store.Store
}

// New builds an Orchestrator.
func New(classifier *classify.Classifier, fetcher *market.Fetcher, gen *llm.Generator, summarizer *summarize.Summarizer, st *store.Store) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		fetcher:    fetcher,
		gen:        gen,
		summarizer: summarizer,
		store:      st,
	}
}

// AskRequest is one incoming question. History is optional: stateless callers
// supply their own, otherwise prior turns of the session are used.
type AskRequest struct {
	Question  string
	History   string
	SessionID string
}

// AskResponse is the final payload for one question.
type AskResponse struct {
	Answer            string
	SummarizedHistory string
	RLUsed            bool
	SessionID         string
	StockSymbols      []string
	Session           *store.Summary // set when the session was just created
	Persisted         bool
}

// askContext accumulates pipeline data across states for one request.
type askContext struct {
	req            AskRequest
	history        string
	classification classify.Result
	marketResults  map[string]market.Result
	prompt         assemble.Prompt
	completion     llm.Completion
	summary        string
	sessionID      string
	newSession     bool
	sessionInfo    *store.Summary
	persisted      bool
	providerErr    error
}

// Ask runs one question through the pipeline and returns the final payload.
// It fails only when the completion provider does; augmentation, summarization
// and persistence failures all degrade.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	ac := &askContext{req: req, history: req.History}

	fsm := stateless.NewStateMachine(stateReceived)

	fsm.Configure(stateReceived).
		Permit(triggerClassify, stateClassified)

	fsm.Configure(stateClassified).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if ac.history == "" && ac.req.SessionID != "" {
				ac.history = o.priorHistory(ctx, ac.req.SessionID)
			}
			ac.classification = o.classifier.Classify(ctx, ac.req.Question)
			logger.L.Debug("question classified",
				"is_stock_query", ac.classification.IsStockQuery,
				"symbols", ac.classification.Symbols)
			if ac.classification.IsStockQuery {
				return fsm.FireCtx(ctx, triggerAugment)
			}
			return fsm.FireCtx(ctx, triggerAssemble)
		}).
		Permit(triggerAugment, stateAugmenting).
		Permit(triggerAssemble, stateAssembling)

	fsm.Configure(stateAugmenting).
		OnEntry(func(ctx context.Context, _ ...any) error {
			ac.marketResults = o.fetcher.Fetch(ctx, ac.classification.Symbols)
			return fsm.FireCtx(ctx, triggerAssemble)
		}).
		Permit(triggerAssemble, stateAssembling)

	fsm.Configure(stateAssembling).
		OnEntry(func(ctx context.Context, _ ...any) error {
			ac.prompt = assemble.Build(ac.req.Question, ac.history, ac.classification.Symbols, ac.marketResults)
			logger.L.Debug("prompt assembled", "mode", ac.prompt.Mode, "resolved", ac.prompt.Resolved)
			return fsm.FireCtx(ctx, triggerGenerate)
		}).
		Permit(triggerGenerate, stateGenerating)

	fsm.Configure(stateGenerating).
		OnEntry(func(ctx context.Context, _ ...any) error {
			completion, err := o.gen.Generate(ctx, llm.Request{
				System: ac.prompt.System,
				Prompt: ac.prompt.User,
			})
			if err != nil {
				ac.providerErr = err
				return fsm.FireCtx(ctx, triggerProviderFailed)
			}
			ac.completion = completion
			return fsm.FireCtx(ctx, triggerSummarize)
		}).
		Permit(triggerSummarize, stateSummarizing).
		Permit(triggerProviderFailed, stateProviderFailed)

	fsm.Configure(stateSummarizing).
		OnEntry(func(ctx context.Context, _ ...any) error {
			summary, err := o.summarizer.Summarize(ctx, ac.history, ac.req.Question, ac.completion.Text)
			if err != nil {
				logger.L.Warn("summarization degraded", "error", err)
			}
			ac.summary = summary
			return fsm.FireCtx(ctx, triggerPersist)
		}).
		Permit(triggerPersist, statePersisted)

	fsm.Configure(statePersisted).
		OnEntry(func(ctx context.Context, _ ...any) error {
			o.persist(ctx, ac)
			return fsm.FireCtx(ctx, triggerRespond)
		}).
		Permit(triggerRespond, stateResponded)

	if err := fsm.FireCtx(ctx, triggerClassify); err != nil {
		return nil, fmt.Errorf("pipeline error: %w", err)
	}

	finalState, err := fsm.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline state: %w", err)
	}

	switch finalState {
	case stateResponded:
		resp := &AskResponse{
			Answer:            ac.completion.Text,
			SummarizedHistory: ac.summary,
			RLUsed:            ac.completion.RLUsed,
			SessionID:         ac.sessionID,
			Session:           ac.sessionInfo,
			Persisted:         ac.persisted,
		}
		if ac.classification.IsStockQuery {
			resp.StockSymbols = ac.classification.Symbols
		}
		return resp, nil
	case stateProviderFailed:
		return nil, ac.providerErr
	default:
		return nil, fmt.Errorf("pipeline ended in unexpected state: %v", finalState)
	}
}

// persist writes the exchange to the session store. Failures are logged and
// flagged; the answer is still returned to the caller.
func (o *Orchestrator) persist(ctx context.Context, ac *askContext) {
	ac.sessionID = ac.req.SessionID
	if ac.sessionID == "" {
		ac.sessionID = uuid.NewString()
		ac.newSession = true
	} else if _, err := o.store.Get(ctx, ac.sessionID); err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			logger.L.Error("session lookup failed, answer returned without persistence", "error", err)
			return
		}
		ac.newSession = true
	}

	if ac.newSession {
		title := o.sessionTitle(ctx, ac.req.Question)
		if err := o.store.Create(ctx, ac.sessionID, title); err != nil {
			logger.L.Error("session creation failed, answer returned without persistence",
				"session_id", ac.sessionID, "error", err)
			return
		}
	}

	augmented := ac.prompt.Mode == assemble.ModeFinancialWithData
	err := o.store.Append(ctx, ac.sessionID,
		store.Turn{Role: "user", Content: ac.req.Question},
		store.Turn{
			Role:      "assistant",
			Content:   ac.completion.Text,
			Question:  ac.req.Question,
			RLUsed:    ac.completion.RLUsed,
			Augmented: augmented,
		},
	)
	if err != nil {
		logger.L.Error("session append failed, answer returned without persistence",
			"session_id", ac.sessionID, "error", err)
		return
	}
	ac.persisted = true

	if ac.newSession {
		if sess, err := o.store.Get(ctx, ac.sessionID); err == nil {
			ac.sessionInfo = &store.Summary{
				ID:           sess.ID,
				Title:        sess.Title,
				CreatedAt:    sess.CreatedAt,
				LastActivity: sess.LastActivity,
				TurnCount:    len(sess.Turns),
			}
		}
	}
}

// priorHistory reconstructs a compact transcript from the session's stored
// turns for callers that do not carry their own history string.
func (o *Orchestrator) priorHistory(ctx context.Context, sessionID string) string {
	session, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return ""
	}

	turns := session.Turns
	const maxTurns = 10
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	var b strings.Builder
	for _, turn := range turns {
		speaker := "Human"
		if turn.Role == "assistant" {
			speaker = "AI"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Content)
	}
	return strings.TrimSpace(b.String())
}

// sessionTitle asks the provider for a short title for a new session; on
// failure the first words of the question serve instead.
func (o *Orchestrator) sessionTitle(ctx context.Context, question string) string {
	out, err := o.gen.Generate(ctx, llm.Request{
		Prompt:      prompt.Title(question),
		Temperature: 0.5,
		MaxTokens:   30,
	})
	if err != nil {
		logger.L.Warn("title generation failed, using question prefix", "error", err)
		return fallbackTitle(question)
	}

	title := strings.Trim(out.Text, `"'`)
	if len(title) > 50 {
		title = title[:50]
	}
	if title == "" {
		return fallbackTitle(question)
	}
	return title
}

func fallbackTitle(question string) string {
	words := strings.Fields(question)
	if len(words) > 5 {
		words = words[:5]
	}
	title := strings.Join(words, " ")
	if len(title) > 50 {
		title = title[:50]
	}
	if title == "" {
		return "New Chat"
	}
	return title
}
