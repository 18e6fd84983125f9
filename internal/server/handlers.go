// Package server exposes the Ask pipeline and session store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/svaidyan/arthamitra/internal/llm"
	"github.com/svaidyan/arthamitra/internal/logger"
	"github.com/svaidyan/arthamitra/internal/market"
	"github.com/svaidyan/arthamitra/internal/orchestrator"
	"github.com/svaidyan/arthamitra/internal/store"
)

// Asker runs one question through the pipeline. Satisfied by the orchestrator;
// mocked in handler tests.
type Asker interface {
	Ask(ctx context.Context, req orchestrator.AskRequest) (*orchestrator.AskResponse, error)
}

// Handler holds the HTTP endpoints.
type Handler struct {
	asker   Asker
	store   *store.Store
	fetcher *market.Fetcher
}

// NewHandler builds the endpoint set.
func NewHandler(asker Asker, st *store.Store, fetcher *market.Fetcher) *Handler {
	return &Handler{asker: asker, store: st, fetcher: fetcher}
}

type askPayload struct {
	Question  string `json:"question"`
	History   string `json:"history"`
	SessionID string `json:"session_id"`
}

type askResponse struct {
	Answer            string         `json:"answer"`
	SummarizedHistory string         `json:"summarized_history"`
	RLUsed            bool           `json:"rl_used"`
	SessionID         string         `json:"session_id"`
	StockSymbols      []string       `json:"stock_symbols,omitempty"`
	Session           *store.Summary `json:"session,omitempty"`
	Persisted         bool           `json:"persisted"`
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload askPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Question) == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := h.asker.Ask(r.Context(), orchestrator.AskRequest{
		Question:  payload.Question,
		History:   payload.History,
		SessionID: payload.SessionID,
	})
	if err != nil {
		if errors.Is(err, llm.ErrProvider) {
			respondError(w, http.StatusBadGateway, "completion provider unavailable")
			return
		}
		logger.L.Error("ask failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, askResponse{
		Answer:            resp.Answer,
		SummarizedHistory: resp.SummarizedHistory,
		RLUsed:            resp.RLUsed,
		SessionID:         resp.SessionID,
		StockSymbols:      resp.StockSymbols,
		Session:           resp.Session,
		Persisted:         resp.Persisted,
	})
}

type feedbackPayload struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Rating    *int   `json:"rating"`
	SessionID string `json:"session_id"`
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var payload feedbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Question == "" || payload.Answer == "" {
		respondError(w, http.StatusBadRequest, "question and answer are required")
		return
	}
	if payload.Rating == nil {
		respondError(w, http.StatusBadRequest, "rating is required")
		return
	}

	id, err := h.store.RecordFeedback(r.Context(), payload.Question, payload.Answer, *payload.Rating, payload.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRating) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.L.Error("record feedback failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "feedback_id": id})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListAll(r.Context())
	if err != nil {
		logger.L.Error("list sessions failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		logger.L.Error("get session failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		logger.L.Error("delete session failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"stock_fetcher_ready": h.fetcher.Ready(),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
