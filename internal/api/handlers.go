// Package api exposes the HTTP surface of the support bot: public chat and
// correction endpoints, corpus status, and an admin review surface behind
// bearer auth.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/deskbot/internal/chat"
	"github.com/fieldline/deskbot/internal/corpus"
	"github.com/fieldline/deskbot/internal/llm"
	"github.com/fieldline/deskbot/internal/session"
	"github.com/fieldline/deskbot/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	maxMessageLen    = 2000
	maxCorrectionLen = 2000
)

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type CorrectionRequest struct {
	Question   string `json:"question"`
	AIResponse string `json:"aiResponse"`
	Correction string `json:"correction"`
	SessionID  string `json:"sessionId"`
}

// InteractionLister abstracts the interaction log for the admin surface.
type InteractionLister interface {
	ListInteractions(limit, offset int) ([]storage.Interaction, error)
	CountInteractions() (int, error)
}

type AppDeps struct {
	Chat         *chat.Service
	Corpus       *corpus.Store
	Sessions     *session.Manager
	Interactions InteractionLister // optional; nil disables /api/interactions
	AdminToken   string            // empty disables the admin subrouter
	StartedAt    time.Time
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Post("/api/chat", handleChat(deps))
	r.Post("/api/correction", handleCorrection(deps))
	r.Get("/api/health", handleHealth(deps))
	r.Get("/api/kb/status", handleKBStatus(deps))

	if deps.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(deps.AdminToken))
			r.Get("/api/corrections", handleListCorrections(deps))
			r.Get("/api/interactions", handleListInteractions(deps))
		})
	}

	return r
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if utf8.RuneCountInString(req.Message) > maxMessageLen {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message must be %d characters or fewer", maxMessageLen)
			return
		}

		reply, err := deps.Chat.Answer(r.Context(), req.SessionID, req.Message)
		if err != nil {
			slog.Error("chat turn failed", "session_id", req.SessionID, "error", err)
			switch {
			case errors.Is(err, llm.ErrAuth):
				httpError(w, http.StatusInternalServerError, "api_error", "invalid API credentials")
			case errors.Is(err, context.DeadlineExceeded):
				httpError(w, http.StatusGatewayTimeout, "api_error", "the assistant took too long to respond, please try again")
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "an error occurred processing your message, please try again")
			}
			return
		}

		writeJSON(w, http.StatusOK, reply)
	}
}

func handleCorrection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req CorrectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		req.Question = strings.TrimSpace(req.Question)
		req.Correction = strings.TrimSpace(req.Correction)
		if req.Question == "" || req.Correction == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question and correction are required")
			return
		}
		if utf8.RuneCountInString(req.Correction) > maxCorrectionLen {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "correction must be %d characters or fewer", maxCorrectionLen)
			return
		}

		c := chat.NewCorrection(req.Question, req.AIResponse, req.Correction, req.SessionID)
		if err := deps.Corpus.AddCorrection(c); err != nil {
			slog.Error("failed to persist correction", "id", c.ID, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "correction may not have been saved, please try again")
			return
		}

		slog.Info("correction recorded", "id", c.ID, "question", c.Question)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "saved",
			"id":     c.ID,
		})
	}
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := deps.Corpus.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"uptimeSeconds":  int(time.Since(deps.StartedAt).Seconds()),
			"activeSessions": deps.Sessions.Len(),
			"sources": map[string]corpus.SourceState{
				"kb":          status.KB,
				"tickets":     status.Tickets,
				"pages":       status.Pages,
				"corrections": status.Corrections,
			},
		})
	}
}

func handleKBStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := deps.Corpus.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"kb":          status.KB,
			"tickets":     status.Tickets,
			"pages":       status.Pages,
			"corrections": status.Corrections,
			"categories":  deps.Corpus.Categories(),
		})
	}
}

func handleListCorrections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		corrections := deps.Corpus.Corrections()
		if corrections == nil {
			corrections = []corpus.Correction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":       len(corrections),
			"corrections": corrections,
		})
	}
}

func handleListInteractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Interactions == nil {
			httpError(w, http.StatusNotFound, "not_found", "interaction log is not enabled")
			return
		}

		limit := parseIntParam(r, "limit", 50, 500)
		offset := parseIntParam(r, "offset", 0, 0)

		items, err := deps.Interactions.ListInteractions(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		total, err := deps.Interactions.CountInteractions()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count interactions: %v", err)
			return
		}

		if items == nil {
			items = []storage.Interaction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":        total,
			"interactions": items,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
