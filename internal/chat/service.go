// Package chat orchestrates one support-chat turn: retrieval, context
// assembly, the hosted model call, and session bookkeeping.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/deskbot/internal/composer"
	"github.com/fieldline/deskbot/internal/corpus"
	"github.com/fieldline/deskbot/internal/llm"
	"github.com/fieldline/deskbot/internal/search"
	"github.com/fieldline/deskbot/internal/session"
	"github.com/fieldline/deskbot/internal/storage"
)

// historyWindow bounds how many recent session messages accompany the prompt.
const historyWindow = 10

// Completer abstracts the hosted LLM call.
type Completer interface {
	Complete(ctx context.Context, system string, messages []llm.Message) (string, error)
}

// InteractionSink records completed chat turns. Implemented by storage.Store;
// nil disables recording.
type InteractionSink interface {
	SaveInteraction(i storage.Interaction) error
}

// CorrectionRef summarizes a correction that backed an answer.
type CorrectionRef struct {
	Question    string    `json:"question"`
	Correction  string    `json:"correction"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ArticleRef summarizes a KB article that backed an answer.
type ArticleRef struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

// TicketRef summarizes a support ticket that backed an answer.
type TicketRef struct {
	Subject string `json:"subject"`
	Status  string `json:"status"`
}

// PageRef summarizes a scraped page that backed an answer.
type PageRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Sources lists, per corpus, what the answer was grounded on.
type Sources struct {
	Corrections []CorrectionRef `json:"corrections"`
	KB          []ArticleRef    `json:"kb"`
	Tickets     []TicketRef     `json:"tickets"`
	Pages       []PageRef       `json:"pages"`
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Response     string  `json:"response"`
	SessionID    string  `json:"sessionId"`
	MessageIndex int     `json:"messageIndex"`
	Sources      Sources `json:"sourcesUsed"`
}

// Service handles chat turns. Retrieval and assembly are pure in-memory
// work; only the model call blocks, under a bounded timeout.
type Service struct {
	retriever  *search.Retriever
	sessions   *session.Manager
	completer  Completer
	sink       InteractionSink
	llmTimeout time.Duration
}

// NewService wires a Service. A non-positive llmTimeout defaults to 60s.
func NewService(retriever *search.Retriever, sessions *session.Manager, completer Completer, sink InteractionSink, llmTimeout time.Duration) *Service {
	if llmTimeout <= 0 {
		llmTimeout = 60 * time.Second
	}
	return &Service{
		retriever:  retriever,
		sessions:   sessions,
		completer:  completer,
		sink:       sink,
		llmTimeout: llmTimeout,
	}
}

// Answer runs one turn for message in the given session (empty sessionID
// starts a new session). The model call is bounded by the service timeout
// and by ctx: a disconnected client abandons the call rather than retrying.
// On model failure the user message stays in the session history, the turn
// is recorded as failed, and the error propagates for generic mapping.
func (s *Service) Answer(ctx context.Context, sessionID, message string) (Reply, error) {
	sess := s.sessions.Touch(sessionID)

	res := s.retriever.Retrieve(message)
	if res.PricingOnly {
		slog.Info("pricing question detected, restricting context to pricing page",
			"pages", len(res.Pages))
	}

	contextBlock := composer.Assemble(res)
	system := composer.BuildSystemPrompt(contextBlock, len(res.Corrections) > 0, res.PricingOnly)

	s.sessions.Append(sess.ID, session.Message{Role: "user", Content: message})
	window := s.sessions.Recent(sess.ID, historyWindow)
	messages := make([]llm.Message, len(window))
	for i, m := range window {
		messages[i] = llm.Message{Role: m.Role, Content: m.Content}
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	answer, err := s.completer.Complete(llmCtx, system, messages)
	if err != nil {
		s.record(sess.ID, message, "", res, "failed")
		return Reply{}, fmt.Errorf("completing chat: %w", err)
	}

	s.sessions.Append(sess.ID, session.Message{Role: "assistant", Content: answer})

	reply := Reply{
		Response:     answer,
		SessionID:    sess.ID,
		MessageIndex: s.sessions.MessageCount(sess.ID) - 1,
		Sources:      summarize(res),
	}

	// Recorded after the reply is fully computed; failures are
	// operator-visible only.
	s.record(sess.ID, message, answer, res, "completed")

	return reply, nil
}

func (s *Service) record(sessionID, query, response string, res search.Result, status string) {
	if s.sink == nil {
		return
	}
	err := s.sink.SaveInteraction(storage.Interaction{
		ID:              uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		SessionID:       sessionID,
		UserQuery:       query,
		Response:        response,
		Status:          status,
		CorrectionsUsed: len(res.Corrections),
		KBUsed:          len(res.KB),
		TicketsUsed:     len(res.Tickets),
		PagesUsed:       len(res.Pages),
		PricingOnly:     res.PricingOnly,
	})
	if err != nil {
		slog.Warn("failed to record interaction", "session_id", sessionID, "error", err)
	}
}

func summarize(res search.Result) Sources {
	src := Sources{
		Corrections: []CorrectionRef{},
		KB:          []ArticleRef{},
		Tickets:     []TicketRef{},
		Pages:       []PageRef{},
	}
	for _, c := range res.Corrections {
		src.Corrections = append(src.Corrections, CorrectionRef{
			Question:    c.Item.Question,
			Correction:  clip(c.Item.Correction, 200),
			SubmittedAt: c.Item.SubmittedAt,
		})
	}
	for _, a := range res.KB {
		src.KB = append(src.KB, ArticleRef{Title: a.Item.Title, URL: a.Item.URL, Category: a.Item.Category})
	}
	for _, t := range res.Tickets {
		src.Tickets = append(src.Tickets, TicketRef{Subject: t.Item.Subject, Status: t.Item.Status})
	}
	for _, p := range res.Pages {
		src.Pages = append(src.Pages, PageRef{Title: p.Item.Title, URL: p.Item.URL})
	}
	return src
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// NewCorrection builds a Correction record from a submission.
func NewCorrection(question, aiResponse, correction, sessionID string) corpus.Correction {
	return corpus.Correction{
		ID:          uuid.New().String(),
		Question:    question,
		AIResponse:  aiResponse,
		Correction:  correction,
		SessionID:   sessionID,
		SubmittedAt: time.Now().UTC(),
	}
}
