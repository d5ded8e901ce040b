package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldline/deskbot/internal/chat"
	"github.com/fieldline/deskbot/internal/corpus"
	"github.com/fieldline/deskbot/internal/llm"
	"github.com/fieldline/deskbot/internal/search"
	"github.com/fieldline/deskbot/internal/session"
	"github.com/fieldline/deskbot/internal/storage"
)

const testAdminToken = "test-admin-token"

type stubCompleter struct {
	reply string
	err   error
}

func (s stubCompleter) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func setupHandler(t *testing.T, completer chat.Completer) http.Handler {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	corp := corpus.NewStore(store)
	retriever := search.NewRetriever(corp, search.Limits{})
	sessions := session.NewManager(0, 0)
	svc := chat.NewService(retriever, sessions, completer, store, time.Second)

	return NewAppHandler(AppDeps{
		Chat:         svc,
		Corpus:       corp,
		Sessions:     sessions,
		Interactions: store,
		AdminToken:   testAdminToken,
		StartedAt:    time.Now(),
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "the answer"})

	w := doJSON(t, h, "POST", "/api/chat", `{"message":"how do I export contacts"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Response     string `json:"response"`
		SessionID    string `json:"sessionId"`
		MessageIndex int    `json:"messageIndex"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "the answer" {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.SessionID == "" {
		t.Error("no session id returned")
	}
}

// The message limit counts characters, not bytes: a 2000-rune multi-byte
// message is within the limit even though it exceeds 2000 bytes.
func TestChatMessageLimitCountsRunes(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "ok"})

	msg := strings.Repeat("é", maxMessageLen)
	w := doJSON(t, h, "POST", "/api/chat", `{"message":"`+msg+`"}`, "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for a %d-rune message", w.Code, maxMessageLen)
	}

	over := strings.Repeat("é", maxMessageLen+1)
	w = doJSON(t, h, "POST", "/api/chat", `{"message":"`+over+`"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a %d-rune message", w.Code, maxMessageLen+1)
	}
}

func TestChatValidation(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "ok"})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"blank message", `{"message":"   "}`},
		{"oversized message", `{"message":"` + strings.Repeat("x", 2001) + `"}`},
		{"invalid json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, "POST", "/api/chat", tt.body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestChatUpstreamFailureIsGeneric(t *testing.T) {
	h := setupHandler(t, stubCompleter{err: io.ErrUnexpectedEOF})

	w := doJSON(t, h, "POST", "/api/chat", `{"message":"some question here"}`, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "unexpected EOF") {
		t.Errorf("upstream detail leaked: %s", w.Body.String())
	}
}

func TestChatAuthFailureMapsToCredentialsMessage(t *testing.T) {
	h := setupHandler(t, stubCompleter{err: llm.ErrAuth})

	w := doJSON(t, h, "POST", "/api/chat", `{"message":"some question here"}`, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid API credentials") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCorrectionEndpoint(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "ok"})

	w := doJSON(t, h, "POST", "/api/correction",
		`{"question":"how do I export contacts","aiResponse":"use reports","correction":"use Actions > Export CSV"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "saved" || resp["id"] == "" {
		t.Errorf("resp = %+v", resp)
	}

	// Follow-up chats see the correction via the admin listing.
	lw := doJSON(t, h, "GET", "/api/corrections", "", testAdminToken)
	if lw.Code != http.StatusOK {
		t.Fatalf("list status = %d", lw.Code)
	}
	var list struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(lw.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("total = %d, want 1", list.Total)
	}
}

func TestCorrectionValidation(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "ok"})

	tests := []struct {
		name string
		body string
	}{
		{"missing question", `{"correction":"right"}`},
		{"missing correction", `{"question":"q"}`},
		{"oversized correction", `{"question":"q","correction":"` + strings.Repeat("x", 2001) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, "POST", "/api/correction", tt.body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "ok"})

	w := doJSON(t, h, "GET", "/api/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Status         string                        `json:"status"`
		ActiveSessions int                           `json:"activeSessions"`
		Sources        map[string]corpus.SourceState `json:"sources"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status field = %q", resp.Status)
	}
	if _, ok := resp.Sources["kb"]; !ok {
		t.Error("sources missing kb entry")
	}
	if !resp.Sources["corrections"].Loaded {
		t.Error("corrections source not reported loaded")
	}
}

func TestKBStatusEndpoint(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "ok"})

	w := doJSON(t, h, "GET", "/api/kb/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"kb", "tickets", "pages", "corrections", "categories"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "ok"})

	for _, path := range []string{"/api/corrections", "/api/interactions"} {
		if w := doJSON(t, h, "GET", path, "", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, w.Code)
		}
		if w := doJSON(t, h, "GET", path, "", "wrong-token"); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token: status = %d, want 401", path, w.Code)
		}
		if w := doJSON(t, h, "GET", path, "", testAdminToken); w.Code != http.StatusOK {
			t.Errorf("GET %s with token: status = %d, want 200", path, w.Code)
		}
	}
}

func TestInteractionsListedAfterChat(t *testing.T) {
	h := setupHandler(t, stubCompleter{reply: "logged answer"})

	if w := doJSON(t, h, "POST", "/api/chat", `{"message":"how do I export contacts"}`, ""); w.Code != http.StatusOK {
		t.Fatalf("chat failed: %d", w.Code)
	}

	w := doJSON(t, h, "GET", "/api/interactions", "", testAdminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Total        int                   `json:"total"`
		Interactions []storage.Interaction `json:"interactions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Interactions) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Interactions[0].Response != "logged answer" {
		t.Errorf("interaction = %+v", resp.Interactions[0])
	}
}
