package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(srvURL string) *apiClient {
	return &apiClient{
		baseURL:    srvURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func chatStub(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding chat request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response":  reply,
			"sessionId": "session-1",
			"sourcesUsed": map[string]any{
				"corrections": []any{},
				"kb":          []any{map[string]string{"title": "Article"}},
				"tickets":     []any{map[string]string{"subject": "T"}, map[string]string{"subject": "U"}},
				"pages":       []any{},
			},
		})
	}))
}

func ticketsJSON(t *testing.T, tickets []replayTicket) *strings.Reader {
	t.Helper()
	data, err := json.Marshal(tickets)
	if err != nil {
		t.Fatal(err)
	}
	return strings.NewReader(string(data))
}

func TestRunBatchWritesReportCSV(t *testing.T) {
	srv := chatStub(t, "the answer")
	defer srv.Close()

	in := ticketsJSON(t, []replayTicket{
		{
			TicketNumber: "T-100",
			Subject:      "Cannot export contacts",
			Description:  "<p>Export button does nothing, please advise</p>",
			CreatedTime:  "2026-08-20T10:00:00Z",
			Status:       "Open",
		},
		{
			TicketNumber: "T-101",
			Subject:      "Pricing, please",
			Status:       "Open",
		},
	})
	var out bytes.Buffer

	noColor = true
	if err := runBatch(context.Background(), newTestClient(srv.URL), in, &out, 0, 0); err != nil {
		t.Fatalf("runBatch failed: %v", err)
	}

	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("parsing output CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header plus 2 tickets", len(records))
	}
	if records[0][0] != "ticketNumber" || records[0][5] != "botResponse" {
		t.Errorf("header = %v", records[0])
	}
	row := records[1]
	if row[0] != "T-100" || row[5] != "the answer" {
		t.Errorf("row = %v", row)
	}
	// Description markup is stripped in the report.
	if strings.Contains(row[2], "<p>") {
		t.Errorf("description kept markup: %q", row[2])
	}
	if row[6] != "1" || row[7] != "2" {
		t.Errorf("source counts = %q/%q, want 1/2", row[6], row[7])
	}
	if row[8] != "" {
		t.Errorf("error column = %q, want empty", row[8])
	}
	// The comma inside the subject survives the round trip.
	if records[2][1] != "Pricing, please" {
		t.Errorf("quoted subject mangled: %v", records[2])
	}
}

func TestRunBatchSkipsEmptyAndOldTickets(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		queries = append(queries, req.Message)
		json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
	}))
	defer srv.Close()

	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	stale := time.Now().UTC().Add(-30 * 24 * time.Hour).Format(time.RFC3339)
	in := ticketsJSON(t, []replayTicket{
		{TicketNumber: "T-1", Subject: "Recent issue", CreatedTime: recent},
		{TicketNumber: "T-2", Subject: "Old issue", CreatedTime: stale},
		{TicketNumber: "T-3", CreatedTime: recent}, // no subject, no description
	})
	var out bytes.Buffer

	noColor = true
	if err := runBatch(context.Background(), newTestClient(srv.URL), in, &out, 0, 7*24*time.Hour); err != nil {
		t.Fatalf("runBatch failed: %v", err)
	}

	if len(queries) != 1 {
		t.Fatalf("server saw %d requests, want 1: %v", len(queries), queries)
	}
	if queries[0] != "Recent issue" {
		t.Errorf("query = %q", queries[0])
	}
}

func TestRunBatchServerErrorMarksRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom","type":"api_error"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	in := ticketsJSON(t, []replayTicket{
		{TicketNumber: "T-9", Subject: "A failing ticket"},
		{TicketNumber: "T-10", Subject: "Another failing ticket"},
	})
	var out bytes.Buffer

	noColor = true
	if err := runBatch(context.Background(), newTestClient(srv.URL), in, &out, 0, 0); err != nil {
		t.Fatalf("runBatch failed: %v", err)
	}

	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// Failures do not abort the replay.
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header plus 2 error rows", len(records))
	}
	if records[1][5] != "" || records[1][8] == "" {
		t.Errorf("error row = %v", records[1])
	}
}

func TestReplayQueryCombinesSubjectAndDescription(t *testing.T) {
	tests := []struct {
		name   string
		ticket replayTicket
		want   string
	}{
		{"both", replayTicket{Subject: "No dial tone", Description: "<b>Phone</b> is silent"}, "No dial tone: Phone is silent"},
		{"subject only", replayTicket{Subject: "No dial tone"}, "No dial tone"},
		{"description only", replayTicket{Description: "Phone is silent"}, "Phone is silent"},
		{"empty", replayTicket{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ticket.replayQuery(); got != tt.want {
				t.Errorf("replayQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
