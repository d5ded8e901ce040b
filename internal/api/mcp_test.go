package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fieldline/deskbot/internal/corpus"
	"github.com/fieldline/deskbot/internal/search"
	"github.com/fieldline/deskbot/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	corp := corpus.NewStore(store)
	if err := corp.AddCorrection(corpus.Correction{
		ID:          "c1",
		Question:    "how do I export contacts",
		Correction:  "Use Contacts then Actions then Export CSV.",
		SubmittedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	return MCPDeps{
		Corpus:       corp,
		Retriever:    search.NewRetriever(corp, search.Limits{}),
		Interactions: store,
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPToolSearchSupport(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchSupport(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_support", map[string]interface{}{
		"query": "how do I export contacts",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool errored: %s", toolText(t, result))
	}

	var parsed struct {
		PricingOnly bool `json:"pricingOnly"`
		Matches     []struct {
			Source string `json:"source"`
			Title  string `json:"title"`
			Score  int    `json:"score"`
		} `json:"matches"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &parsed); err != nil {
		t.Fatalf("parsing tool output: %v", err)
	}
	if len(parsed.Matches) != 1 || parsed.Matches[0].Source != "correction" {
		t.Errorf("matches = %+v", parsed.Matches)
	}
	if parsed.Matches[0].Score == 0 {
		t.Error("match score missing")
	}
}

func TestMCPToolSearchSupportRequiresQuery(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchSupport(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_support", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("missing query did not produce a tool error")
	}
}

func TestMCPToolSubmitCorrection(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpSubmitCorrection(deps)

	result, err := handler(context.Background(), makeCallToolRequest("submit_correction", map[string]interface{}{
		"question":    "what does the dialer cost",
		"ai_response": "it is free",
		"correction":  "the dialer is part of the paid plan",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool errored: %s", toolText(t, result))
	}
	if !strings.HasPrefix(toolText(t, result), "Stored correction ") {
		t.Errorf("unexpected response: %s", toolText(t, result))
	}

	saved, err := store.ListCorrections()
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 persisted corrections, got %d", len(saved))
	}
}

func TestMCPToolCorpusStatus(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpCorpusStatus(deps)

	result, err := handler(context.Background(), makeCallToolRequest("corpus_status", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var status corpus.Status
	if err := json.Unmarshal([]byte(toolText(t, result)), &status); err != nil {
		t.Fatalf("parsing status: %v", err)
	}
	if status.Corrections.Count != 1 {
		t.Errorf("corrections count = %d, want 1", status.Corrections.Count)
	}
}

func TestMCPResourceRecent(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if err := store.SaveInteraction(storage.Interaction{
		ID: "i1", CreatedAt: time.Now().UTC(), UserQuery: "a question", Response: "an answer",
	}); err != nil {
		t.Fatal(err)
	}

	handler := mcpResourceRecent(deps)
	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "deskbot://recent"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if !strings.Contains(text.Text, "a question") {
		t.Errorf("resource missing interaction: %s", text.Text)
	}
}
