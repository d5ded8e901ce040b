package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fieldline/deskbot/internal/chat"
	"github.com/fieldline/deskbot/internal/corpus"
	"github.com/fieldline/deskbot/internal/search"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Corpus       *corpus.Store
	Retriever    *search.Retriever
	Interactions InteractionLister // optional; if nil, the recent resource returns an error
}

// NewMCPServer creates an MCP server exposing the support corpus to agent
// clients: lexical search, correction submission, and corpus status.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"deskbot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("deskbot: support knowledge base over KB articles, resolved tickets, website pages, and user corrections."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_support",
			mcp.WithDescription("Search the support corpus (KB articles, tickets, website pages, corrections) and return ranked matches per source."),
			mcp.WithString("query", mcp.Description("Support question to search for"), mcp.Required()),
		),
		mcpSearchSupport(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_correction",
			mcp.WithDescription("Record a correction for a wrong assistant answer so future answers avoid the mistake."),
			mcp.WithString("question", mcp.Description("The question that was answered incorrectly"), mcp.Required()),
			mcp.WithString("ai_response", mcp.Description("The incorrect answer that was given")),
			mcp.WithString("correction", mcp.Description("The correct answer"), mcp.Required()),
		),
		mcpSubmitCorrection(deps),
	)

	s.AddTool(
		mcp.NewTool("corpus_status",
			mcp.WithDescription("Report which corpus sources are loaded and how many entries each holds."),
		),
		mcpCorpusStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"deskbot://recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 recorded chat interactions (queries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSearchSupport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		res := deps.Retriever.Retrieve(query)

		type match struct {
			Source string `json:"source"`
			Title  string `json:"title"`
			URL    string `json:"url,omitempty"`
			Score  int    `json:"score"`
			Text   string `json:"text"`
		}

		matches := []match{}
		for _, c := range res.Corrections {
			matches = append(matches, match{
				Source: "correction",
				Title:  c.Item.Question,
				Score:  c.Score,
				Text:   c.Item.Correction,
			})
		}
		for _, a := range res.KB {
			matches = append(matches, match{
				Source: "kb",
				Title:  a.Item.Title,
				URL:    a.Item.URL,
				Score:  a.Score,
				Text:   clipRunes(a.Item.Content, 500),
			})
		}
		for _, t := range res.Tickets {
			matches = append(matches, match{
				Source: "ticket",
				Title:  t.Item.Subject,
				Score:  t.Score,
				Text:   clipRunes(t.Item.Resolution, 500),
			})
		}
		for _, p := range res.Pages {
			matches = append(matches, match{
				Source: "page",
				Title:  p.Item.Title,
				URL:    p.Item.URL,
				Score:  p.Score,
				Text:   clipRunes(p.Item.Content, 500),
			})
		}

		b, err := json.Marshal(map[string]any{
			"pricingOnly": res.PricingOnly,
			"matches":     matches,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpSubmitCorrection(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		correction, err := req.RequireString("correction")
		if err != nil {
			return mcpError("correction is required"), nil
		}
		aiResponse := req.GetString("ai_response", "")

		c := chat.NewCorrection(question, aiResponse, correction, "mcp")
		if err := deps.Corpus.AddCorrection(c); err != nil {
			return mcpError(fmt.Sprintf("failed to save correction: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored correction %s", c.ID)), nil
	}
}

func mcpCorpusStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := deps.Corpus.Status()
		b, err := json.Marshal(status)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Interactions == nil {
			return nil, fmt.Errorf("interaction log is not enabled")
		}

		interactions, err := deps.Interactions.ListInteractions(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Query     string `json:"query"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Query:     clipRunes(ix.UserQuery, 200),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
