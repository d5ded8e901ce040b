// Package composer assembles retrieval results into the bounded context block
// and system prompt handed to the model.
package composer

import (
	"fmt"
	"strings"

	"github.com/fieldline/deskbot/internal/search"
)

// Per-field character ceilings. Truncation cuts at the ceiling without
// word-boundary awareness; mid-word cuts are acceptable in prompt context.
const (
	maxCorrectionResponse = 300
	maxArticleContent     = 800
	maxTicketIssue        = 500
	maxTicketResolution   = 600
	maxPageContent        = 600
)

// Fallback is emitted when no source produced a match; the prompt builder
// frames it as permission to fall back to general product knowledge.
const Fallback = "No relevant documentation found. Use your general knowledge about CRM and dialer systems to help."

// Assemble merges the retrieval result into one context block in fixed
// priority order: corrections, KB articles, tickets, pages. Each section is
// emitted only when non-empty; an empty result yields exactly Fallback.
func Assemble(res search.Result) string {
	if res.Empty() {
		return Fallback
	}

	var sb strings.Builder

	if len(res.Corrections) > 0 {
		sb.WriteString("=== IMPORTANT: USER CORRECTIONS (Previous Mistakes to Avoid) ===\n\n")
		for i, c := range res.Corrections {
			fmt.Fprintf(&sb, "[CORRECTION-%d]\n", i+1)
			fmt.Fprintf(&sb, "Previous Question: %q\n", c.Item.Question)
			if c.Item.AIResponse != "" {
				fmt.Fprintf(&sb, "Previous AI Response (INCORRECT): %q\n", truncate(c.Item.AIResponse, maxCorrectionResponse))
			}
			fmt.Fprintf(&sb, "CORRECT ANSWER: %q\n", c.Item.Correction)
			sb.WriteString("Use this correction to provide accurate information.\n\n")
		}
	}

	if len(res.KB) > 0 {
		sb.WriteString("=== KNOWLEDGE BASE ARTICLES ===\n\n")
		for i, a := range res.KB {
			fmt.Fprintf(&sb, "[KB-%d] %s\n", i+1, a.Item.Title)
			category := a.Item.Category
			if category == "" {
				category = "General"
			}
			fmt.Fprintf(&sb, "Category: %s\n", category)
			fmt.Fprintf(&sb, "Content: %s\n", truncate(a.Item.Content, maxArticleContent))
			fmt.Fprintf(&sb, "URL: %s\n\n", a.Item.URL)
		}
	}

	if len(res.Tickets) > 0 {
		sb.WriteString("=== SUPPORT TICKETS (Real Customer Issues) ===\n\n")
		for i, t := range res.Tickets {
			fmt.Fprintf(&sb, "[TICKET-%d] %s\n", i+1, t.Item.Subject)
			fmt.Fprintf(&sb, "Status: %s\n", t.Item.Status)
			if t.Item.Description != "" {
				fmt.Fprintf(&sb, "Issue: %s\n", truncate(t.Item.Description, maxTicketIssue))
			}
			if t.Item.Resolution != "" {
				fmt.Fprintf(&sb, "Solution: %s\n", truncate(t.Item.Resolution, maxTicketResolution))
			}
			sb.WriteString("\n")
		}
	}

	if len(res.Pages) > 0 {
		sb.WriteString("=== PRODUCT WEBSITE PAGES ===\n\n")
		for i, p := range res.Pages {
			title := p.Item.Title
			if title == "" {
				title = "Page"
			}
			fmt.Fprintf(&sb, "[WEB-%d] %s\n", i+1, title)
			fmt.Fprintf(&sb, "URL: %s\n", p.Item.URL)
			fmt.Fprintf(&sb, "Content: %s\n\n", truncate(p.Item.Content, maxPageContent))
		}
	}

	return sb.String()
}

// truncate cuts s at max bytes and appends an ellipsis marker when it cut.
// Inputs shorter than the ceiling pass through unchanged.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
