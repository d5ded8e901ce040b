package corpus

import "time"

// Article is a knowledge-base article scraped from the documentation site.
// Immutable after load.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content"`
	ScrapedAt   time.Time `json:"scrapedAt"`
}

// Ticket is a resolved or open support ticket exported from the helpdesk.
// Immutable after load.
type Ticket struct {
	TicketNumber string    `json:"ticketNumber"`
	Subject      string    `json:"subject"`
	Description  string    `json:"description,omitempty"`
	Resolution   string    `json:"resolution,omitempty"`
	Status       string    `json:"status"`
	CreatedTime  time.Time `json:"createdTime"`
}

// Page is a scraped marketing/product web page. Content is truncated to
// maxPageContent characters at load. Immutable after load.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

// Correction is a user-submitted fix for a wrong answer. The only corpus
// that grows at runtime; each addition is persisted synchronously.
type Correction struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	AIResponse  string    `json:"aiResponse,omitempty"`
	Correction  string    `json:"correction"`
	SessionID   string    `json:"sessionId,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// SourceState reports whether a corpus loaded successfully and how many
// items it holds.
type SourceState struct {
	Loaded bool `json:"loaded"`
	Count  int  `json:"count"`
}

// Status is the per-corpus load state exposed on the status endpoints.
type Status struct {
	KB          SourceState `json:"kb"`
	Tickets     SourceState `json:"tickets"`
	Pages       SourceState `json:"pages"`
	Corrections SourceState `json:"corrections"`
}
