package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one recorded chat turn: the query, the model's answer, and
// which sources backed it. Kept for operational review and the admin API.
type Interaction struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	SessionID       string    `json:"session_id,omitempty"`
	UserQuery       string    `json:"user_query"`
	Response        string    `json:"response"`
	Status          string    `json:"status"` // "completed" or "failed"
	CorrectionsUsed int       `json:"corrections_used"`
	KBUsed          int       `json:"kb_used"`
	TicketsUsed     int       `json:"tickets_used"`
	PagesUsed       int       `json:"pages_used"`
	PricingOnly     bool      `json:"pricing_only"`
}
