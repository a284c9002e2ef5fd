// Package queue defines the loan events exchanged over the message broker
// and the background consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeBookLoaned   = "book.loaned"
	TypeBookReturned = "book.returned"
)

// LoanEvent is published after a book changes loan state.  It carries
// enough for a consumer to log or notify without reading the catalog.
type LoanEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	BookID     int64  `json:"book_id"`
	Title      string `json:"title,omitempty"`
	Loanee     string `json:"loanee,omitempty"`
	LoanDate   string `json:"loan_date,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewLoanEvent stamps a fresh event id and the current UTC time.
func NewLoanEvent(typ string, bookID int64, title, loanee, loanDate string) LoanEvent {
	return LoanEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		BookID:     bookID,
		Title:      title,
		Loanee:     loanee,
		LoanDate:   loanDate,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
