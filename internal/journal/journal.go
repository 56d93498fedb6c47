// Package journal keeps the attempt history of receipt submissions so an
// operator can prove what was sent, what came back and what must be resent.
package journal

import (
	"context"
	"time"
)

// Status is the outcome of one attempt.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

// Entry is one submission attempt.
type Entry struct {
	MessageUUID   string    `json:"message_uuid"`
	ReceiptSerial string    `json:"receipt_serial"`
	TaxID         string    `json:"tax_id"`
	BKP           string    `json:"bkp"`
	PKP           string    `json:"pkp"`
	FiscalCode    string    `json:"fik,omitempty"`
	Status        Status    `json:"status"`
	ErrorNumber   int       `json:"error_number,omitempty"`
	Message       string    `json:"message,omitempty"`
	Verification  bool      `json:"verification"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// Store persists entries. Find returns attempts oldest first and
// sentinel.ErrNotFound when the uuid has none.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Find(ctx context.Context, messageUUID string) ([]Entry, error)
}

// Lister is implemented by stores that can query across receipts.
type Lister interface {
	ListByStatus(ctx context.Context, statuses ...Status) ([]Entry, error)
}

// Latest returns the most recent entry of a Find result.
func Latest(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}
