package audit

import "time"

// Actions emitted by the submission engine.
const (
	ActionRegistered  = "receipt_registered"
	ActionVerified    = "receipt_verified"
	ActionRejected    = "receipt_rejected"
	ActionFailed      = "receipt_failed"
	ActionBkpMismatch = "bkp_mismatch"
)

// Event records one submission outcome. It is transport-agnostic so sinks can
// fan out to logs, brokers or tests.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Action        string    `json:"action"`
	MessageUUID   string    `json:"message_uuid"`
	ReceiptSerial string    `json:"receipt_serial,omitempty"`
	TaxID         string    `json:"tax_id,omitempty"`
	FiscalCode    string    `json:"fik,omitempty"`
	ErrorNumber   int       `json:"error_number,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}
