package soap

import (
	"errors"
	"fmt"

	dErrors "eet/pkg/domain-errors"
)

// Category is the normalized transport failure taxonomy.
type Category string

const (
	// CategoryTimeout covers connection and request deadline expiry.
	CategoryTimeout Category = "timeout"
	// CategoryOutage covers unreachable endpoints, 5xx and an open circuit.
	CategoryOutage Category = "outage"
	// CategoryFault is a SOAP fault returned instead of a response.
	CategoryFault Category = "fault"
	// CategoryBadData is a reply that could not be parsed.
	CategoryBadData Category = "bad_data"
	// CategoryInternal is a local failure before anything was sent.
	CategoryInternal Category = "internal"
	// CategoryCanceled is an exchange abandoned by the caller's context.
	CategoryCanceled Category = "canceled"
)

// Error describes a failed exchange with the registration endpoint.
type Error struct {
	Category   Category
	Endpoint   string
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("endpoint %s [%s]: %s", e.Endpoint, e.Category, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

var categoryCodes = map[Category]dErrors.Code{
	CategoryTimeout:  dErrors.CodeTimeout,
	CategoryOutage:   dErrors.CodeTransport,
	CategoryFault:    dErrors.CodeTransport,
	CategoryBadData:  dErrors.CodeMalformedResponse,
	CategoryInternal: dErrors.CodeInternal,
	CategoryCanceled: dErrors.CodeTransport,
}

// newError builds a transport error wrapped in the matching domain code.
func newError(category Category, endpoint, message string, status int, underlying error) error {
	te := &Error{
		Category:   category,
		Endpoint:   endpoint,
		StatusCode: status,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == CategoryTimeout || category == CategoryOutage,
	}
	return dErrors.Wrap(te, categoryCodes[category], "eet transport")
}

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the transport category from err.
func GetCategory(err error) Category {
	var te *Error
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryInternal
}
