package response

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	dErrors "eet/pkg/domain-errors"
)

// ServiceError is an error reported by the tax authority.
type ServiceError struct {
	Code int
	// Message is the authority's own text, when it sent one.
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("eet service error %d (%s): %s", e.Code, e.Description(), e.Message)
	}
	return fmt.Sprintf("eet service error %d (%s)", e.Code, e.Description())
}

func (e *ServiceError) Description() string {
	return ErrorDescription(e.Code)
}

// Number is the offset numeric code, 1000 for verification success.
func (e *ServiceError) Number() int {
	return RemoteCodeOffset + e.Code
}

// Retryable is true for the temporary "send again later" class.
func (e *ServiceError) Retryable() bool {
	return e.Code == CodeRetryLater
}

// Warning is one non-fatal remark from the authority.
type Warning struct {
	Code    int
	Message string
}

func (w Warning) Description() string {
	return WarningDescription(w.Code)
}

// ServiceWarning is returned in place of a result under WarningPolicyFail.
type ServiceWarning struct {
	MessageUUID string
	FiscalCode  string
	Warnings    []Warning
}

func (e *ServiceWarning) Error() string {
	codes := make([]string, 0, len(e.Warnings))
	for _, w := range e.Warnings {
		codes = append(codes, strconv.Itoa(w.Code)+" ("+w.Description()+")")
	}
	return "eet service warning: " + strings.Join(codes, ", ")
}

// AsServiceError extracts a *ServiceError from err's chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsServiceWarning extracts a *ServiceWarning from err's chain.
func AsServiceWarning(err error) (*ServiceWarning, bool) {
	var sw *ServiceWarning
	if errors.As(err, &sw) {
		return sw, true
	}
	return nil, false
}

// IsVerificationSuccess reports whether err is the authority's verification-mode acceptance.
func IsVerificationSuccess(err error) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == CodeVerificationOK
}

// IsTransient reports whether the failure belongs to the retry-later class:
// the authority's temporary error, a timeout, or a transport failure.
func IsTransient(err error) bool {
	if se, ok := AsServiceError(err); ok {
		return se.Retryable()
	}
	return dErrors.HasCode(err, dErrors.CodeTimeout) || dErrors.HasCode(err, dErrors.CodeTransport)
}
