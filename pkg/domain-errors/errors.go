// Package domainerrors carries the local error taxonomy of the submission engine.
//
// Every error raised by this module (as opposed to errors reported by the tax
// authority) is an *Error with a Code. Each Code maps to a stable numeric value
// that callers can surface to operators; remote service codes live in a separate
// numeric range owned by the response package so the two never collide.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a local failure.
type Code string

const (
	CodeInvalidInput         Code = "invalid_input"
	CodeConfig               Code = "config"
	CodeNotConfigured        Code = "not_configured"
	CodeCertificateNotFound  Code = "certificate_not_found"
	CodeCertificate          Code = "certificate"
	CodeSigning              Code = "signing"
	CodeMissingRequiredField Code = "missing_required_field"
	CodeInvalidField         Code = "invalid_field"
	CodeBkpMismatch          Code = "bkp_mismatch"
	CodeMalformedResponse    Code = "malformed_response"
	CodeTransport            Code = "transport"
	CodeTimeout              Code = "timeout"
	CodeInternal             Code = "internal"
)

var numbers = map[Code]int{
	CodeConfig:               203,
	CodeNotConfigured:        204,
	CodeInvalidInput:         301,
	CodeCertificateNotFound:  304,
	CodeCertificate:          305,
	CodeSigning:              306,
	CodeInternal:             500,
	CodeMissingRequiredField: 701,
	CodeInvalidField:         702,
	CodeBkpMismatch:          801,
	CodeMalformedResponse:    802,
	CodeTransport:            901,
	CodeTimeout:              902,
}

// Number returns the stable numeric value of the code, 0 for unknown codes.
func (c Code) Number() int {
	return numbers[c]
}

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	// Field names the offending payload field for field-level failures.
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Number returns the numeric value of the error's code.
func (e *Error) Number() int {
	return e.Code.Number()
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// MissingField reports an absent mandatory field.
func MissingField(field string) *Error {
	return &Error{Code: CodeMissingRequiredField, Message: "missing required field " + field, Field: field}
}

// InvalidField reports a field whose value violates its format.
func InvalidField(field, msg string) *Error {
	return &Error{Code: CodeInvalidField, Message: field + ": " + msg, Field: field}
}

// HasCode reports whether any error in err's chain is an *Error with the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// NumberOf returns the numeric code of err. Any error in the chain exposing
// Number() int is honoured, which covers remote service errors as well.
func NumberOf(err error) int {
	var n interface{ Number() int }
	if errors.As(err, &n) {
		return n.Number()
	}
	return 0
}
