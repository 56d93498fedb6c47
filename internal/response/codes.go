package response

import (
	"fmt"
	"strings"
)

// RemoteCodeOffset shifts authority codes into their own numeric range so
// they never collide with local error numbers.
const RemoteCodeOffset = 1000

// Authority error codes.
const (
	CodeRetryLater         = -1
	CodeVerificationOK     = 0
	CodeInvalidEncoding    = 2
	CodeSchemaViolation    = 3
	CodeInvalidSignature   = 4
	CodeInvalidBKP         = 5
	CodeInvalidTaxIDFormat = 6
	CodeMessageTooLarge    = 7
	CodeDataError          = 8
)

var errorDescriptions = map[int]string{
	CodeRetryLater:         "temporary technical error, send the message again later",
	CodeVerificationOK:     "verification mode: the message would have been accepted",
	1:                      "",
	CodeInvalidEncoding:    "invalid XML encoding",
	CodeSchemaViolation:    "message failed XML schema validation",
	CodeInvalidSignature:   "invalid SOAP message signature",
	CodeInvalidBKP:         "invalid BKP checksum",
	CodeInvalidTaxIDFormat: "taxpayer tax id has an invalid structure",
	CodeMessageTooLarge:    "message is too large",
	CodeDataError:          "message not processed due to a technical data error",
}

// Authority warning codes.
const (
	WarningTaxIDMismatch       = 1
	WarningDelegatingTaxID     = 2
	WarningInvalidPKP          = 3
	WarningSaleInFuture        = 4
	WarningSaleTooFarInThePast = 5
)

var warningDescriptions = map[int]string{
	WarningTaxIDMismatch:       "taxpayer tax id in the message differs from the one in the certificate",
	WarningDelegatingTaxID:     "invalid structure of the delegating taxpayer tax id",
	WarningInvalidPKP:          "invalid PKP value",
	WarningSaleInFuture:        "sale timestamp is later than the message acceptance time",
	WarningSaleTooFarInThePast: "sale timestamp is significantly in the past",
}

// ErrorDescription returns the documented meaning of an authority error code.
func ErrorDescription(code int) string {
	if d, ok := errorDescriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("unknown service error %d", code)
}

// WarningDescription returns the documented meaning of an authority warning code.
func WarningDescription(code int) string {
	if d, ok := warningDescriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("unknown service warning %d", code)
}

// WarningPolicy decides what a response carrying warnings means to the caller.
type WarningPolicy string

const (
	// WarningPolicyLog accepts the receipt and attaches warnings to the result.
	WarningPolicyLog WarningPolicy = "log"
	// WarningPolicyFail turns any warning into a *ServiceWarning error.
	WarningPolicyFail WarningPolicy = "fail"
)

// ParseWarningPolicy accepts "log", "fail" or empty (log).
func ParseWarningPolicy(s string) (WarningPolicy, error) {
	switch WarningPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", WarningPolicyLog:
		return WarningPolicyLog, nil
	case WarningPolicyFail:
		return WarningPolicyFail, nil
	}
	return "", fmt.Errorf("unknown warning policy %q", s)
}
