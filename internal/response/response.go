// Package response interprets the tax authority's reply to a registration message.
package response

import (
	"strings"
	"time"

	dErrors "eet/pkg/domain-errors"
)

// Raw is the Odpoved element as delivered by a transport. Element matching is
// by local name so any namespace prefix is accepted.
type Raw struct {
	Header       *RawHeader     `xml:"Hlavicka"`
	Confirmation *Confirmation  `xml:"Potvrzeni"`
	Error        *ErrorBlock    `xml:"Chyba"`
	Warnings     []WarningBlock `xml:"Varovani"`
}

type RawHeader struct {
	UUID       string `xml:"uuid_zpravy,attr"`
	BKP        string `xml:"bkp,attr"`
	ReceivedAt string `xml:"dat_prij,attr"`
	RejectedAt string `xml:"dat_odmit,attr"`
}

type Confirmation struct {
	FiscalCode string `xml:"fik,attr"`
	Test       bool   `xml:"test,attr"`
}

type ErrorBlock struct {
	Code    int    `xml:"kod,attr"`
	Test    bool   `xml:"test,attr"`
	Message string `xml:",chardata"`
}

type WarningBlock struct {
	Code    int    `xml:"kod_varov,attr"`
	Message string `xml:",chardata"`
}

// Result is a successful registration.
type Result struct {
	MessageUUID string
	// FiscalCode is the FIK assigned by the authority.
	FiscalCode string
	BKP        string
	// PKP is the base64 PKP sent with the message, echoed for printing on the receipt.
	PKP        string
	ReceivedAt time.Time
	Test       bool
	Warnings   []Warning
}

// Interpret classifies raw against the BKP that was sent.
//
// A differing BKP echo is fatal whatever else the response says. After that an
// error block wins over everything, then warnings are handled per policy, and
// finally a FIK is required.
func Interpret(raw *Raw, sentBKP string, policy WarningPolicy) (*Result, error) {
	if raw == nil {
		return nil, dErrors.New(dErrors.CodeMalformedResponse, "empty response")
	}

	if raw.Header != nil && raw.Header.BKP != "" && raw.Header.BKP != sentBKP {
		return nil, dErrors.New(dErrors.CodeBkpMismatch,
			"response bkp "+raw.Header.BKP+" does not match sent bkp "+sentBKP)
	}

	if raw.Error != nil {
		return nil, &ServiceError{Code: raw.Error.Code, Message: strings.TrimSpace(raw.Error.Message)}
	}

	result := &Result{BKP: sentBKP}
	if raw.Header != nil {
		result.MessageUUID = raw.Header.UUID
		if ts, err := time.Parse(time.RFC3339, raw.Header.ReceivedAt); err == nil {
			result.ReceivedAt = ts
		}
	}
	if raw.Confirmation != nil {
		result.FiscalCode = raw.Confirmation.FiscalCode
		result.Test = raw.Confirmation.Test
	}
	for _, w := range raw.Warnings {
		result.Warnings = append(result.Warnings, Warning{Code: w.Code, Message: strings.TrimSpace(w.Message)})
	}

	if len(result.Warnings) > 0 && policy == WarningPolicyFail {
		return nil, &ServiceWarning{
			MessageUUID: result.MessageUUID,
			FiscalCode:  result.FiscalCode,
			Warnings:    result.Warnings,
		}
	}

	if result.FiscalCode == "" {
		return nil, dErrors.New(dErrors.CodeMalformedResponse, "response carries neither error nor fik")
	}
	return result, nil
}
