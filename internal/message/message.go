// Package message assembles the registration payload sent to the tax authority.
package message

import (
	"time"

	"eet/internal/controlcode"
	"eet/internal/receipt"
	dErrors "eet/pkg/domain-errors"
)

// Payload is the complete registration message.
type Payload struct {
	Header       receipt.Header
	Body         receipt.Body
	ControlCodes ControlCodes
}

// ControlCodes carries both codes with their algorithm descriptors.
type ControlCodes struct {
	BKP BKP
	PKP PKP
}

type BKP struct {
	Value    string
	Digest   string
	Encoding string
}

type PKP struct {
	Value    string
	Digest   string
	Cipher   string
	Encoding string
}

// Assemble renders r into a payload stamped with sentAt.
func Assemble(r *receipt.Receipt, codes controlcode.Codes, sentAt time.Time) (Payload, error) {
	if r == nil {
		return Payload{}, dErrors.New(dErrors.CodeInvalidInput, "receipt is required")
	}
	header, err := r.RenderHeaderAt(sentAt)
	if err != nil {
		return Payload{}, err
	}
	body, err := r.RenderBody()
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Header: header,
		Body:   body,
		ControlCodes: ControlCodes{
			BKP: BKP{Value: codes.BKP, Digest: "SHA1", Encoding: "base16"},
			PKP: PKP{Value: codes.PKP, Digest: "SHA256", Cipher: "RSA2048", Encoding: "base64"},
		},
	}, nil
}
