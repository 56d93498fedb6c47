package engine

import (
	"context"

	"eet/internal/receipt"
	"eet/internal/response"
)

// VerificationOutcome classifies a dry run.
type VerificationOutcome int

const (
	// VerifiedOK means the authority would accept the receipt.
	VerifiedOK VerificationOutcome = iota
	// VerifiedRejected means the authority answered and refused it.
	VerifiedRejected
	// VerificationFailed means no verdict was obtained.
	VerificationFailed
)

func (o VerificationOutcome) String() string {
	switch o {
	case VerifiedOK:
		return "verified"
	case VerifiedRejected:
		return "rejected"
	}
	return "failed"
}

// VerificationResult is the verdict of DryRunSend.
type VerificationResult struct {
	Outcome VerificationOutcome
	// Rejection is the *response.ServiceError or *response.ServiceWarning
	// behind a VerifiedRejected outcome.
	Rejection error
	// Err is the failure behind VerificationFailed.
	Err error
}

// Accepted reports whether the receipt passed verification.
func (v VerificationResult) Accepted() bool {
	return v.Outcome == VerifiedOK
}

// DryRunSend submits r in verification mode. A rejection by the authority is
// a verdict, not an error; only failures to obtain a verdict are returned as
// errors. r is always left with IsVerificationMode false.
func (e *Engine) DryRunSend(ctx context.Context, r *receipt.Receipt) (VerificationResult, error) {
	if r == nil {
		_, err := e.Send(ctx, nil)
		return VerificationResult{Outcome: VerificationFailed, Err: err}, err
	}

	r.IsVerificationMode = true
	defer func() { r.IsVerificationMode = false }()

	_, err := e.Send(ctx, r)
	switch {
	case err == nil, response.IsVerificationSuccess(err):
		return VerificationResult{Outcome: VerifiedOK}, nil
	}
	if se, ok := response.AsServiceError(err); ok {
		return VerificationResult{Outcome: VerifiedRejected, Rejection: se}, nil
	}
	if sw, ok := response.AsServiceWarning(err); ok {
		return VerificationResult{Outcome: VerifiedRejected, Rejection: sw}, nil
	}
	return VerificationResult{Outcome: VerificationFailed, Err: err}, err
}
