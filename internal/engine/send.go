package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eet/internal/audit"
	"eet/internal/controlcode"
	"eet/internal/journal"
	"eet/internal/message"
	"eet/internal/platform/metrics"
	"eet/internal/receipt"
	"eet/internal/response"
	dErrors "eet/pkg/domain-errors"
)

var tracer = otel.Tracer("eet/internal/engine")

// Send registers r with the authority in one synchronous round trip.
//
// Control codes are computed fresh on every call. On success r gets its PKP,
// BKP and fiscal code, and the result echoes the PKP for printing.
func (e *Engine) Send(ctx context.Context, r *receipt.Receipt) (*response.Result, error) {
	if r == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "receipt is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.readyLocked() {
		return nil, dErrors.New(dErrors.CodeNotConfigured, "engine needs an endpoint and a certificate before sending")
	}

	ctx, span := tracer.Start(ctx, "eet.send", trace.WithAttributes(
		attribute.String("eet.message_uuid", r.MessageUUID),
		attribute.String("eet.receipt_serial", r.ReceiptSerial),
		attribute.Bool("eet.verification", r.IsVerificationMode),
	))
	defer span.End()

	start := e.now()
	result, cc, err := e.submitLocked(ctx, r)
	e.recordAttempt(ctx, r, cc, result, err, e.now().Sub(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Int("eet.error_number", dErrors.NumberOf(err)))
		return nil, err
	}

	r.PKP = cc.PKP
	r.BKP = cc.BKP
	r.FiscalCode = result.FiscalCode
	result.PKP = cc.PKP
	if result.MessageUUID == "" {
		result.MessageUUID = r.MessageUUID
	}
	span.SetAttributes(attribute.String("eet.fik", result.FiscalCode))
	return result, nil
}

func (e *Engine) submitLocked(ctx context.Context, r *receipt.Receipt) (*response.Result, controlcode.Codes, error) {
	cc, err := controlcode.Compute(r, e.cert.PrivateKey)
	if err != nil {
		return nil, controlcode.Codes{}, err
	}

	payload, err := message.Assemble(r, cc, e.now())
	if err != nil {
		return nil, cc, err
	}

	raw, err := e.transport.Submit(ctx, payload)
	if err != nil {
		if _, coded := dErrors.CodeOf(err); !coded {
			err = dErrors.Wrap(err, dErrors.CodeTransport, "submit receipt")
		}
		return nil, cc, err
	}

	result, err := response.Interpret(raw, cc.BKP, e.settings.WarningPolicy)
	if err != nil {
		return nil, cc, err
	}
	return result, cc, nil
}

type attempt struct {
	status  journal.Status
	action  string
	outcome string
}

func classify(err error) attempt {
	switch {
	case err == nil:
		return attempt{journal.StatusRegistered, audit.ActionRegistered, metrics.OutcomeRegistered}
	case response.IsVerificationSuccess(err):
		return attempt{journal.StatusVerified, audit.ActionVerified, metrics.OutcomeVerified}
	case dErrors.HasCode(err, dErrors.CodeBkpMismatch):
		return attempt{journal.StatusFailed, audit.ActionBkpMismatch, metrics.OutcomeFailed}
	}
	if _, ok := response.AsServiceError(err); ok {
		return attempt{journal.StatusRejected, audit.ActionRejected, metrics.OutcomeRejected}
	}
	if _, ok := response.AsServiceWarning(err); ok {
		return attempt{journal.StatusRejected, audit.ActionRejected, metrics.OutcomeRejected}
	}
	return attempt{journal.StatusFailed, audit.ActionFailed, metrics.OutcomeFailed}
}

// recordAttempt logs, counts, journals and audits one send. Journal and audit
// failures are logged and never change the outcome.
func (e *Engine) recordAttempt(ctx context.Context, r *receipt.Receipt, cc controlcode.Codes, result *response.Result, err error, elapsed time.Duration) {
	a := classify(err)
	e.metrics.ObserveSubmission(a.outcome, elapsed)

	logAttrs := []any{
		"message_uuid", r.MessageUUID,
		"receipt_serial", r.ReceiptSerial,
		"verification", r.IsVerificationMode,
		"duration_ms", elapsed.Milliseconds(),
	}

	entry := journal.Entry{
		MessageUUID:   r.MessageUUID,
		ReceiptSerial: r.ReceiptSerial,
		TaxID:         r.TaxID,
		BKP:           cc.BKP,
		PKP:           cc.PKP,
		Status:        a.status,
		Verification:  r.IsVerificationMode,
		AttemptedAt:   e.now(),
	}
	event := audit.Event{
		Action:        a.action,
		MessageUUID:   r.MessageUUID,
		ReceiptSerial: r.ReceiptSerial,
		TaxID:         r.TaxID,
	}

	switch {
	case err == nil:
		entry.FiscalCode = result.FiscalCode
		event.FiscalCode = result.FiscalCode
		for _, w := range result.Warnings {
			e.metrics.IncServiceWarning(w.Code)
			e.logger.WarnContext(ctx, "eet service warning", append(logAttrs,
				"code", w.Code, "description", w.Description(), "message", w.Message)...)
		}
		e.logger.InfoContext(ctx, "receipt registered", append(logAttrs, "fik", result.FiscalCode)...)
	default:
		number := dErrors.NumberOf(err)
		entry.ErrorNumber, entry.Message = number, err.Error()
		event.ErrorNumber, event.Reason = number, err.Error()
		if se, ok := response.AsServiceError(err); ok && se.Code != response.CodeVerificationOK {
			e.metrics.IncServiceError(se.Code)
		}
		if sw, ok := response.AsServiceWarning(err); ok {
			for _, w := range sw.Warnings {
				e.metrics.IncServiceWarning(w.Code)
			}
		}
		if a.status == journal.StatusVerified {
			e.logger.InfoContext(ctx, "receipt verified", logAttrs...)
		} else {
			e.logger.WarnContext(ctx, "receipt submission failed", append(logAttrs,
				"error_number", number, "error", err, "transient", response.IsTransient(err))...)
		}
	}

	// Persist even when the caller's context is already cancelled.
	bg := context.WithoutCancel(ctx)
	if e.journal != nil {
		if jerr := e.journal.Record(bg, entry); jerr != nil {
			e.logger.ErrorContext(ctx, "failed to journal submission", "message_uuid", r.MessageUUID, "error", jerr)
		}
	}
	if e.audit != nil {
		if aerr := e.audit.Emit(bg, event); aerr != nil {
			e.logger.ErrorContext(ctx, "failed to emit audit event", "message_uuid", r.MessageUUID, "error", aerr)
		}
	}
}
