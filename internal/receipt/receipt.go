// Package receipt models a single cash-sale record and renders it into the
// header, body and control-code input of a registration message.
package receipt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Regime is the registration regime of a sale.
type Regime int

const (
	RegimeRegular    Regime = 0
	RegimeSimplified Regime = 1
)

// Receipt is one sale to be registered.
//
// The zero value has IsFirstSend false; use New for the documented defaults.
// After a successful send the engine fills PKP, BKP and FiscalCode.
type Receipt struct {
	MessageUUID        string
	IsFirstSend        bool
	IsVerificationMode bool

	TaxID           string
	DelegatingTaxID string
	PremisesID      string
	CashRegisterID  string
	ReceiptSerial   string
	SaleTimestamp   time.Time

	// TotalAmount is mandatory. Zero is a valid total; an invalid NullDecimal is not.
	TotalAmount decimal.NullDecimal

	ExemptBase decimal.Decimal
	VATBase1   decimal.Decimal
	VAT1       decimal.Decimal
	VATBase2   decimal.Decimal
	VAT2       decimal.Decimal
	VATBase3   decimal.Decimal
	VAT3       decimal.Decimal

	// Optional amounts are omitted from the body when unset.
	TravelServiceTotal decimal.NullDecimal
	UsedGoods1         decimal.NullDecimal
	UsedGoods2         decimal.NullDecimal
	UsedGoods3         decimal.NullDecimal
	PendingSettlement  decimal.NullDecimal
	Settled            decimal.NullDecimal

	Regime Regime

	PKP        string
	BKP        string
	FiscalCode string
}

// New returns a receipt with IsFirstSend set.
func New() *Receipt {
	return &Receipt{IsFirstSend: true}
}

// Amount is shorthand for a set NullDecimal.
func Amount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// NewMessageUUID returns a fresh random message identifier.
func NewMessageUUID() string {
	return uuid.NewString()
}

// Resolve fills fields the caller left empty from defaults and returns the
// receipt itself. Explicitly set fields always win; a zero VAT amount counts
// as empty.
func (r *Receipt) Resolve(d Defaults, now time.Time) (*Receipt, error) {
	d.fill(&r.TaxID, &r.DelegatingTaxID, &r.PremisesID, &r.CashRegisterID)
	d.fillAmounts(r)
	if r.SaleTimestamp.IsZero() {
		r.SaleTimestamp = now
	}
	return r, nil
}
