package receipt

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "eet/pkg/domain-errors"
)

// Source is anything that can be turned into a queued receipt.
type Source interface {
	Resolve(d Defaults, now time.Time) (*Receipt, error)
}

// Defaults holds per-engine fallback values for receipts.
type Defaults struct {
	TaxID           string
	DelegatingTaxID string
	PremisesID      string
	CashRegisterID  string
	Regime          *Regime
	// Amounts holds monetary defaults keyed by wire field name.
	Amounts map[string]decimal.Decimal
}

func (d Defaults) fill(taxID, delegating, premises, register *string) {
	setIfEmpty(taxID, d.TaxID)
	setIfEmpty(delegating, d.DelegatingTaxID)
	setIfEmpty(premises, d.PremisesID)
	setIfEmpty(register, d.CashRegisterID)
}

// fillAmounts sets unset optional amounts and zero VAT amounts from the
// monetary defaults.
func (d Defaults) fillAmounts(r *Receipt) {
	if len(d.Amounts) == 0 {
		return
	}
	for name, dst := range r.optionalAmounts() {
		if v, ok := d.Amounts[name]; ok && !dst.Valid {
			*dst = Amount(v)
		}
	}
	for name, dst := range r.vatAmounts() {
		if v, ok := d.Amounts[name]; ok && dst.IsZero() {
			*dst = v
		}
	}
}

func (r *Receipt) optionalAmounts() map[string]*decimal.NullDecimal {
	return map[string]*decimal.NullDecimal{
		FieldTotalAmount:        &r.TotalAmount,
		FieldTravelServiceTotal: &r.TravelServiceTotal,
		FieldUsedGoods1:         &r.UsedGoods1,
		FieldUsedGoods2:         &r.UsedGoods2,
		FieldUsedGoods3:         &r.UsedGoods3,
		FieldPendingSettlement:  &r.PendingSettlement,
		FieldSettled:            &r.Settled,
	}
}

func (r *Receipt) vatAmounts() map[string]*decimal.Decimal {
	return map[string]*decimal.Decimal{
		FieldExemptBase: &r.ExemptBase,
		FieldVATBase1:   &r.VATBase1,
		FieldVAT1:       &r.VAT1,
		FieldVATBase2:   &r.VATBase2,
		FieldVAT2:       &r.VAT2,
		FieldVATBase3:   &r.VATBase3,
		FieldVAT3:       &r.VAT3,
	}
}

func isAmountField(name string) bool {
	_, optional := (&Receipt{}).optionalAmounts()[name]
	_, vat := (&Receipt{}).vatAmounts()[name]
	return optional || vat
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// ParseDefaults converts a field-name keyed map, as found in configuration,
// into Defaults. Keys use the wire field names: the taxpayer identity, rezim
// and every monetary field. Per-receipt keys (uuid, serial, sale time) are
// rejected.
func ParseDefaults(values map[string]string) (Defaults, error) {
	var d Defaults
	var unknown []string
	for k, v := range values {
		switch strings.ToLower(k) {
		case FieldTaxID:
			d.TaxID = v
		case FieldDelegatingTaxID:
			d.DelegatingTaxID = v
		case FieldPremisesID:
			d.PremisesID = v
		case FieldCashRegisterID:
			d.CashRegisterID = v
		case FieldRegime:
			n, err := strconv.Atoi(v)
			if err != nil || (Regime(n) != RegimeRegular && Regime(n) != RegimeSimplified) {
				return Defaults{}, dErrors.InvalidField(FieldRegime, "must be 0 or 1")
			}
			regime := Regime(n)
			d.Regime = &regime
		default:
			name := strings.ToLower(k)
			if isAmountField(name) {
				amount, err := decimal.NewFromString(strings.TrimSpace(v))
				if err != nil {
					return Defaults{}, dErrors.InvalidField(name, "must be a decimal amount")
				}
				if d.Amounts == nil {
					d.Amounts = make(map[string]decimal.Decimal)
				}
				d.Amounts[name] = amount
				continue
			}
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Defaults{}, dErrors.New(dErrors.CodeInvalidInput, "unknown default value keys: "+strings.Join(unknown, ", "))
	}
	return d, nil
}

// Fields is the typed field bag form of receipt input. Empty strings and
// invalid amounts count as unset and are filled from defaults where a
// default exists.
type Fields struct {
	MessageUUID        string
	IsFirstSend        *bool
	IsVerificationMode bool

	TaxID           string
	DelegatingTaxID string
	PremisesID      string
	CashRegisterID  string
	ReceiptSerial   string
	SaleTimestamp   time.Time

	TotalAmount decimal.NullDecimal

	ExemptBase decimal.Decimal
	VATBase1   decimal.Decimal
	VAT1       decimal.Decimal
	VATBase2   decimal.Decimal
	VAT2       decimal.Decimal
	VATBase3   decimal.Decimal
	VAT3       decimal.Decimal

	TravelServiceTotal decimal.NullDecimal
	UsedGoods1         decimal.NullDecimal
	UsedGoods2         decimal.NullDecimal
	UsedGoods3         decimal.NullDecimal
	PendingSettlement  decimal.NullDecimal
	Settled            decimal.NullDecimal

	Regime *Regime
}

// Resolve builds a new Receipt from the bag, merged with defaults.
func (f Fields) Resolve(d Defaults, now time.Time) (*Receipt, error) {
	r := New()
	if f.IsFirstSend != nil {
		r.IsFirstSend = *f.IsFirstSend
	}
	r.MessageUUID = f.MessageUUID
	r.IsVerificationMode = f.IsVerificationMode
	r.TaxID = f.TaxID
	r.DelegatingTaxID = f.DelegatingTaxID
	r.PremisesID = f.PremisesID
	r.CashRegisterID = f.CashRegisterID
	r.ReceiptSerial = f.ReceiptSerial
	r.SaleTimestamp = f.SaleTimestamp
	r.TotalAmount = f.TotalAmount
	r.ExemptBase = f.ExemptBase
	r.VATBase1, r.VAT1 = f.VATBase1, f.VAT1
	r.VATBase2, r.VAT2 = f.VATBase2, f.VAT2
	r.VATBase3, r.VAT3 = f.VATBase3, f.VAT3
	r.TravelServiceTotal = f.TravelServiceTotal
	r.UsedGoods1 = f.UsedGoods1
	r.UsedGoods2 = f.UsedGoods2
	r.UsedGoods3 = f.UsedGoods3
	r.PendingSettlement = f.PendingSettlement
	r.Settled = f.Settled

	switch {
	case f.Regime != nil:
		r.Regime = *f.Regime
	case d.Regime != nil:
		r.Regime = *d.Regime
	}
	return r.Resolve(d, now)
}
