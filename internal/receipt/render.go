package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "eet/pkg/domain-errors"
)

// Wire field names of the registration message body.
const (
	FieldMessageUUID        = "uuid_zpravy"
	FieldTaxID              = "dic_popl"
	FieldDelegatingTaxID    = "dic_poverujiciho"
	FieldPremisesID         = "id_provoz"
	FieldCashRegisterID     = "id_pokl"
	FieldReceiptSerial      = "porad_cis"
	FieldSaleTimestamp      = "dat_trzby"
	FieldTotalAmount        = "celk_trzba"
	FieldExemptBase         = "zakl_nepodl_dph"
	FieldVATBase1           = "zakl_dan1"
	FieldVAT1               = "dan1"
	FieldVATBase2           = "zakl_dan2"
	FieldVAT2               = "dan2"
	FieldVATBase3           = "zakl_dan3"
	FieldVAT3               = "dan3"
	FieldTravelServiceTotal = "cest_sluz"
	FieldUsedGoods1         = "pouzit_zboz1"
	FieldUsedGoods2         = "pouzit_zboz2"
	FieldUsedGoods3         = "pouzit_zboz3"
	FieldPendingSettlement  = "urceno_cerp_zuct"
	FieldSettled            = "cerp_zuct"
	FieldRegime             = "rezim"
)

// TimestampLayout is ISO-8601 with a numeric offset. UTC renders as +00:00.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

var (
	serialPattern   = regexp.MustCompile(`^[0-9a-zA-Z.,:;/#_-]{1,20}$`)
	taxIDPattern    = regexp.MustCompile(`^CZ[0-9]{8,10}$`)
	premisesPattern = regexp.MustCompile(`^[1-9][0-9]{0,5}$`)
	registerPattern = regexp.MustCompile(`^[0-9a-zA-Z.,:;/#_ -]{1,20}$`)
)

// Header is the rendered message header.
type Header struct {
	UUID         string
	SentAt       time.Time
	FirstSend    bool
	Verification bool
}

// Field is one rendered body entry.
type Field struct {
	Name  string
	Value string
}

// Body is the rendered message body in wire order.
type Body []Field

// Get returns the value of the named field.
func (b Body) Get(name string) (string, bool) {
	for _, f := range b {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// FormatAmount renders money with exactly two decimals, a dot separator and
// no grouping. Halves round away from zero.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// RenderHeader renders the header with the current time as sentAt.
func (r *Receipt) RenderHeader() (Header, error) {
	return r.RenderHeaderAt(time.Now())
}

// RenderHeaderAt renders the header with sentAt fixed to t.
func (r *Receipt) RenderHeaderAt(t time.Time) (Header, error) {
	if r.MessageUUID == "" {
		return Header{}, dErrors.MissingField(FieldMessageUUID)
	}
	if len(r.MessageUUID) != 36 {
		return Header{}, dErrors.InvalidField(FieldMessageUUID, "must be a canonical uuid")
	}
	if _, err := uuid.Parse(r.MessageUUID); err != nil {
		return Header{}, dErrors.InvalidField(FieldMessageUUID, "must be a canonical uuid")
	}
	return Header{
		UUID:         r.MessageUUID,
		SentAt:       t.Truncate(time.Second),
		FirstSend:    r.IsFirstSend,
		Verification: r.IsVerificationMode,
	}, nil
}

type fieldPattern struct {
	name    string
	value   string
	pattern *regexp.Regexp
	want    string
}

// validateMandatory checks the fields every message and control code needs.
func (r *Receipt) validateMandatory() error {
	required := []struct {
		name    string
		present bool
	}{
		{FieldTaxID, r.TaxID != ""},
		{FieldPremisesID, r.PremisesID != ""},
		{FieldCashRegisterID, r.CashRegisterID != ""},
		{FieldReceiptSerial, r.ReceiptSerial != ""},
		{FieldSaleTimestamp, !r.SaleTimestamp.IsZero()},
		{FieldTotalAmount, r.TotalAmount.Valid},
	}
	for _, f := range required {
		if !f.present {
			return dErrors.MissingField(f.name)
		}
	}
	checks := []fieldPattern{
		{FieldTaxID, r.TaxID, taxIDPattern, "CZ followed by 8 to 10 digits"},
		{FieldPremisesID, r.PremisesID, premisesPattern, "a number from 1 to 999999"},
		{FieldCashRegisterID, r.CashRegisterID, registerPattern, "[0-9a-zA-Z.,:;/#_ -]{1,20}"},
		{FieldReceiptSerial, r.ReceiptSerial, serialPattern, "[0-9a-zA-Z.,:;/#_-]{1,20}"},
	}
	if r.DelegatingTaxID != "" {
		checks = append(checks, fieldPattern{FieldDelegatingTaxID, r.DelegatingTaxID, taxIDPattern, "CZ followed by 8 to 10 digits"})
	}
	for _, c := range checks {
		if !c.pattern.MatchString(c.value) {
			return dErrors.InvalidField(c.name, "must be "+c.want)
		}
	}
	if r.Regime != RegimeRegular && r.Regime != RegimeSimplified {
		return dErrors.InvalidField(FieldRegime, "must be 0 or 1")
	}
	return nil
}

// RenderBody renders the body fields in wire order.
func (r *Receipt) RenderBody() (Body, error) {
	if err := r.validateMandatory(); err != nil {
		return nil, err
	}

	body := make(Body, 0, 21)
	add := func(name, value string) {
		body = append(body, Field{Name: name, Value: value})
	}
	addOptional := func(name string, v decimal.NullDecimal) {
		if v.Valid {
			add(name, FormatAmount(v.Decimal))
		}
	}

	add(FieldTaxID, r.TaxID)
	if r.DelegatingTaxID != "" {
		add(FieldDelegatingTaxID, r.DelegatingTaxID)
	}
	add(FieldPremisesID, r.PremisesID)
	add(FieldCashRegisterID, r.CashRegisterID)
	add(FieldReceiptSerial, r.ReceiptSerial)
	add(FieldSaleTimestamp, FormatTimestamp(r.SaleTimestamp))
	add(FieldTotalAmount, FormatAmount(r.TotalAmount.Decimal))
	add(FieldExemptBase, FormatAmount(r.ExemptBase))
	add(FieldVATBase1, FormatAmount(r.VATBase1))
	add(FieldVAT1, FormatAmount(r.VAT1))
	add(FieldVATBase2, FormatAmount(r.VATBase2))
	add(FieldVAT2, FormatAmount(r.VAT2))
	add(FieldVATBase3, FormatAmount(r.VATBase3))
	add(FieldVAT3, FormatAmount(r.VAT3))
	addOptional(FieldTravelServiceTotal, r.TravelServiceTotal)
	addOptional(FieldUsedGoods1, r.UsedGoods1)
	addOptional(FieldUsedGoods2, r.UsedGoods2)
	addOptional(FieldUsedGoods3, r.UsedGoods3)
	addOptional(FieldPendingSettlement, r.PendingSettlement)
	addOptional(FieldSettled, r.Settled)
	add(FieldRegime, strconv.Itoa(int(r.Regime)))

	return body, nil
}

// RenderControlCodeInput returns the pipe-joined string that PKP signs:
// taxId|premisesId|cashRegisterId|receiptSerial|saleTimestamp|total.
func (r *Receipt) RenderControlCodeInput() ([]byte, error) {
	if err := r.validateMandatory(); err != nil {
		return nil, err
	}
	parts := []string{
		r.TaxID,
		r.PremisesID,
		r.CashRegisterID,
		r.ReceiptSerial,
		FormatTimestamp(r.SaleTimestamp),
		FormatAmount(r.TotalAmount.Decimal),
	}
	return []byte(strings.Join(parts, "|")), nil
}
