package receipt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "eet/pkg/domain-errors"
)

// Header flag keys accepted by Values besides the body field names.
const (
	FieldFirstSend    = "prvni_zaslani"
	FieldVerification = "overeni"
)

// Values is the key/value form of receipt input, keyed by wire field name.
// Values may be strings, numbers, booleans or time.Time, as decoded from JSON
// or built by hand.
type Values map[string]any

// Resolve converts the map into Fields and resolves those against defaults.
func (v Values) Resolve(d Defaults, now time.Time) (*Receipt, error) {
	f, err := v.Fields()
	if err != nil {
		return nil, err
	}
	return f.Resolve(d, now)
}

// Fields parses every key of the map. Unknown keys are rejected.
func (v Values) Fields() (Fields, error) {
	var f Fields
	for key, raw := range v {
		if raw == nil {
			continue
		}
		var err error
		switch key {
		case FieldMessageUUID:
			f.MessageUUID = text(raw)
		case FieldFirstSend:
			var b bool
			b, err = boolean(raw)
			f.IsFirstSend = &b
		case FieldVerification:
			f.IsVerificationMode, err = boolean(raw)
		case FieldTaxID:
			f.TaxID = text(raw)
		case FieldDelegatingTaxID:
			f.DelegatingTaxID = text(raw)
		case FieldPremisesID:
			f.PremisesID = text(raw)
		case FieldCashRegisterID:
			f.CashRegisterID = text(raw)
		case FieldReceiptSerial:
			f.ReceiptSerial = text(raw)
		case FieldSaleTimestamp:
			f.SaleTimestamp, err = timestamp(raw)
		case FieldTotalAmount:
			f.TotalAmount, err = optionalAmount(raw)
		case FieldExemptBase:
			f.ExemptBase, err = amount(raw)
		case FieldVATBase1:
			f.VATBase1, err = amount(raw)
		case FieldVAT1:
			f.VAT1, err = amount(raw)
		case FieldVATBase2:
			f.VATBase2, err = amount(raw)
		case FieldVAT2:
			f.VAT2, err = amount(raw)
		case FieldVATBase3:
			f.VATBase3, err = amount(raw)
		case FieldVAT3:
			f.VAT3, err = amount(raw)
		case FieldTravelServiceTotal:
			f.TravelServiceTotal, err = optionalAmount(raw)
		case FieldUsedGoods1:
			f.UsedGoods1, err = optionalAmount(raw)
		case FieldUsedGoods2:
			f.UsedGoods2, err = optionalAmount(raw)
		case FieldUsedGoods3:
			f.UsedGoods3, err = optionalAmount(raw)
		case FieldPendingSettlement:
			f.PendingSettlement, err = optionalAmount(raw)
		case FieldSettled:
			f.Settled, err = optionalAmount(raw)
		case FieldRegime:
			var n int
			n, err = strconv.Atoi(text(raw))
			regime := Regime(n)
			f.Regime = &regime
		default:
			return Fields{}, dErrors.InvalidField(key, "unknown receipt field")
		}
		if err != nil {
			return Fields{}, dErrors.InvalidField(key, err.Error())
		}
	}
	return f, nil
}

func text(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(raw)
}

func amount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	}
	return decimal.Decimal{}, fmt.Errorf("unsupported amount %T", raw)
}

func optionalAmount(raw any) (decimal.NullDecimal, error) {
	d, err := amount(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return Amount(d), nil
}

func boolean(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case json.Number:
		f, err := v.Float64()
		return f != 0, err
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	}
	return false, fmt.Errorf("unsupported flag %T", raw)
}

func timestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(TimestampLayout, s); err == nil {
			return t, nil
		}
		return time.Parse(time.RFC3339, s)
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %T", raw)
}
