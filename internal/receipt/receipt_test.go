package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eet/pkg/domain-errors"
)

var prague = time.FixedZone("CET", 3600)

func sampleReceipt() *Receipt {
	r := New()
	r.MessageUUID = "b3a09b52-7c87-4014-a496-4c7a53cf9125"
	r.TaxID = "CZ1212121218"
	r.PremisesID = "273"
	r.CashRegisterID = "1"
	r.ReceiptSerial = "68"
	r.SaleTimestamp = time.Date(2016, 12, 1, 10, 30, 0, 0, prague)
	r.TotalAmount = Amount(decimal.NewFromInt(546))
	return r
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"546", "546.00"},
		{"748.5", "748.50"},
		{"0", "0.00"},
		{"1234567.891", "1234567.89"},
		{"0.005", "0.01"},
		{"-12.345", "-12.35"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFormatTimestampKeepsNumericOffset(t *testing.T) {
	ts := time.Date(2016, 12, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2016-12-01T10:30:00+00:00", FormatTimestamp(ts))
	assert.Equal(t, "2016-12-01T11:30:00+01:00", FormatTimestamp(ts.In(prague)))
}

func TestRenderHeader(t *testing.T) {
	r := sampleReceipt()
	sentAt := time.Date(2016, 12, 1, 10, 31, 5, 0, time.UTC)

	h, err := r.RenderHeaderAt(sentAt)
	require.NoError(t, err)
	assert.Equal(t, r.MessageUUID, h.UUID)
	assert.Equal(t, sentAt, h.SentAt)
	assert.True(t, h.FirstSend)
	assert.False(t, h.Verification)

	t.Run("missing uuid", func(t *testing.T) {
		r := sampleReceipt()
		r.MessageUUID = ""
		_, err := r.RenderHeader()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingRequiredField))
	})

	t.Run("malformed uuid", func(t *testing.T) {
		r := sampleReceipt()
		r.MessageUUID = "{b3a09b52-7c87-4014-a496-4c7a53cf9125}"
		_, err := r.RenderHeader()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField))
	})
}

func TestRenderBody(t *testing.T) {
	r := sampleReceipt()
	r.VATBase1 = decimal.RequireFromString("451.24")
	r.VAT1 = decimal.RequireFromString("94.76")

	body, err := r.RenderBody()
	require.NoError(t, err)

	names := make([]string, 0, len(body))
	for _, f := range body {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"dic_popl", "id_provoz", "id_pokl", "porad_cis", "dat_trzby", "celk_trzba",
		"zakl_nepodl_dph", "zakl_dan1", "dan1", "zakl_dan2", "dan2", "zakl_dan3", "dan3", "rezim",
	}, names)

	total, _ := body.Get(FieldTotalAmount)
	assert.Equal(t, "546.00", total)
	vat, _ := body.Get(FieldVAT1)
	assert.Equal(t, "94.76", vat)
	exempt, _ := body.Get(FieldExemptBase)
	assert.Equal(t, "0.00", exempt)
	ts, _ := body.Get(FieldSaleTimestamp)
	assert.Equal(t, "2016-12-01T10:30:00+01:00", ts)
	regime, _ := body.Get(FieldRegime)
	assert.Equal(t, "0", regime)
}

func TestRenderBodyOptionalFields(t *testing.T) {
	r := sampleReceipt()
	r.DelegatingTaxID = "CZ683555118"
	r.TravelServiceTotal = Amount(decimal.NewFromInt(100))
	r.Regime = RegimeSimplified

	body, err := r.RenderBody()
	require.NoError(t, err)

	delegating, ok := body.Get(FieldDelegatingTaxID)
	assert.True(t, ok)
	assert.Equal(t, "CZ683555118", delegating)
	travel, ok := body.Get(FieldTravelServiceTotal)
	assert.True(t, ok)
	assert.Equal(t, "100.00", travel)
	_, ok = body.Get(FieldUsedGoods1)
	assert.False(t, ok)
	regime, _ := body.Get(FieldRegime)
	assert.Equal(t, "1", regime)
}

func TestRenderBodyMandatoryFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(r *Receipt)
	}{
		{FieldTaxID, func(r *Receipt) { r.TaxID = "" }},
		{FieldPremisesID, func(r *Receipt) { r.PremisesID = "" }},
		{FieldCashRegisterID, func(r *Receipt) { r.CashRegisterID = "" }},
		{FieldReceiptSerial, func(r *Receipt) { r.ReceiptSerial = "" }},
		{FieldSaleTimestamp, func(r *Receipt) { r.SaleTimestamp = time.Time{} }},
		{FieldTotalAmount, func(r *Receipt) { r.TotalAmount = decimal.NullDecimal{} }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			r := sampleReceipt()
			tt.mutate(r)

			_, err := r.RenderBody()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingRequiredField))
			assert.Equal(t, 701, dErrors.NumberOf(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestRenderBodyZeroTotalIsValid(t *testing.T) {
	r := sampleReceipt()
	r.TotalAmount = Amount(decimal.Zero)

	body, err := r.RenderBody()
	require.NoError(t, err)
	total, _ := body.Get(FieldTotalAmount)
	assert.Equal(t, "0.00", total)
}

func TestRenderBodyRejectsBadSerial(t *testing.T) {
	for _, serial := range []string{"has space", strings.Repeat("9", 21), "č1"} {
		r := sampleReceipt()
		r.ReceiptSerial = serial
		_, err := r.RenderBody()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField), serial)
	}
}

func TestRenderBodyRejectsMalformedIdentity(t *testing.T) {
	tests := []struct {
		field string
		set   func(r *Receipt)
	}{
		{FieldTaxID, func(r *Receipt) { r.TaxID = "1212121218" }},
		{FieldTaxID, func(r *Receipt) { r.TaxID = `CZ12121212">` }},
		{FieldDelegatingTaxID, func(r *Receipt) { r.DelegatingTaxID = "CZ123" }},
		{FieldPremisesID, func(r *Receipt) { r.PremisesID = "0" }},
		{FieldPremisesID, func(r *Receipt) { r.PremisesID = "1234567" }},
		{FieldPremisesID, func(r *Receipt) { r.PremisesID = `27"3` }},
		{FieldCashRegisterID, func(r *Receipt) { r.CashRegisterID = "a>b" }},
		{FieldCashRegisterID, func(r *Receipt) { r.CashRegisterID = strings.Repeat("1", 21) }},
	}
	for _, tt := range tests {
		r := sampleReceipt()
		tt.set(r)

		_, err := r.RenderBody()
		require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField), "%s: %v", tt.field, err)
		var de *dErrors.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, tt.field, de.Field)

		_, err = r.RenderControlCodeInput()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField), tt.field)
	}

	r := sampleReceipt()
	r.CashRegisterID = "Pokladna 1/A"
	_, err := r.RenderBody()
	assert.NoError(t, err, "spaces are allowed in the register id")
}

func TestRenderControlCodeInput(t *testing.T) {
	r := sampleReceipt()

	in, err := r.RenderControlCodeInput()
	require.NoError(t, err)
	assert.Equal(t, "CZ1212121218|273|1|68|2016-12-01T10:30:00+01:00|546.00", string(in))

	r.TotalAmount = decimal.NullDecimal{}
	_, err = r.RenderControlCodeInput()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingRequiredField))
}

func TestFieldsResolveMergesDefaults(t *testing.T) {
	simplified := RegimeSimplified
	defaults := Defaults{TaxID: "CZ1212121218", PremisesID: "273", CashRegisterID: "1", Regime: &simplified}
	now := time.Date(2016, 12, 1, 12, 0, 0, 0, prague)

	r, err := Fields{
		MessageUUID:    "b3a09b52-7c87-4014-a496-4c7a53cf9126",
		CashRegisterID: "2",
		ReceiptSerial:  "69",
		TotalAmount:    Amount(decimal.NewFromInt(748)),
	}.Resolve(defaults, now)
	require.NoError(t, err)

	assert.Equal(t, "CZ1212121218", r.TaxID)
	assert.Equal(t, "273", r.PremisesID)
	assert.Equal(t, "2", r.CashRegisterID, "explicit input wins over defaults")
	assert.Equal(t, now, r.SaleTimestamp)
	assert.Equal(t, RegimeSimplified, r.Regime)
	assert.True(t, r.IsFirstSend)
}

func TestReceiptResolveKeepsIdentity(t *testing.T) {
	r := sampleReceipt()
	r.TaxID = ""

	got, err := r.Resolve(Defaults{TaxID: "CZ00000019"}, time.Now())
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.Equal(t, "CZ00000019", r.TaxID)
	assert.Equal(t, time.Date(2016, 12, 1, 10, 30, 0, 0, prague), r.SaleTimestamp)
}

func TestParseDefaults(t *testing.T) {
	d, err := ParseDefaults(map[string]string{
		"dic_popl":  "CZ1212121218",
		"id_provoz": "273",
		"id_pokl":   "1",
		"rezim":     "0",
	})
	require.NoError(t, err)
	assert.Equal(t, "CZ1212121218", d.TaxID)
	assert.Equal(t, "273", d.PremisesID)
	assert.Equal(t, "1", d.CashRegisterID)
	require.NotNil(t, d.Regime)
	assert.Equal(t, RegimeRegular, *d.Regime)

	_, err = ParseDefaults(map[string]string{"porad_cis": "10", "dat_trzby": "2016-12-01T10:30:00+01:00"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseDefaults(map[string]string{"dan1": "ten"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField))

	_, err = ParseDefaults(map[string]string{"rezim": "7"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField))
}

func TestMonetaryDefaults(t *testing.T) {
	d, err := ParseDefaults(map[string]string{
		"id_pokl":    "1",
		"zakl_dan1":  "100",
		"dan1":       "21",
		"cest_sluz":  "0",
		"CERP_ZUCT":  "5.5",
	})
	require.NoError(t, err)
	assert.Len(t, d.Amounts, 4)

	r := sampleReceipt()
	r.VAT1 = decimal.NewFromInt(15)
	r.Settled = Amount(decimal.NewFromInt(9))
	_, err = r.Resolve(d, time.Now())
	require.NoError(t, err)

	body, err := r.RenderBody()
	require.NoError(t, err)
	get := func(name string) string {
		v, _ := body.Get(name)
		return v
	}
	assert.Equal(t, "100.00", get(FieldVATBase1), "zero VAT base takes the default")
	assert.Equal(t, "15.00", get(FieldVAT1), "explicit VAT wins")
	assert.Equal(t, "0.00", get(FieldTravelServiceTotal), "unset optional amount takes the default")
	assert.Equal(t, "9.00", get(FieldSettled), "explicit optional amount wins")
	_, ok := body.Get(FieldUsedGoods1)
	assert.False(t, ok, "no default, still omitted")
}
