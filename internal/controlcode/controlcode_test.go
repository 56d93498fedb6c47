package controlcode

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eet/internal/receipt"
	dErrors "eet/pkg/domain-errors"
	"eet/pkg/testutil"
)

var bkpPattern = regexp.MustCompile(`^[0-9a-f]{8}(-[0-9a-f]{8}){4}$`)

func sampleReceipt() *receipt.Receipt {
	r := receipt.New()
	r.MessageUUID = "b3a09b52-7c87-4014-a496-4c7a53cf9125"
	r.TaxID = "CZ1212121218"
	r.PremisesID = "273"
	r.CashRegisterID = "1"
	r.ReceiptSerial = "68"
	r.SaleTimestamp = time.Date(2016, 12, 1, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	r.TotalAmount = receipt.Amount(decimal.NewFromInt(546))
	return r
}

func TestCompute(t *testing.T) {
	id := testutil.SigningIdentity(t)
	r := sampleReceipt()

	codes, err := Compute(r, id.Key)
	require.NoError(t, err)

	t.Run("pkp verifies against the control-code input", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(codes.PKP)
		require.NoError(t, err)
		assert.Equal(t, codes.PKPRaw, raw)

		input, err := r.RenderControlCodeInput()
		require.NoError(t, err)
		digest := sha256.Sum256(input)
		assert.NoError(t, rsa.VerifyPKCS1v15(&id.Key.PublicKey, crypto.SHA256, digest[:], raw))
	})

	t.Run("bkp is grouped sha1 of raw pkp", func(t *testing.T) {
		assert.Regexp(t, bkpPattern, codes.BKP)
		sum := sha1.Sum(codes.PKPRaw) //nolint:gosec
		assert.Equal(t, hex.EncodeToString(sum[:]), strings.ReplaceAll(codes.BKP, "-", ""))
	})

	t.Run("deterministic", func(t *testing.T) {
		again, err := Compute(r, id.Key)
		require.NoError(t, err)
		assert.Equal(t, codes, again)
	})

	t.Run("different total gives different codes", func(t *testing.T) {
		other := sampleReceipt()
		other.TotalAmount = receipt.Amount(decimal.NewFromInt(547))
		changed, err := Compute(other, id.Key)
		require.NoError(t, err)
		assert.NotEqual(t, codes.PKP, changed.PKP)
		assert.NotEqual(t, codes.BKP, changed.BKP)
	})
}

func TestComputeErrors(t *testing.T) {
	t.Run("nil key", func(t *testing.T) {
		_, err := Compute(sampleReceipt(), nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSigning))
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := Compute(sampleReceipt(), &rsa.PrivateKey{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSigning))
	})

	t.Run("missing mandatory field", func(t *testing.T) {
		r := sampleReceipt()
		r.ReceiptSerial = ""
		_, err := Compute(r, testutil.SigningIdentity(t).Key)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingRequiredField))
	})
}

func TestFormatBKP(t *testing.T) {
	bkp := FormatBKP([]byte("abc"))
	// sha1("abc") = a9993e364706816aba3e25717850c26c9cd0d89d
	assert.Equal(t, "a9993e36-4706816a-ba3e2571-7850c26c-9cd0d89d", bkp)
}
