// Package controlcode computes the taxpayer signature code (PKP) and the
// taxpayer security code (BKP) for a receipt.
package controlcode

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // BKP is defined as a SHA-1 digest
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"eet/internal/receipt"
	dErrors "eet/pkg/domain-errors"
)

// Codes holds both control codes of one receipt.
type Codes struct {
	// PKP is the base64 signature.
	PKP string
	// PKPRaw is the raw signature BKP is derived from.
	PKPRaw []byte
	// BKP is the dash-grouped lowercase hex SHA-1 of PKPRaw.
	BKP string
}

// Compute signs the receipt's control-code input with key.
// RSA PKCS#1 v1.5 is deterministic, so equal inputs give equal codes.
func Compute(r *receipt.Receipt, key *rsa.PrivateKey) (Codes, error) {
	if key == nil || key.N == nil {
		return Codes{}, dErrors.New(dErrors.CodeSigning, "signing key is not available")
	}
	if r == nil {
		return Codes{}, dErrors.New(dErrors.CodeInvalidInput, "receipt is required")
	}

	input, err := r.RenderControlCodeInput()
	if err != nil {
		return Codes{}, err
	}

	digest := sha256.Sum256(input)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return Codes{}, dErrors.Wrap(err, dErrors.CodeSigning, "compute pkp")
	}

	return Codes{
		PKP:    base64.StdEncoding.EncodeToString(sig),
		PKPRaw: sig,
		BKP:    FormatBKP(sig),
	}, nil
}

// FormatBKP renders the SHA-1 of raw as five dash-separated groups of eight
// lowercase hex digits.
func FormatBKP(raw []byte) string {
	sum := sha1.Sum(raw) //nolint:gosec
	h := hex.EncodeToString(sum[:])

	groups := make([]string, 0, 5)
	for i := 0; i < len(h); i += 8 {
		groups = append(groups, h[i:i+8])
	}
	return strings.Join(groups, "-")
}
