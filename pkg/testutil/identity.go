package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"
)

// Identity is a throwaway taxpayer key pair with a self-signed certificate.
type Identity struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

var (
	identityOnce sync.Once
	identity     Identity
	identityErr  error
)

// SigningIdentity returns a process-wide RSA-2048 identity. Key generation is
// slow, so every test in the binary shares the same one.
func SigningIdentity(t testing.TB) Identity {
	t.Helper()
	identityOnce.Do(func() {
		identity, identityErr = NewIdentity("CZ1212121218")
	})
	if identityErr != nil {
		t.Fatalf("generate signing identity: %v", identityErr)
	}
	return identity
}

// NewIdentity generates a fresh identity whose subject CN is the tax id.
func NewIdentity(taxID string) (Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Identity{}, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: taxID, Country: []string{"CZ"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return Identity{}, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Key: key, Cert: cert}, nil
}
