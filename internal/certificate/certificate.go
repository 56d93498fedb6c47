// Package certificate loads the taxpayer's signing identity from a PKCS#12 container.
package certificate

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"

	"golang.org/x/crypto/pkcs12"

	dErrors "eet/pkg/domain-errors"
)

// Certificate is the decoded signing identity.
type Certificate struct {
	PrivateKey *rsa.PrivateKey
	Leaf       *x509.Certificate
	// Chain holds any other certificates found in the container.
	Chain []*x509.Certificate
}

// Source names where PKCS#12 material comes from. Data wins when both are set.
type Source struct {
	Path string
	Data []byte
}

// Load decodes the source with password.
func (s Source) Load(password string) (*Certificate, error) {
	if len(s.Data) > 0 {
		return Load(s.Data, password)
	}
	if s.Path == "" {
		return nil, dErrors.New(dErrors.CodeCertificate, "certificate source is empty")
	}
	return LoadFile(s.Path, password)
}

// LoadFile reads and decodes a PKCS#12 file.
func LoadFile(path, password string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, dErrors.Wrap(err, dErrors.CodeCertificateNotFound, "certificate file not found: "+path)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeCertificate, "read certificate file")
	}
	return Load(data, password)
}

// Load decodes PKCS#12 bytes. Containers that also carry the issuing
// authority's chain are accepted; the leaf is the certificate matching the key.
func Load(data []byte, password string) (*Certificate, error) {
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeCertificate, "certificate data is empty")
	}

	key, leaf, err := pkcs12.Decode(data, password)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, dErrors.New(dErrors.CodeCertificate, "certificate key is not RSA")
		}
		return &Certificate{PrivateKey: rsaKey, Leaf: leaf}, nil
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, dErrors.Wrap(err, dErrors.CodeCertificate, "cannot import certificate: wrong password")
	}

	blocks, pemErr := pkcs12.ToPEM(data, password)
	if pemErr != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCertificate, "cannot import certificate")
	}
	return fromPEMBlocks(blocks)
}

func fromPEMBlocks(blocks []*pem.Block) (*Certificate, error) {
	out := &Certificate{}
	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			key, err := parsePrivateKey(b.Bytes)
			if err != nil {
				return nil, err
			}
			out.PrivateKey = key
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeCertificate, "parse certificate")
			}
			certs = append(certs, c)
		}
	}
	if out.PrivateKey == nil {
		return nil, dErrors.New(dErrors.CodeCertificate, "certificate container has no private key")
	}

	pub, err := x509.MarshalPKIXPublicKey(&out.PrivateKey.PublicKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCertificate, "marshal public key")
	}
	for _, c := range certs {
		if out.Leaf == nil && bytes.Equal(c.RawSubjectPublicKeyInfo, pub) {
			out.Leaf = c
			continue
		}
		out.Chain = append(out.Chain, c)
	}
	if out.Leaf == nil {
		return nil, dErrors.New(dErrors.CodeCertificate, "no certificate matches the private key")
	}
	return out, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCertificate, "parse private key")
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, dErrors.New(dErrors.CodeCertificate, "certificate key is not RSA")
	}
	return rsaKey, nil
}
