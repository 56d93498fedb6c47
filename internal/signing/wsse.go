// Package signing wraps a registration document into a WS-Security signed
// SOAP 1.1 envelope.
//
// The envelope is built as an element tree. The Body and the security
// Timestamp are referenced from an XML-DSig SignedInfo; every digest and the
// signature itself are taken over exclusive canonical forms computed by
// goxmldsig, so the receiver's canonicalization reproduces them regardless of
// how the envelope is serialized.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"

	dErrors "eet/pkg/domain-errors"
)

const (
	nsSOAP = "http://schemas.xmlsoap.org/soap/envelope/"
	nsWSSE = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	nsWSU  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	nsDS   = "http://www.w3.org/2000/09/xmldsig#"

	algSHA256   = "http://www.w3.org/2001/04/xmlenc#sha256"
	valueX509v3 = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	encBase64   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"

	timestampLayout = "2006-01-02T15:04:05.000Z"
	defaultTTL      = 5 * time.Minute
)

// WSSESigner signs documents with the taxpayer key.
type WSSESigner struct {
	ttl   time.Duration
	now   func() time.Time
	newID func() string
	canon dsig.Canonicalizer
}

// Option configures a WSSESigner.
type Option func(*WSSESigner)

// WithTTL sets the validity window of the security timestamp.
func WithTTL(d time.Duration) Option {
	return func(s *WSSESigner) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *WSSESigner) {
		if now != nil {
			s.now = now
		}
	}
}

func NewWSSESigner(opts ...Option) *WSSESigner {
	s := &WSSESigner{
		ttl:   defaultTTL,
		now:   time.Now,
		newID: uuid.NewString,
		canon: dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign returns the complete SOAP envelope carrying document in its body.
func (s *WSSESigner) Sign(document []byte, key *rsa.PrivateKey, cert *x509.Certificate) ([]byte, error) {
	if key == nil || key.N == nil {
		return nil, dErrors.New(dErrors.CodeSigning, "signing key is not available")
	}
	if cert == nil {
		return nil, dErrors.New(dErrors.CodeSigning, "signing certificate is not available")
	}

	payload := etree.NewDocument()
	if err := payload.ReadFromBytes(document); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "parse document")
	}
	if payload.Root() == nil {
		return nil, dErrors.New(dErrors.CodeSigning, "document has no root element")
	}

	tokenID := "X509-" + s.newID()
	bodyID := "id-" + s.newID()
	tsID := "TS-" + s.newID()

	doc := etree.NewDocument()
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", nsSOAP)
	header := env.CreateElement("soap:Header")

	security := header.CreateElement("wsse:Security")
	security.CreateAttr("xmlns:wsse", nsWSSE)
	security.CreateAttr("xmlns:wsu", nsWSU)
	security.CreateAttr("soap:mustUnderstand", "1")

	token := security.CreateElement("wsse:BinarySecurityToken")
	token.CreateAttr("EncodingType", encBase64)
	token.CreateAttr("ValueType", valueX509v3)
	token.CreateAttr("wsu:Id", tokenID)
	token.SetText(base64.StdEncoding.EncodeToString(cert.Raw))

	signature := security.CreateElement("ds:Signature")
	signature.CreateAttr("xmlns:ds", nsDS)
	signature.CreateAttr("Id", "SIG-"+s.newID())

	created := s.now().UTC()
	timestamp := security.CreateElement("wsu:Timestamp")
	timestamp.CreateAttr("wsu:Id", tsID)
	timestamp.CreateElement("wsu:Created").SetText(created.Format(timestampLayout))
	timestamp.CreateElement("wsu:Expires").SetText(created.Add(s.ttl).Format(timestampLayout))

	body := env.CreateElement("soap:Body")
	body.CreateAttr("xmlns:wsu", nsWSU)
	body.CreateAttr("wsu:Id", bodyID)
	body.AddChild(payload.Root().Copy())

	signedInfo := signature.CreateElement("ds:SignedInfo")
	signedInfo.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", string(s.canon.Algorithm()))
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", dsig.RSASHA256SignatureMethod)
	for _, ref := range []struct {
		id string
		el *etree.Element
	}{{bodyID, body}, {tsID, timestamp}} {
		digest, err := s.digest(ref.el)
		if err != nil {
			return nil, err
		}
		reference := signedInfo.CreateElement("ds:Reference")
		reference.CreateAttr("URI", "#"+ref.id)
		reference.CreateElement("ds:Transforms").CreateElement("ds:Transform").
			CreateAttr("Algorithm", string(s.canon.Algorithm()))
		reference.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", algSHA256)
		reference.CreateElement("ds:DigestValue").SetText(base64.StdEncoding.EncodeToString(digest))
	}

	canonicalSignedInfo, err := s.Canonicalize(signedInfo)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonicalSignedInfo)
	value, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "sign soap message")
	}
	signature.CreateElement("ds:SignatureValue").SetText(base64.StdEncoding.EncodeToString(value))

	keyInfo := signature.CreateElement("ds:KeyInfo")
	tokenRef := keyInfo.CreateElement("wsse:SecurityTokenReference").CreateElement("wsse:Reference")
	tokenRef.CreateAttr("URI", "#"+tokenID)
	tokenRef.CreateAttr("ValueType", valueX509v3)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "serialize envelope")
	}
	return out, nil
}

// Canonicalize returns the exclusive canonical form of el with the
// namespaces it inherits from its ancestors.
func (s *WSSESigner) Canonicalize(el *etree.Element) ([]byte, error) {
	ctx, err := etreeutils.NSBuildParentContext(el)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "resolve namespaces")
	}
	detached, err := etreeutils.NSDetatch(ctx, el)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "detach element")
	}
	out, err := s.canon.Canonicalize(detached)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigning, "canonicalize")
	}
	return out, nil
}

func (s *WSSESigner) digest(el *etree.Element) ([]byte, error) {
	canonical, err := s.Canonicalize(el)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}
