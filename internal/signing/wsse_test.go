package signing

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eet/pkg/domain-errors"
	"eet/pkg/testutil"
)

const document = `<Trzba xmlns="http://fs.mfcr.cz/eet/schema/v3"><Hlavicka uuid_zpravy="b3a09b52-7c87-4014-a496-4c7a53cf9125"></Hlavicka></Trzba>`

func parseEnvelope(t *testing.T, out []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	return doc
}

func elementByID(doc *etree.Document, id string) *etree.Element {
	for _, el := range doc.FindElements("//*") {
		if el.SelectAttrValue("wsu:Id", "") == id {
			return el
		}
	}
	return nil
}

// verify checks every reference digest and the signature value against the
// parsed envelope, the way the receiving side does.
func verify(t *testing.T, signer *WSSESigner, key *rsa.PublicKey, doc *etree.Document) {
	t.Helper()
	signedInfo := doc.FindElement("//ds:SignedInfo")
	require.NotNil(t, signedInfo)

	refs := signedInfo.FindElements("ds:Reference")
	require.Len(t, refs, 2)
	for _, ref := range refs {
		uri := ref.SelectAttrValue("URI", "")
		target := elementByID(doc, strings.TrimPrefix(uri, "#"))
		require.NotNil(t, target, uri)

		canonical, err := signer.Canonicalize(target)
		require.NoError(t, err)
		sum := sha256.Sum256(canonical)
		assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), ref.FindElement("ds:DigestValue").Text(), uri)
	}

	canonical, err := signer.Canonicalize(signedInfo)
	require.NoError(t, err)
	sig, err := base64.StdEncoding.DecodeString(doc.FindElement("//ds:SignatureValue").Text())
	require.NoError(t, err)
	sum := sha256.Sum256(canonical)
	assert.NoError(t, rsa.VerifyPKCS1v15(key, crypto.SHA256, sum[:], sig))
}

func TestSign(t *testing.T) {
	id := testutil.SigningIdentity(t)
	now := time.Date(2016, 12, 1, 10, 31, 0, 0, time.UTC)
	signer := NewWSSESigner(WithClock(func() time.Time { return now }), WithTTL(time.Minute))

	out, err := signer.Sign([]byte(document), id.Key, id.Cert)
	require.NoError(t, err)
	doc := parseEnvelope(t, out)

	t.Run("body carries the document", func(t *testing.T) {
		trzba := doc.FindElement("//soap:Body/Trzba")
		require.NotNil(t, trzba)
		assert.Equal(t, "http://fs.mfcr.cz/eet/schema/v3", trzba.SelectAttrValue("xmlns", ""))
		hlavicka := trzba.FindElement("Hlavicka")
		require.NotNil(t, hlavicka)
		assert.Equal(t, "b3a09b52-7c87-4014-a496-4c7a53cf9125", hlavicka.SelectAttrValue("uuid_zpravy", ""))
	})

	t.Run("timestamp window", func(t *testing.T) {
		assert.Equal(t, "2016-12-01T10:31:00.000Z", doc.FindElement("//wsu:Timestamp/wsu:Created").Text())
		assert.Equal(t, "2016-12-01T10:32:00.000Z", doc.FindElement("//wsu:Timestamp/wsu:Expires").Text())
	})

	t.Run("binary security token is the certificate", func(t *testing.T) {
		token := doc.FindElement("//wsse:BinarySecurityToken")
		require.NotNil(t, token)
		assert.Equal(t, base64.StdEncoding.EncodeToString(id.Cert.Raw), token.Text())

		ref := doc.FindElement("//ds:KeyInfo/wsse:SecurityTokenReference/wsse:Reference")
		require.NotNil(t, ref)
		assert.Equal(t, "#"+token.SelectAttrValue("wsu:Id", ""), ref.SelectAttrValue("URI", ""))
	})

	t.Run("signature method and transforms are exclusive c14n with rsa-sha256", func(t *testing.T) {
		assert.Equal(t, "http://www.w3.org/2001/10/xml-exc-c14n#",
			doc.FindElement("//ds:CanonicalizationMethod").SelectAttrValue("Algorithm", ""))
		assert.Equal(t, "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256",
			doc.FindElement("//ds:SignatureMethod").SelectAttrValue("Algorithm", ""))
	})

	t.Run("digests and signature verify", func(t *testing.T) {
		verify(t, signer, &id.Key.PublicKey, doc)
	})
}

func TestSignDigestsCanonicalAttributeValues(t *testing.T) {
	id := testutil.SigningIdentity(t)
	signer := NewWSSESigner()
	withQuotes := `<Trzba xmlns="http://fs.mfcr.cz/eet/schema/v3"><Data id_pokl="a&#34;b&gt;c" porad_cis="1"/></Trzba>`

	out, err := signer.Sign([]byte(withQuotes), id.Key, id.Cert)
	require.NoError(t, err)
	doc := parseEnvelope(t, out)

	body := doc.FindElement("//soap:Body")
	require.NotNil(t, body)
	canonical, err := signer.Canonicalize(body)
	require.NoError(t, err)
	assert.Contains(t, string(canonical), `<Data id_pokl="a&quot;b>c" porad_cis="1"></Data>`)

	verify(t, signer, &id.Key.PublicKey, doc)
}

func TestSignRejectsBadInput(t *testing.T) {
	id := testutil.SigningIdentity(t)
	signer := NewWSSESigner()

	_, err := signer.Sign([]byte(document), nil, id.Cert)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSigning))

	_, err = signer.Sign([]byte(document), id.Key, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSigning))

	_, err = signer.Sign([]byte(`<Trzba id="unterminated></Trzba>`), id.Key, id.Cert)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSigning))

	_, err = signer.Sign(nil, id.Key, id.Cert)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSigning))
}
