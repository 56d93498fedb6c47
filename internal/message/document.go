package message

import (
	"encoding/xml"
	"sort"

	"eet/internal/receipt"
	dErrors "eet/pkg/domain-errors"
)

// Namespace is the registration schema namespace.
const Namespace = "http://fs.mfcr.cz/eet/schema/v3"

type trzba struct {
	XMLName       xml.Name      `xml:"Trzba"`
	Xmlns         string        `xml:"xmlns,attr"`
	Hlavicka      hlavicka      `xml:"Hlavicka"`
	Data          data          `xml:"Data"`
	KontrolniKody kontrolniKody `xml:"KontrolniKody"`
}

// Attribute fields are declared in lexical order.
type hlavicka struct {
	SentAt       string `xml:"dat_odesl,attr"`
	Verification bool   `xml:"overeni,attr"`
	FirstSend    bool   `xml:"prvni_zaslani,attr"`
	UUID         string `xml:"uuid_zpravy,attr"`
}

type data struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type kontrolniKody struct {
	PKP pkpElement `xml:"pkp"`
	BKP bkpElement `xml:"bkp"`
}

type pkpElement struct {
	Cipher   string `xml:"cipher,attr"`
	Digest   string `xml:"digest,attr"`
	Encoding string `xml:"encoding,attr"`
	Value    string `xml:",chardata"`
}

type bkpElement struct {
	Digest   string `xml:"digest,attr"`
	Encoding string `xml:"encoding,attr"`
	Value    string `xml:",chardata"`
}

// Document renders the payload as the Trzba XML element with attributes
// sorted by name.
func Document(p Payload) ([]byte, error) {
	attrs := make([]xml.Attr, 0, len(p.Body))
	for _, f := range p.Body {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: f.Name}, Value: f.Value})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name.Local < attrs[j].Name.Local })

	doc := trzba{
		Xmlns: Namespace,
		Hlavicka: hlavicka{
			UUID:         p.Header.UUID,
			SentAt:       receipt.FormatTimestamp(p.Header.SentAt),
			FirstSend:    p.Header.FirstSend,
			Verification: p.Header.Verification,
		},
		Data: data{Attrs: attrs},
		KontrolniKody: kontrolniKody{
			PKP: pkpElement{
				Digest:   p.ControlCodes.PKP.Digest,
				Cipher:   p.ControlCodes.PKP.Cipher,
				Encoding: p.ControlCodes.PKP.Encoding,
				Value:    p.ControlCodes.PKP.Value,
			},
			BKP: bkpElement{
				Digest:   p.ControlCodes.BKP.Digest,
				Encoding: p.ControlCodes.BKP.Encoding,
				Value:    p.ControlCodes.BKP.Value,
			},
		},
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal registration document")
	}
	return out, nil
}

