package engine

import (
	"context"
	"time"

	"eet/internal/certificate"
	"eet/internal/message"
	"eet/internal/receipt"
	"eet/internal/response"
	"eet/internal/signing"
	"eet/internal/transport/soap"
)

// Transport delivers one assembled message and returns the authority's reply.
// Implementations enforce the connection and request timeouts.
type Transport interface {
	Submit(ctx context.Context, payload message.Payload) (*response.Raw, error)
}

// TransportFactory binds a transport to the current settings and certificate.
// The engine calls it again whenever either changes.
type TransportFactory func(settings Settings, cert *certificate.Certificate) (Transport, error)

// Settings is the resolved engine configuration.
type Settings struct {
	Endpoint          string
	Timeout           time.Duration
	ConnectionTimeout time.Duration
	// SchemaReference is kept for compatibility; documents are not XSD-validated.
	SchemaReference string
	Defaults        receipt.Defaults
	WarningPolicy   response.WarningPolicy
}

// SOAPTransportFactory binds soap.Client transports signed with WS-Security.
func SOAPTransportFactory(opts ...soap.Option) TransportFactory {
	return func(s Settings, cert *certificate.Certificate) (Transport, error) {
		return soap.New(soap.Config{
			Endpoint:          s.Endpoint,
			Timeout:           s.Timeout,
			ConnectionTimeout: s.ConnectionTimeout,
		}, cert, signing.NewWSSESigner(), opts...)
	}
}
