// Package soap submits signed registration messages over HTTP and decodes the
// authority's SOAP reply.
package soap

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"eet/internal/certificate"
	"eet/internal/message"
	"eet/internal/platform/metrics"
	"eet/internal/response"
	"eet/pkg/platform/circuit"
)

// SOAPAction of the registration operation.
const SOAPAction = "http://fs.mfcr.cz/eet/OdeslaniTrzby"

const (
	defaultTimeout           = 2500 * time.Millisecond
	defaultConnectionTimeout = 2 * time.Second
	maxResponseBytes         = 1 << 20
)

// Signer wraps a document into a signed SOAP envelope.
type Signer interface {
	Sign(document []byte, key *rsa.PrivateKey, cert *x509.Certificate) ([]byte, error)
}

// Config holds the endpoint binding.
type Config struct {
	Endpoint          string
	Timeout           time.Duration
	ConnectionTimeout time.Duration
}

// Client is the HTTP SOAP transport bound to one endpoint and certificate.
type Client struct {
	endpoint string
	http     *http.Client
	signer   Signer
	cert     *certificate.Certificate
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from Config.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBreaker makes submissions fail fast while the breaker is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// New binds a client to cfg and cert.
func New(cfg Config, cert *certificate.Certificate, signer Signer, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, newError(CategoryInternal, "", "endpoint is required", 0, nil)
	}
	if cert == nil || cert.PrivateKey == nil || cert.Leaf == nil {
		return nil, newError(CategoryInternal, cfg.Endpoint, "certificate is required", 0, nil)
	}
	if signer == nil {
		return nil, newError(CategoryInternal, cfg.Endpoint, "signer is required", 0, nil)
	}

	c := &Client{
		endpoint: cfg.Endpoint,
		http:     newHTTPClient(cfg),
		signer:   signer,
		cert:     cert,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	connTimeout := cfg.ConnectionTimeout
	if connTimeout <= 0 {
		connTimeout = defaultConnectionTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connTimeout
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Endpoint returns the bound endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type envelope struct {
	Body struct {
		Odpoved *response.Raw `xml:"Odpoved"`
		Fault   *fault        `xml:"Fault"`
	} `xml:"Body"`
}

type fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

// Submit signs the payload, posts it and returns the decoded reply.
func (c *Client) Submit(ctx context.Context, payload message.Payload) (*response.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(CategoryCanceled, c.endpoint, "submission abandoned", 0, err)
	}
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, newError(CategoryOutage, c.endpoint, "circuit open", 0, nil)
	}

	doc, err := message.Document(payload)
	if err != nil {
		return nil, err
	}
	signed, err := c.signer.Sign(doc, c.cert.PrivateKey, c.cert.Leaf)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(signed))
	if err != nil {
		return nil, newError(CategoryInternal, c.endpoint, "build request", 0, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", SOAPAction)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.exchangeFailed(ctx, "send request", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.exchangeFailed(ctx, "read response", resp.StatusCode, err)
	}

	var env envelope
	parseErr := xml.Unmarshal(raw, &env)

	switch {
	case parseErr == nil && env.Body.Odpoved != nil:
		c.recordSuccess(ctx)
		return env.Body.Odpoved, nil
	case parseErr == nil && env.Body.Fault != nil:
		if resp.StatusCode >= http.StatusInternalServerError {
			c.recordFailure(ctx)
		}
		return nil, newError(CategoryFault, c.endpoint,
			strings.TrimSpace(env.Body.Fault.Code+" "+env.Body.Fault.String), resp.StatusCode, nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		c.recordFailure(ctx)
		return nil, newError(CategoryOutage, c.endpoint, "unexpected status", resp.StatusCode, parseErr)
	default:
		if parseErr == nil {
			parseErr = errors.New("no Odpoved element")
		}
		return nil, newError(CategoryBadData, c.endpoint, "decode response", resp.StatusCode, parseErr)
	}
}

// exchangeFailed classifies a failed round trip. Only failures of the
// endpoint count against the breaker; a caller that gave up does not.
func (c *Client) exchangeFailed(ctx context.Context, msg string, status int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return newError(CategoryCanceled, c.endpoint, msg, status, ctxErr)
	}
	category := CategoryOutage
	if isTimeout(err) {
		category = CategoryTimeout
	}
	c.recordFailure(ctx)
	return newError(category, c.endpoint, msg, status, err)
}

func (c *Client) recordFailure(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "eet transport circuit opened", "breaker", c.breaker.Name(), "endpoint", c.endpoint)
		c.metrics.SetCircuitOpen(c.breaker.Name(), true)
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "eet transport circuit closed", "breaker", c.breaker.Name(), "endpoint", c.endpoint)
		c.metrics.SetCircuitOpen(c.breaker.Name(), false)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
