// Package engine drives receipt registration: it holds the active certificate
// and endpoint binding, queues receipts and sends them to the authority.
package engine

import (
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"eet/internal/audit"
	"eet/internal/certificate"
	"eet/internal/journal"
	"eet/internal/platform/config"
	"eet/internal/platform/metrics"
	"eet/internal/receipt"
	"eet/internal/response"
	"eet/internal/transport/soap"
	dErrors "eet/pkg/domain-errors"
	"eet/pkg/platform/circuit"
)

// State of an Engine.
type State int

const (
	StateUnconfigured State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "unconfigured"
}

const defaultConcurrency = 4

// Engine is safe for concurrent use. Sends share the binding under a read
// lock for their whole round trip; certificate and endpoint changes wait for
// in-flight sends to finish.
type Engine struct {
	mu         sync.RWMutex
	settings   Settings
	configured bool
	cert       *certificate.Certificate
	transport  Transport

	queueMu sync.Mutex
	queue   []*receipt.Receipt

	factory     TransportFactory
	breaker     *circuit.Breaker
	logger      *slog.Logger
	metrics     *metrics.Metrics
	journal     journal.Store
	audit       audit.Emitter
	now         func() time.Time
	concurrency int
}

// New returns an unconfigured engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		concurrency: defaultConcurrency,
		settings:    Settings{WarningPolicy: response.WarningPolicyLog},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.factory == nil {
		if e.breaker == nil {
			e.breaker = circuit.New("eet-soap")
		}
		e.factory = SOAPTransportFactory(
			soap.WithBreaker(e.breaker),
			soap.WithLogger(e.logger),
			soap.WithMetrics(e.metrics),
		)
	}
	return e
}

// NewFromConfig builds a ready engine from process configuration, loading the
// configured certificate when a path is given.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, dErrors.New(dErrors.CodeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	breaker := circuit.New("eet-soap",
		circuit.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.Breaker.SuccessThreshold),
		circuit.WithCooldown(cfg.Breaker.Cooldown),
	)
	base := []Option{WithBreaker(breaker), WithConcurrency(cfg.Concurrency)}
	e := New(append(base, opts...)...)

	if settings.SchemaReference != "" {
		e.logger.Info("schema reference configured, documents are built from typed structs and not validated against it",
			"schema", settings.SchemaReference)
	}
	if err := e.Configure(settings); err != nil {
		return nil, err
	}
	if cfg.Certificate.Configured() {
		src := certificate.Source{Path: cfg.Certificate.Path, Data: cfg.Certificate.Data}
		if err := e.ChangeCertificate(src, cfg.Certificate.Password); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SettingsFromConfig resolves defaults and the warning policy from cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	defaults, err := receipt.ParseDefaults(cfg.DefaultValues)
	if err != nil {
		return Settings{}, dErrors.Wrap(err, dErrors.CodeConfig, "invalid defaultValues")
	}
	policy, err := response.ParseWarningPolicy(cfg.WarningPolicy)
	if err != nil {
		return Settings{}, dErrors.Wrap(err, dErrors.CodeConfig, "invalid warningPolicy")
	}
	return Settings{
		Endpoint:          cfg.Endpoint,
		Timeout:           cfg.Timeout,
		ConnectionTimeout: cfg.ConnectionTimeout,
		SchemaReference:   cfg.SchemaReference,
		Defaults:          defaults,
		WarningPolicy:     policy,
	}, nil
}

// State reports whether the engine can send.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.readyLocked() {
		return StateReady
	}
	return StateUnconfigured
}

// Ready and Status let the engine back a health check.
func (e *Engine) Ready() bool {
	return e.State() == StateReady
}

func (e *Engine) Status() string {
	return e.State().String()
}

func (e *Engine) readyLocked() bool {
	return e.configured && e.settings.Endpoint != "" && e.cert != nil && e.transport != nil
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// Certificate returns the active certificate, nil when none is loaded.
func (e *Engine) Certificate() *certificate.Certificate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cert
}

// Configure replaces all settings and rebinds the transport.
func (e *Engine) Configure(s Settings) error {
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	if err := validateEndpoint(s.Endpoint); err != nil {
		return err
	}
	if s.WarningPolicy == "" {
		s.WarningPolicy = response.WarningPolicyLog
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebindLocked(s, e.cert)
}

// LoadCertificate activates cert and rebinds the transport.
func (e *Engine) LoadCertificate(cert *certificate.Certificate) error {
	if cert == nil || cert.PrivateKey == nil || cert.Leaf == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "certificate with private key and leaf is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebindLocked(e.settings, cert)
}

// ChangeCertificate loads a PKCS#12 bundle from src and activates it.
// Queued receipts are left untouched; their codes are computed at send time.
func (e *Engine) ChangeCertificate(src certificate.Source, password string) error {
	cert, err := src.Load(password)
	if err != nil {
		return err
	}
	if err := e.LoadCertificate(cert); err != nil {
		return err
	}
	e.logger.Info("certificate changed", "subject", cert.Leaf.Subject.String())
	return nil
}

// ClearCertificate drops the active certificate; the engine stops being ready.
func (e *Engine) ClearCertificate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cert = nil
	e.transport = nil
}

// ChangeEndpoint points the engine at another service URL.
func (e *Engine) ChangeEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if err := validateEndpoint(endpoint); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.settings
	s.Endpoint = endpoint
	if err := e.rebindLocked(s, e.cert); err != nil {
		return err
	}
	if e.breaker != nil {
		e.breaker.Reset()
	}
	e.logger.Info("endpoint changed", "endpoint", endpoint)
	return nil
}

// ChangeDefaultValues replaces the identity defaults applied to receipts
// queued or sent from now on.
func (e *Engine) ChangeDefaultValues(taxID, premisesID, cashRegisterID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings.Defaults.TaxID = taxID
	e.settings.Defaults.PremisesID = premisesID
	e.settings.Defaults.CashRegisterID = cashRegisterID
}

// SetDefaults replaces every default value.
func (e *Engine) SetDefaults(d receipt.Defaults) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings.Defaults = d
}

func (e *Engine) rebindLocked(s Settings, cert *certificate.Certificate) error {
	var t Transport
	if s.Endpoint != "" && cert != nil {
		bound, err := e.factory(s, cert)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeConfig, "bind transport")
		}
		t = bound
	}
	e.settings = s
	e.configured = s.Endpoint != ""
	e.cert = cert
	e.transport = t
	return nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return dErrors.New(dErrors.CodeConfig, "endpoint is required")
	}
	u, err := url.ParseRequestURI(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return dErrors.New(dErrors.CodeConfig, "endpoint must be an absolute http(s) URL: "+endpoint)
	}
	return nil
}

// AddReceipt resolves src against the current defaults and appends it to the
// queue. A non-empty message uuid may be queued only once.
func (e *Engine) AddReceipt(src receipt.Source) (*receipt.Receipt, error) {
	if src == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "receipt or field map is required")
	}
	if r, ok := src.(*receipt.Receipt); ok && r == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "receipt or field map is required")
	}

	defaults := e.Settings().Defaults
	r, err := src.Resolve(defaults, e.now())
	if err != nil {
		return nil, err
	}

	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	if r.MessageUUID != "" {
		for _, q := range e.queue {
			if q.MessageUUID == r.MessageUUID {
				return nil, dErrors.New(dErrors.CodeInvalidInput, "message uuid "+r.MessageUUID+" is already queued")
			}
		}
	}
	e.queue = append(e.queue, r)
	e.metrics.SetQueueDepth(len(e.queue))
	return r, nil
}

// Pending returns the queued receipts in arrival order.
func (e *Engine) Pending() []*receipt.Receipt {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	out := make([]*receipt.Receipt, len(e.queue))
	copy(out, e.queue)
	return out
}

func (e *Engine) dequeue(r *receipt.Receipt) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	for i, q := range e.queue {
		if q == r {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
	e.metrics.SetQueueDepth(len(e.queue))
}
