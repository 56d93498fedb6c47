package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eet/pkg/platform/httputil"
)

// New builds the operational HTTP server.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Readiness reports whether the process can do its job.
type Readiness interface {
	Ready() bool
	Status() string
}

// Registrar mounts its routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter serves /healthz, /metrics from gatherer and every registrar.
func NewRouter(ready Readiness, gatherer prometheus.Gatherer, registrars ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusOK
		if ready != nil && !ready.Ready() {
			status = http.StatusServiceUnavailable
		}
		body := map[string]string{"status": "ok"}
		if ready != nil {
			body["status"] = ready.Status()
		}
		httputil.WriteJSON(w, status, body)
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}
