package api

import (
	"net/http"

	"github.com/fitsnap/pipewatch/pkg/httputil"
	"github.com/fitsnap/pipewatch/pkg/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// maxEventBody caps ingested event payloads.
const maxEventBody = 64 * 1024

// Server wires the handlers, probes, and middleware into one http.Handler
type Server struct {
	router *mux.Router
}

// NewServer builds the HTTP surface: the analytics read API, event
// ingestion, health probes, and the metrics endpoint.
func NewServer(handlers *Handlers, health *observability.HealthChecker, metrics *observability.Metrics, registry *prometheus.Registry, logger *observability.Logger) *Server {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", health.Liveness).Methods("GET")
	r.HandleFunc("/readyz", health.Readiness).Methods("GET")
	r.Handle("/metrics", observability.Handler(registry)).Methods("GET")

	apiRouter := mux.NewRouter()
	handlers.RegisterRoutes(apiRouter)

	wrapped := httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.MaxBytesMiddleware(maxEventBody),
	)(metrics.InstrumentHTTP("api", apiRouter))

	r.PathPrefix("/").Handler(wrapped)

	return &Server{router: r}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
