// internal/monitoring/server.go - stats and metrics HTTP server
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/utils"
)

var serverLogger = utils.NewComponentLogger("stats-server")

// StatsServer serves read-only rotation state over HTTP: pool stats,
// per-proxy counters, circuit breaker states, and Prometheus metrics.
// Every payload is a snapshot copy; live structures are never exposed.
type StatsServer struct {
	rotator *proxy.Rotator
	metrics *MetricsManager
	server  *http.Server
}

// NewStatsServer wires the routes. The metrics manager may be nil, in
// which case the /metrics endpoint is absent.
func NewStatsServer(addr string, rotator *proxy.Rotator, metrics *MetricsManager) *StatsServer {
	s := &StatsServer{
		rotator: rotator,
		metrics: metrics,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/proxies", s.handleProxies).Methods(http.MethodGet)
	router.HandleFunc("/circuits", s.handleCircuits).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *StatsServer) Start() error {
	serverLogger.Infof("stats server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("stats server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *StatsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *StatsServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *StatsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.rotator.GetPoolStats()
	status := "ok"
	code := http.StatusOK
	if stats.TotalProxies == 0 || stats.HealthyProxies == 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":          status,
		"total_proxies":   stats.TotalProxies,
		"healthy_proxies": stats.HealthyProxies,
	})
}

func (s *StatsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.rotator.GetPoolStats()
	if s.metrics != nil {
		s.metrics.UpdatePoolGauges(stats, s.rotator.GetCircuitBreakerStates())
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *StatsServer) handleProxies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rotator.Proxies())
}

func (s *StatsServer) handleCircuits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rotator.GetCircuitBreakerStates())
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		serverLogger.Errorf("encoding response: %v", err)
	}
}
