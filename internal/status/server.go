// Package status exposes the engine's run report, a stop control and a
// Prometheus scrape endpoint over HTTP.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/internal/engine"
)

const (
	statusPath  = "/status"
	stopPath    = "/stop"
	metricsPath = "/metrics"
	healthPath  = "/healthz"

	shutdownTimeout = 5 * time.Second
)

// Controller is the slice of the engine the status surface needs.
type Controller interface {
	FinalReport() engine.Report
	Stop()
}

type handlerFunc func(http.ResponseWriter, *http.Request)

type statusServer struct {
	ctrl   Controller
	logger *zap.Logger
}

// NewHandler builds the HTTP handler. The registry receives the report
// gauges; pass prometheus.NewRegistry() in tests.
func NewHandler(ctrl Controller, registry *prometheus.Registry, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &statusServer{ctrl: ctrl, logger: logger}
	registry.MustRegister(newReportCollector(ctrl))

	mux := http.NewServeMux()
	mux.Handle(statusPath, methodHandlers(map[string]handlerFunc{
		http.MethodGet: s.getStatus,
	}))
	mux.Handle(stopPath, methodHandlers(map[string]handlerFunc{
		http.MethodPost: s.postStop,
	}))
	mux.Handle(healthPath, methodHandlers(map[string]handlerFunc{
		http.MethodGet: s.getHealth,
	}))
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errC := make(chan error, 1)
	go func() {
		logger.Info("status server listening", zap.String("addr", addr))
		errC <- srv.ListenAndServe()
	}()
	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *statusServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.FinalReport())
}

func (s *statusServer) postStop(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("stop requested over http", zap.String("remote", r.RemoteAddr))
	s.ctrl.Stop()
	writeJSON(w, http.StatusAccepted, s.ctrl.FinalReport())
}

func (s *statusServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	report := s.ctrl.FinalReport()
	code := http.StatusOK
	if report.State == engine.StateStopped.String() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"state": report.State})
}

func methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
