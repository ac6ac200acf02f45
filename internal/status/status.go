// Package status serves the agent's own local HTTP surface: a /health
// liveness probe, a /status endpoint with the full counter snapshot, and a
// /metrics Prometheus exposition. Routed with go-chi the way the teacher's
// sibling server binary routes its own API, reusing the response shapes the
// Rust original's agent_health module defines for /health and /status.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/buffer"
	"github.com/kaelvalen/nanonet/internal/connstate"
	"github.com/kaelvalen/nanonet/internal/counters"
)

// Server exposes the agent's local HTTP surface. Disabled entirely when the
// configured port is 0.
type Server struct {
	agentVersion string
	startedAt    time.Time
	state        *connstate.State
	counters     *counters.Counters
	buf          *buffer.Buffer
	logger       *zap.Logger

	registry *prometheus.Registry
	gauges   metricsGauges
}

type metricsGauges struct {
	framesSent          prometheus.Gauge
	commandsHandled     prometheus.Gauge
	restartCount        prometheus.Gauge
	framesDropped       prometheus.Gauge
	framesTotalBuffered prometheus.Gauge
	bufferLen           prometheus.Gauge
	connected           prometheus.Gauge
}

// New builds a Server. It does not start listening; call Run.
func New(agentVersion string, state *connstate.State, ctrs *counters.Counters, buf *buffer.Buffer, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	gauges := metricsGauges{
		framesSent:          prometheus.NewGauge(prometheus.GaugeOpts{Name: "nanonet_frames_sent", Help: "Frames successfully sent to the control plane."}),
		commandsHandled:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "nanonet_commands_handled", Help: "Commands executed to a terminal success Result."}),
		restartCount:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "nanonet_restart_count", Help: "Successful restart actions."}),
		framesDropped:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "nanonet_frames_dropped", Help: "Frames evicted from the disconnection buffer before being sent."}),
		framesTotalBuffered: prometheus.NewGauge(prometheus.GaugeOpts{Name: "nanonet_frames_total_buffered", Help: "Frames ever pushed into the disconnection buffer."}),
		bufferLen:           prometheus.NewGauge(prometheus.GaugeOpts{Name: "nanonet_buffer_length", Help: "Frames currently held in the disconnection buffer."}),
		connected:           prometheus.NewGauge(prometheus.GaugeOpts{Name: "nanonet_connected", Help: "1 if the transport is currently connected, 0 otherwise."}),
	}
	registry.MustRegister(
		gauges.framesSent, gauges.commandsHandled, gauges.restartCount,
		gauges.framesDropped, gauges.framesTotalBuffered, gauges.bufferLen, gauges.connected,
	)

	return &Server{
		agentVersion: agentVersion,
		startedAt:    time.Now(),
		state:        state,
		counters:     ctrs,
		buf:          buf,
		logger:       logger.Named("status"),
		registry:     registry,
		gauges:       gauges,
	}
}

// Run starts the local HTTP server on addr and blocks until ctx is
// cancelled, at which point it shuts down gracefully. A bind failure is
// returned immediately. cmd/agent starts Run alongside the other tasks and
// only logs such an error: the agent keeps running without the endpoint and
// does not exit non-zero.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("agent status endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status endpoint shutdown error", zap.Error(err))
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Router builds the chi router serving /health, /status, and /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", s.handleMetrics)
	return r
}

type healthResponse struct {
	Status        string `json:"status"`
	AgentVersion  string `json:"agent_version"`
	WSConnected   bool   `json:"ws_connected"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) health() healthResponse {
	connected := s.state.Connected()
	status := "degraded"
	if connected {
		status = "ok"
	}
	return healthResponse{
		Status:        status,
		AgentVersion:  s.agentVersion,
		WSConnected:   connected,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
}

type statusResponse struct {
	healthResponse
	Metrics  statusMetrics  `json:"metrics"`
	Commands statusCommands `json:"commands"`
}

type statusMetrics struct {
	Sent          uint64 `json:"sent"`
	Buffered      int    `json:"buffered"`
	Dropped       uint64 `json:"dropped"`
	TotalBuffered uint64 `json:"total_buffered"`
}

type statusCommands struct {
	Handled uint64 `json:"handled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.counters.Snapshot()
	resp := statusResponse{
		healthResponse: s.health(),
		Metrics: statusMetrics{
			Sent:          snap.FramesSent,
			Buffered:      s.buf.Len(),
			Dropped:       snap.FramesDropped,
			TotalBuffered: snap.FramesTotalBuffered,
		},
		Commands: statusCommands{Handled: snap.CommandsHandled},
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMetrics refreshes the gauges from the live counters immediately
// before delegating to promhttp, so every scrape reflects the current
// values without a background ticker.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.refreshGauges()
	promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) refreshGauges() {
	snap := s.counters.Snapshot()
	s.gauges.framesSent.Set(float64(snap.FramesSent))
	s.gauges.commandsHandled.Set(float64(snap.CommandsHandled))
	s.gauges.restartCount.Set(float64(snap.RestartCount))
	s.gauges.framesDropped.Set(float64(snap.FramesDropped))
	s.gauges.framesTotalBuffered.Set(float64(snap.FramesTotalBuffered))
	s.gauges.bufferLen.Set(float64(s.buf.Len()))
	if s.state.Connected() {
		s.gauges.connected.Set(1)
	} else {
		s.gauges.connected.Set(0)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
