/*
Package http serves the node's operational surface: the health check the
discovery registration points at, and the build information stamped into
the binary's resources.
*/
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chatfabric/chat-node/config"
	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/domain/registry"
)

const (
	statusUp   = "UP"
	statusDown = "DOWN"

	pingTimeout = time.Second
)

// Pinger is the database side of the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler answers the operational endpoints.
type Handler struct {
	logger    *slog.Logger
	build     config.BuildInformation
	fabric    bus.Client
	db        Pinger
	registrar registry.Registrar
}

func NewHandler(
	build config.BuildInformation,
	fabric bus.Client,
	db Pinger,
	registrar registry.Registrar,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger:    logger,
		build:     build,
		fabric:    fabric,
		db:        db,
		registrar: registrar,
	}
}

// Routes builds the operational router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health-check", h.healthCheck)
	r.Get("/build-info", h.buildInfo)
	return r
}

type healthReport struct {
	Status   string              `json:"status"`
	Checks   map[string]string   `json:"checks"`
	Registry model.RegistryStats `json:"registry"`
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	checks := map[string]string{
		"bus":      statusUp,
		"database": statusUp,
	}
	healthy := true

	if !h.fabric.Connected() {
		checks["bus"] = statusDown
		healthy = false
	}
	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = statusDown
		healthy = false
	}

	report := healthReport{
		Status:   statusUp,
		Checks:   checks,
		Registry: h.registrar.Stats(),
	}
	code := http.StatusOK
	if !healthy {
		report.Status = statusDown
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, report)
}

func (h *Handler) buildInfo(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.build)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("OPERATIONAL_RESPONSE_FAILED", "err", err)
	}
}

// Server runs the operational endpoints on the health port.
type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

func NewServer(addr string, handler *Handler, logger *slog.Logger) *Server {
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("OPERATIONAL_SURFACE_UP", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("OPERATIONAL_SURFACE_FAILED", "err", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
