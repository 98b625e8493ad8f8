// Package diagapi serves the controller's diagnostic HTTP surface:
// connectivity health, prometheus metrics, and the tail of the local cycle
// journal. It is read-only and intended for the site operator's network,
// not for the door peripherals.
package diagapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/diag"
	"github.com/ostium-io/ostium/internal/ostium/service"
)

type Dependencies struct {
	Logger   *zap.Logger
	Addr     string
	Health   *service.HealthManager
	Escalate *service.EscalationTracker
	Journal  *diag.Journal
	Metrics  http.Handler
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	health     *service.HealthManager
	escalate   *service.EscalationTracker
	journal    *diag.Journal
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:   d.Logger.With(zap.String("mod", "diagapi")),
		health:   d.Health,
		escalate: d.Escalate,
		journal:  d.Journal,
	}

	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/debug/cycles", s.handleCycles)
	r.Method(http.MethodGet, "/metrics", d.Metrics)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthzPayload is the connectivity snapshot plus the current denial
// streak, so an operator can see an escalation building up remotely.
type healthzPayload struct {
	service.HealthSnapshot
	EscalationStreak int `json:"escalation_streak"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.health.Snapshot()
	status := http.StatusOK
	if !snap.LinkUp || !snap.BackendUp {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthzPayload{
		HealthSnapshot:   snap,
		EscalationStreak: s.escalate.Streak(),
	})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be 1..500")
			return
		}
		limit = n
	}

	cycles, err := s.journal.RecentCycles(r.Context(), limit)
	if err != nil {
		s.logger.Error("journal read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "journal unavailable")
		return
	}
	writeJSON(w, http.StatusOK, cycles)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("from", r.RemoteAddr),
			zap.Duration("dur", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
