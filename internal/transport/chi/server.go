package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/logger"
	healthuc "github.com/kailas-cloud/hintd/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/hintd/internal/usecase/session"
)

// maxBodyBytes bounds request bodies; pages with inline frames can be large.
const maxBodyBytes = 8 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the hint session API.
type Server struct {
	sessions      *sessionuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(sessions *sessionuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		sessions: sessions,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrFrameNotFound, http.StatusNotFound, CodeFrameNotFound),
		sentinelHandler(domain.ErrTooManySessions, http.StatusTooManyRequests, CodeTooManySessions),
		sentinelHandler(domain.ErrNotStarted, http.StatusConflict, CodeNotStarted),
		sentinelHandler(domain.ErrInvalidStrategy, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidLabel, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusUnprocessableEntity, CodeInvalidDocument),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Route("/{session}", func(r chi.Router) {
			r.Use(sessionLogger)
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/start", s.Start)
			r.Post("/next", s.Next)
			r.Post("/prev", s.Prev)
			r.Post("/filter", s.Filter)
			r.Post("/select", s.Select)
			r.Post("/follow", s.Follow)
			r.Post("/clear", s.Clear)
			r.Delete("/frames/*", s.RemoveFrame)
			r.Post("/abort/*", s.Abort)
		})
	})
}

// sessionLogger tags the request logger with the session id.
func sessionLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.With(r.Context(), zap.String("session", sessionID(r)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.HTML == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "html is required")
		return
	}

	snap, err := s.sessions.Create(r.Context(), sessionuc.CreateRequest{
		HTML:      req.HTML,
		URL:       req.URL,
		Resources: req.Resources,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotToResponse(snap))
}

// GetSession handles GET /sessions/{session}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.sessions.Get(r.Context(), sessionID(r)))
}

// DeleteSession handles DELETE /sessions/{session}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), sessionID(r)); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start handles POST /sessions/{session}/start.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.sessions.Start(r.Context(), sessionID(r), sessionuc.StartRequest{
		Query:    req.Query,
		Strategy: req.Strategy,
	}))
}

// Next handles POST /sessions/{session}/next.
func (s *Server) Next(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.sessions.Next(r.Context(), sessionID(r)))
}

// Prev handles POST /sessions/{session}/prev.
func (s *Server) Prev(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.sessions.Prev(r.Context(), sessionID(r)))
}

// Filter handles POST /sessions/{session}/filter.
func (s *Server) Filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.sessions.Filter(r.Context(), sessionID(r), req.Text))
}

// Select handles POST /sessions/{session}/select.
func (s *Server) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.sessions.Select(r.Context(), sessionID(r), req.Label))
}

// Follow handles POST /sessions/{session}/follow.
func (s *Server) Follow(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.sessions.Follow(r.Context(), sessionID(r)))
}

// Clear handles POST /sessions/{session}/clear.
func (s *Server) Clear(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.sessions.Clear(r.Context(), sessionID(r)))
}

// RemoveFrame handles DELETE /sessions/{session}/frames/{frame...}.
func (s *Server) RemoveFrame(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.sessions.RemoveFrame(r.Context(), sessionID(r), frameID(r)))
}

// Abort handles POST /sessions/{session}/abort/{frame...}.
func (s *Server) Abort(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.sessions.Abort(r.Context(), sessionID(r), frameID(r)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:   string(report.Status),
		Checks:   checks,
		Sessions: report.Sessions,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// respond writes the snapshot returned by a session operation.
func (s *Server) respond(w http.ResponseWriter, r *http.Request) func(sessionuc.Snapshot, error) {
	return func(snap sessionuc.Snapshot, err error) {
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshotToResponse(snap))
	}
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "session")
}

// frameID reads a context id such as "top/0/1" from the wildcard segment.
func frameID(r *http.Request) hint.ContextID {
	return hint.ContextID(chi.URLParam(r, "*"))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSessionNotFound,
		domain.ErrFrameNotFound,
		domain.ErrTooManySessions,
		domain.ErrNotStarted,
		domain.ErrInvalidStrategy,
		domain.ErrInvalidQuery,
		domain.ErrInvalidLabel,
		domain.ErrInvalidDocument,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
