package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/EznRB/utmify-hooks/internal/deadletter"
	"github.com/EznRB/utmify-hooks/internal/delivery"
	"github.com/EznRB/utmify-hooks/internal/dispatch"
	"github.com/EznRB/utmify-hooks/internal/endpoint"
	"github.com/EznRB/utmify-hooks/internal/event"
	"github.com/EznRB/utmify-hooks/internal/logging"
	"github.com/EznRB/utmify-hooks/internal/stats"
)

// Dispatcher is the slice of the dispatch service the API calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.Event) (int, error)
	TestEndpoint(ctx context.Context, tenantID, endpointID string) (dispatch.TestResult, error)
}

// DeadLetters is the operator surface over the dead-letter store.
type DeadLetters interface {
	List(ctx context.Context, tenantID string, limit int) ([]deadletter.Entry, error)
	Replay(ctx context.Context, deliveryID string) (delivery.Delivery, error)
}

// Server is the admin/ops HTTP API served by dispatchd.
type Server struct {
	router     *chi.Mux
	dispatcher Dispatcher
	endpoints  endpoint.Store
	collector  stats.Collector
	dlq        DeadLetters
	logger     *logging.Logger
}

// NewServer wires the API. health serves GET /healthz and metricsHandler
// GET /metrics; both are mounted outside the /v1 request logging.
func NewServer(dispatcher Dispatcher, endpoints endpoint.Store, collector stats.Collector,
	dlq DeadLetters, health http.HandlerFunc, metricsHandler http.Handler, logger *logging.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		dispatcher: dispatcher,
		endpoints:  endpoints,
		collector:  collector,
		dlq:        dlq,
		logger:     logger,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", health)
	s.router.Method(http.MethodGet, "/metrics", metricsHandler)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.requestLogger)
		r.Post("/events", s.handlePublishEvent)
		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/stats", s.handleGetStats)
			r.Delete("/stats", s.handleResetStats)
			r.Get("/endpoints/{endpointID}", s.handleGetEndpoint)
			r.Post("/endpoints/{endpointID}/test", s.handleTestEndpoint)
		})
		r.Get("/dlq", s.handleListDLQ)
		r.Post("/dlq/{deliveryID}/replay", s.handleReplayDLQ)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithContext(r.Context()).WithFields(map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"latency": time.Since(start).String(),
		}).Info("http request")
	})
}

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	ev.Normalize()

	n, err := s.dispatcher.Dispatch(r.Context(), ev)
	if errors.Is(err, dispatch.ErrInvalidEvent) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"eventId":    ev.ID,
		"deliveries": n,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	endpointID := r.URL.Query().Get("endpointId")

	st, err := s.collector.Stats(r.Context(), tenantID, endpointID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := s.collector.Reset(r.Context(), tenantID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.WithContext(r.Context()).WithTenant(tenantID).Info("stats reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	endpointID := chi.URLParam(r, "endpointID")

	ep, err := s.endpoints.Get(r.Context(), endpointID)
	if errors.Is(err, endpoint.ErrNotFound) || (err == nil && ep.TenantID != tenantID) {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (s *Server) handleTestEndpoint(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	endpointID := chi.URLParam(r, "endpointID")

	res, err := s.dispatcher.TestEndpoint(r.Context(), tenantID, endpointID)
	switch {
	case errors.Is(err, endpoint.ErrNotFound):
		writeError(w, http.StatusNotFound, "endpoint not found")
	case errors.Is(err, endpoint.ErrInactive):
		writeError(w, http.StatusConflict, "endpoint inactive")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantId query parameter is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := s.dlq.List(r.Context(), tenantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []deadletter.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deadLetters": entries,
		"count":       len(entries),
	})
}

func (s *Server) handleReplayDLQ(w http.ResponseWriter, r *http.Request) {
	deliveryID := chi.URLParam(r, "deliveryID")

	d, err := s.dlq.Replay(r.Context(), deliveryID)
	if errors.Is(err, deadletter.ErrNotFound) {
		writeError(w, http.StatusNotFound, "dead letter not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"deliveryId": d.DeliveryID,
		"replayOf":   deliveryID,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
