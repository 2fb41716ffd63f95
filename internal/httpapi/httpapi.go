// Package httpapi implements the discharge-coordination control plane's
// HTTP façade: a go-chi router exposing the discharge intake
// endpoint, workflow/outcome lookups, the four cache-listing endpoints,
// the voice-provider webhook, and a /metrics mount for the Prometheus
// exposition the observability provider produces.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carebridge/dccp/internal/cache"
	"github.com/carebridge/dccp/internal/errs"
	"github.com/carebridge/dccp/internal/extractor"
	"github.com/carebridge/dccp/internal/store"
	"github.com/carebridge/dccp/internal/workflow"
)

// Server bundles the collaborators the façade's handlers close over.
type Server struct {
	engine    *workflow.Engine
	store     *store.Store
	cache     *cache.Cache
	metrics   http.Handler // observability.Provider.MetricsHandler, optional
	extractor extractor.Client

	sem chan struct{} // bounds concurrent coordinate() calls
}

// New constructs the façade. maxConcurrentCases bounds how many
// coordinate() calls run at once; 0 selects a sensible default.
func New(engine *workflow.Engine, st *store.Store, ch *cache.Cache, metricsHandler http.Handler, maxConcurrentCases int) *Server {
	if maxConcurrentCases <= 0 {
		maxConcurrentCases = 32
	}
	return &Server{
		engine:  engine,
		store:   st,
		cache:   ch,
		metrics: metricsHandler,
		sem:     make(chan struct{}, maxConcurrentCases),
	}
}

// UseExtractor attaches the optional document-extraction collaborator.
// When absent, POST /discharge/extract degrades instead of failing
// startup, since extraction credentials are not required for the rest of
// the control plane.
func (s *Server) UseExtractor(c extractor.Client) {
	s.extractor = c
}

// Router builds the chi mux with request id, recoverer, and structured
// request-logging middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/discharge", s.handleDischarge)
	r.Post("/discharge/extract", s.handleExtract)
	r.Get("/workflows", s.handleListWorkflows)
	r.Get("/workflows/{case_id}", s.handleGetWorkflow)
	r.Get("/shelters", s.handleListShelters)
	r.Get("/transport", s.handleListTransport)
	r.Get("/benefits", s.handleListBenefits)
	r.Get("/resources", s.handleListResources)
	r.Post("/shelters/{name}/availability", s.handleShelterAvailability)
	r.Post("/vapi/webhook", s.handleVoiceWebhook)
	r.Post("/workflow-events", s.handleWorkflowEvent)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Default().Info("http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

// writeJSON encodes v as the response body, or logs the encode failure;
// a JSON marshal failure on an already-computed value is an Internal bug,
// not a client error, so it's only logged, never surfaced differently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("http: encode response failed", "error", err)
	}
}

// writeError maps the error taxonomy to an HTTP status:
// ValidationError -> 400, NotFound -> 404, Internal -> 500; every other
// error is logged and returned with 200 and a populated error field.
func writeError(w http.ResponseWriter, err error) {
	var validation *errs.ValidationError
	var notFound *errs.NotFound
	var internal *errs.Internal

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &internal):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		slog.Default().Warn("http: request failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
	}
}

func parseIntQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func parseBoolQuery(r *http.Request, key string) bool {
	raw := r.URL.Query().Get(key)
	b, _ := strconv.ParseBool(raw)
	return b
}
