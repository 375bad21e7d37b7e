package debugserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asgard/openeyes/internal/guidance"
	"github.com/asgard/openeyes/internal/pipeline"
	"github.com/asgard/openeyes/internal/platform/observability"
	"github.com/asgard/openeyes/internal/snapshot"
)

// LatestDecision is the most recent pipeline decision, exposed over
// /api/state for a dashboard (or curl) to poll.
type LatestDecision struct {
	mu       sync.RWMutex
	decision pipeline.Decision
	set      bool
	at       time.Time
}

// Set records the latest decision. Safe for concurrent use with Get.
func (l *LatestDecision) Set(d pipeline.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decision = d
	l.set = true
	l.at = time.Now().UTC()
}

type stateResponse struct {
	Available   bool                  `json:"available"`
	At          time.Time             `json:"at,omitempty"`
	Instruction *guidance.Instruction `json:"instruction,omitempty"`
	Snapshot    *snapshot.Snapshot    `json:"snapshot,omitempty"`
	Emitted     bool                  `json:"emitted,omitempty"`
}

func (l *LatestDecision) response() stateResponse {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.set {
		return stateResponse{Available: false}
	}
	return stateResponse{
		Available:   true,
		At:          l.at,
		Instruction: &l.decision.Instruction,
		Snapshot:    &l.decision.Snapshot,
		Emitted:     l.decision.Emit,
	}
}

// Server is the debug HTTP surface: metrics, latest-state, and a
// WebSocket stream for live dashboards.
type Server struct {
	Hub     *Hub
	latest  *LatestDecision
	handler http.Handler
}

// NewServer builds the chi router and returns a ready-to-serve Server.
func NewServer() *Server {
	s := &Server{
		Hub:    NewHub(),
		latest: &LatestDecision{},
	}
	s.handler = s.newRouter()
	return s
}

// ObserveDecision is suitable for pipeline.WithDecisionObserver: it
// records the decision for /api/state and pushes it to connected
// dashboard clients.
func (s *Server) ObserveDecision(d pipeline.Decision) {
	s.latest.Set(d)
	s.Hub.Broadcast("decision", d)
}

func (s *Server) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(s.latest.response())
		})
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/events", s.Hub.ServeWS)
	})

	return r
}

// metricsMiddleware records every request against the HTTP request
// counters and duration histogram.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		observability.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

// ListenAndServe starts the debug HTTP server on addr. It blocks until
// the server stops or errors.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.handler)
}

// Close stops the dashboard fan-out loop.
func (s *Server) Close() {
	s.Hub.Close()
}
