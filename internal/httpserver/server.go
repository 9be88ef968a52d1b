package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vtrbr2/message-ia-bot/internal/cache"
	"github.com/Vtrbr2/message-ia-bot/internal/catalog"
	"github.com/Vtrbr2/message-ia-bot/internal/metrics"
	"github.com/Vtrbr2/message-ia-bot/internal/repo"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const statsCacheTTL = 30 * time.Second

// Store is the read-side slice of the persistence layer the API serves.
type Store interface {
	ListContacts(ctx context.Context) ([]repo.Contact, error)
	ListMessages(ctx context.Context, phone string) ([]repo.Message, error)
	ListSchedules(ctx context.Context, now time.Time) ([]repo.Schedule, error)
	Stats(ctx context.Context, now time.Time) (*repo.Stats, error)
}

// Transport reports messaging-backend connectivity.
type Transport interface {
	Status() (bool, string)
}

// Dependencies exposes collaborators to the handlers.
type Dependencies struct {
	Store     Store
	Transport Transport
	Redis     *cache.Redis
}

// Server wraps an http.Server with the dashboard read API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
}

// New creates the HTTP server listening on addr.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, deps Dependencies) *Server {
	server := &Server{
		logger:  logger.With("component", "http"),
		metrics: metricRegistry,
		deps:    deps,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /contacts", server.handleContacts)
	mux.HandleFunc("GET /messages", server.handleMessages)
	mux.HandleFunc("GET /schedules", server.handleSchedules)
	mux.HandleFunc("GET /templates", server.handleTemplates)
	mux.HandleFunc("GET /stats", server.handleStats)
	mux.HandleFunc("GET /transport-status", server.handleTransportStatus)
	mux.HandleFunc("GET /health", server.handleHealth)
	mux.HandleFunc("GET /healthz", healthzHandler)
	mux.Handle("/metrics", promhttp.Handler())

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.deps.Store.ListContacts(r.Context())
	if err != nil {
		s.fail(w, "list contacts", err)
		return
	}
	if contacts == nil {
		contacts = []repo.Contact{}
	}
	writeJSON(w, contacts)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	messages, err := s.deps.Store.ListMessages(r.Context(), phone)
	if err != nil {
		s.fail(w, "list messages", err)
		return
	}
	if messages == nil {
		messages = []repo.Message{}
	}
	writeJSON(w, messages)
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.deps.Store.ListSchedules(r.Context(), time.Now())
	if err != nil {
		s.fail(w, "list schedules", err)
		return
	}
	if schedules == nil {
		schedules = []repo.Schedule{}
	}
	writeJSON(w, schedules)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, catalog.Templates())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "stats:rollup"

	if s.deps.Redis != nil {
		var cached repo.Stats
		if hit, err := s.deps.Redis.GetJSON(r.Context(), cacheKey, &cached); err == nil && hit {
			writeJSON(w, cached)
			return
		}
	}

	stats, err := s.deps.Store.Stats(r.Context(), time.Now())
	if err != nil {
		s.fail(w, "stats", err)
		return
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.SetJSON(r.Context(), cacheKey, stats, statsCacheTTL); err != nil {
			s.logger.Debug("failed caching stats", "error", err)
		}
	}
	writeJSON(w, stats)
}

func (s *Server) handleTransportStatus(w http.ResponseWriter, r *http.Request) {
	connected, identity := s.deps.Transport.Status()
	resp := map[string]any{"connected": connected, "identity": nil}
	if identity != "" {
		resp["identity"] = identity
	}
	writeJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected, _ := s.deps.Transport.Status()
	transport := "Disconnected"
	if connected {
		transport = "Connected"
	}
	writeJSON(w, map[string]string{
		"status":    "OK",
		"transport": transport,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	s.metrics.Errors.WithLabelValues("http").Inc()
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}
