package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/health"
	"miniappbot/pkg/logger"
)

// StatsSource exposes dispatcher counters.
type StatsSource interface {
	Stats() bot.Stats
}

// HealthSource exposes the latest health probe.
type HealthSource interface {
	Status() (health.Status, bool)
}

// LoopSource reports whether the event loop is consuming.
type LoopSource interface {
	Running() bool
}

// ChannelSource reports per-channel runtime state.
type ChannelSource interface {
	GetStatus() map[string]interface{}
}

type Server struct {
	addr     string
	stats    StatsSource
	health   HealthSource
	loop     LoopSource
	channels ChannelSource
	started  time.Time
	router  chi.Router
	server  *http.Server
}

// NewServer builds the status server. stats and probe may be nil.
func NewServer(addr string, stats StatsSource, probe HealthSource) *Server {
	s := &Server{
		addr:    addr,
		stats:   stats,
		health:  probe,
		started: time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// WithRuntime adds the event loop and channel state to /health. Either may
// be nil.
func (s *Server) WithRuntime(loop LoopSource, channels ChannelSource) *Server {
	s.loop = loop
	s.channels = channels
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/", s.handleRoot)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.InfoCF("server", "Starting HTTP server", map[string]interface{}{
		"addr": s.addr,
	})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("server", "HTTP server failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	logger.InfoC("server", "Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	code := http.StatusOK

	if s.health != nil {
		if status, ok := s.health.Status(); ok {
			body["checked_at"] = status.CheckedAt
			body["channels"] = status.Channels
			if !status.Healthy {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		} else {
			body["status"] = "starting"
		}
	}
	if s.channels != nil {
		body["runtime"] = s.channels.GetStatus()
	}
	if s.loop != nil {
		running := s.loop.Running()
		body["gateway_running"] = running
		if !running {
			body["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, body)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, bot.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "miniappbot gateway running\nUptime: %s\n", time.Since(s.started).Truncate(time.Second))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnCF("server", "Failed to write response", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}
