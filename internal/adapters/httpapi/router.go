// Package httpapi exposes the optional local status API: batch
// progress for scripts and a server-sent event stream of task
// lifecycle events.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/xduvd/xduvd/internal/app"
	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/ports"
)

const defaultRequestTimeout = 30 * time.Second

type Server struct {
	logger zerolog.Logger
	bus    ports.EventBus
	// stats snapshots the running batch; nil before the batch starts.
	stats func() domain.RunStatistics
	// progress is the aggregate downloaded byte counter.
	progress *app.ByteCounter
}

func NewServer(logger zerolog.Logger, bus ports.EventBus, stats func() domain.RunStatistics, progress *app.ByteCounter) *Server {
	return &Server{logger: logger, bus: bus, stats: stats, progress: progress}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
	})

	return r
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	logger.Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}
