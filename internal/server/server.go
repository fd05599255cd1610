// Package server assembles the HTTP surface: middleware stack, public chat
// routes, admin routes, health probes, and Prometheus metrics.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	chathandler "cortex/internal/chat/handler"
	chatservice "cortex/internal/chat/service"
	"cortex/internal/jwttoken"
	"cortex/internal/platform/health"
	rladmin "cortex/internal/ratelimit/admin"
	"cortex/pkg/middleware/auth"
	"cortex/pkg/middleware/request"
)

const (
	// DefaultRequestTimeout bounds the whole request, comfortably above the
	// 30s upstream deadline so the upstream timeout surfaces as 504, not a
	// generic cut connection.
	DefaultRequestTimeout = 45 * time.Second

	// DefaultMaxBodyBytes caps request bodies well above the 4000-rune
	// message limit plus envelope overhead.
	DefaultMaxBodyBytes = 1 << 20
)

// Config collects the dependencies the router needs.
type Config struct {
	Logger         *slog.Logger
	TokenValidator auth.TokenValidator
	ChatService    *chatservice.Service
	AdminHandler   *rladmin.Handler
	Health         *health.Handler

	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter builds the full route tree.
func NewRouter(cfg Config) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.ClientIP)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Timeout(cfg.RequestTimeout))
	r.Use(request.BodyLimit(cfg.MaxBodyBytes))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(auth.RequireAuth(cfg.TokenValidator, cfg.Logger))
		chathandler.New(cfg.ChatService, cfg.Logger).Register(r)
	})

	if cfg.AdminHandler != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(request.ContentTypeJSON)
			r.Use(auth.RequireAuth(cfg.TokenValidator, cfg.Logger))
			r.Use(auth.RequireScope(jwttoken.ScopeAdmin, cfg.Logger))
			cfg.AdminHandler.Register(r)
		})
	}

	return r
}
