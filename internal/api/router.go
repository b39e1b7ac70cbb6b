package api

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subscription-intake/internal/common/logger"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Turns          TurnHandler
	Identifier     Identifier
	Checks         map[string]ReadinessCheck
	AllowedOrigins []string
	MaxBodyBytes   int64
	Version        string
	Stateless      bool
	TrustedProxies []netip.Prefix // peers whose forwarding headers are honored
	Logger         logger.Logger
}

// NewRouter builds the chi router for the intake service.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(cfg.TrustedProxies))
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(CORS(cfg.AllowedOrigins))

	mountOps(r, cfg.Checks, map[string]interface{}{
		"status":    "healthy",
		"version":   cfg.Version,
		"stateless": cfg.Stateless,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Identity(cfg.Identifier, cfg.Logger))
		r.Method(http.MethodPost, "/chat", NewChatHandler(cfg.Turns, cfg.MaxBodyBytes, cfg.Logger))
	})

	return r
}

// NewOpsRouter serves only /health, /ready and /metrics, for processes without the chat API.
func NewOpsRouter(checks map[string]ReadinessCheck, version string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	mountOps(r, checks, map[string]interface{}{"status": "healthy", "version": version})
	return r
}

func mountOps(r chi.Router, checks map[string]ReadinessCheck, health map[string]interface{}) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, health)
	})
	r.Get("/ready", readyHandler(checks))
	r.Handle("/metrics", promhttp.Handler())
}

func readyHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeJSON(w, status, map[string]interface{}{"status": state, "checks": results})
	}
}
