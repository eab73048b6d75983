package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/maltedev/cartsmith/internal/ratelimit"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// ExtractLimiter throttles /api/products/extract per client IP; nil disables it.
	ExtractLimiter *ratelimit.KeyedLimiter
	// AccessLog enables chi's request logger.
	AccessLog bool
}

func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", UserHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireUser)

		r.Route("/products", func(r chi.Router) {
			extract := r.With()
			if cfg.ExtractLimiter != nil {
				extract = r.With(RateLimit(cfg.ExtractLimiter, h.logger))
			}
			extract.Post("/extract", h.ExtractProduct)

			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Get("/{id}", h.GetRule)
			r.Put("/{id}", h.UpdateRule)
			r.Delete("/{id}", h.DeleteRule)

			r.Get("/{id}/products", h.ListRuleProducts)
			r.Post("/{id}/products", h.AddRuleProduct)
			r.Delete("/{id}/products/{productId}", h.RemoveRuleProduct)
		})
	})

	return r
}
