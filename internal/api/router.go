package api

import (
	"net/http"
	"time"

	"github.com/example/furniture-market/internal/api/middleware"
	"github.com/example/furniture-market/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Handlers       *Handlers
	JWTService     *auth.JWTService
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.Health)
	r.Post("/order/calculate-shipping", h.CalculateShipping)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTService))

		r.Get("/cart", h.GetCart)
		r.Post("/cart", h.AddToCart)
		r.Put("/cart/{productID}", h.UpdateCartItem)
		r.Delete("/cart/{productID}", h.RemoveFromCart)
		r.Delete("/cart", h.ClearCart)

		r.Post("/order", h.PlaceOrder)
		r.Get("/order/{orderID}", h.GetOrder)
	})

	return otelhttp.NewHandler(r, "furniture-market-api")
}
