package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kimspro130/promode/pkg/metrics"
)

// NewRouter assembles the full API surface with the global middleware
// stack.
func NewRouter(cart *CartHandler, orders *OrdersHandler, payments *PaymentsHandler, m *metrics.ServerMetrics, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(AuthMiddleware)
	if m != nil {
		r.Use(MetricsMiddleware(m))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Delete("/", cart.ClearCart)
			r.Post("/items", cart.AddItem)
			r.Put("/items/{product_id}", cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cart.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orders.Create)
			r.Get("/", orders.List)
			r.Get("/{id}", orders.Get)
			r.Post("/{id}/cancel", orders.Cancel)
		})

		r.Route("/payments/pesapal", func(r chi.Router) {
			r.Post("/", payments.Initiate)
			r.Get("/callback", payments.CallbackRedirect)
			r.Post("/callback", payments.CallbackIPN)
		})
	})

	return r
}
