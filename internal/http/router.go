package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/slime-shop/internal/catalog"
	"github.com/fjod/slime-shop/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Carts    CartProvider
	Catalog  catalog.Catalog
	Checkout CheckoutService
	// Orders may be nil, in which case the admin routes are not mounted.
	Orders  orders.Repository
	Metrics http.Handler
	Log     *slog.Logger

	AdminToken     string
	RequestTimeout time.Duration
	// CheckoutTimeout bounds POST /checkout, which runs every side-effect step
	// in sequence. Zero falls back to RequestTimeout.
	CheckoutTimeout time.Duration
	SecureCookies   bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = cfg.RequestTimeout
	}
	requestTimeout := middleware.Timeout(cfg.RequestTimeout)
	cartHandler := NewCartHandler(cfg.Carts, cfg.Catalog, cfg.RequestTimeout)
	productHandler := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Carts, cfg.Checkout, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(cfg.Log))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Use(requestTimeout)
			r.Get("/", productHandler.ListProducts)
			r.Get("/{id}", productHandler.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.SecureCookies))

			r.Route("/cart", func(r chi.Router) {
				r.Use(requestTimeout)
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/toggle", cartHandler.TogglePanel)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.With(requestTimeout).Get("/", checkoutHandler.Enter)
				r.With(middleware.Timeout(cfg.CheckoutTimeout)).Post("/", checkoutHandler.Submit)
			})
		})

		if cfg.Orders != nil {
			ordersHandler := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)
			r.Route("/admin/orders", func(r chi.Router) {
				r.Use(requestTimeout)
				r.Use(AdminAuthMiddleware(cfg.AdminToken))
				r.Get("/", ordersHandler.ListOrders)
				r.Get("/{id}", ordersHandler.GetOrder)
				r.Patch("/{id}", ordersHandler.UpdateStatus)
			})
		}
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	)
}
