package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mosaikshop/storefront/api/controllers"
	"github.com/mosaikshop/storefront/api/middleware"
	"github.com/mosaikshop/storefront/internal/cart"
	"github.com/mosaikshop/storefront/internal/catalog"
	"github.com/mosaikshop/storefront/internal/checkout"
	"github.com/mosaikshop/storefront/internal/session"
	"github.com/mosaikshop/storefront/pkg/config"
	"github.com/mosaikshop/storefront/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	engine *cart.Engine,
	sessionManager *session.Manager,
	catalogClient *catalog.Client,
	checkoutClient *checkout.Client,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/login", controllers.SessionLogin(sessionManager, logg))
			r.Post("/register", controllers.SessionRegister(sessionManager, logg))
			r.Post("/logout", controllers.SessionLogout(sessionManager, logg))
			r.Get("/", controllers.SessionProfile(sessionManager, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(engine, logg))
			r.Delete("/", controllers.ClearCart(engine, logg))
			r.Post("/items", controllers.AddCartItem(engine, catalogClient, logg))
			r.Patch("/items/{key}", controllers.UpdateCartItem(engine, logg))
			r.Delete("/items/{key}", controllers.RemoveCartItem(engine, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(catalogClient, logg))
			r.Get("/{id}", controllers.GetProduct(catalogClient, logg))
		})

		r.Post("/checkout", controllers.Checkout(engine, checkoutClient, logg))
	})

	return r
}
