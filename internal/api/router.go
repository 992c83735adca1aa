package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/api/middleware"
	"github.com/example/marketplace/internal/auth"
	"github.com/example/marketplace/internal/metrics"
)

type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
	// Metrics and Gatherer are optional; without them no /metrics route is mounted.
	Metrics  *metrics.ServerMetrics
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	authn := middleware.AuthMiddleware(cfg.JWTService)
	admin := middleware.RequireRole(auth.RoleAdmin)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.AuthHandlers.Register)
			r.Post("/login", cfg.AuthHandlers.Login)
			r.Post("/refresh", cfg.AuthHandlers.Refresh)
			r.With(middleware.OptionalAuthMiddleware(cfg.JWTService)).Post("/logout", cfg.AuthHandlers.Logout)
			r.With(authn).Get("/me", cfg.AuthHandlers.Me)
			r.With(authn).Post("/password", cfg.AuthHandlers.ChangePassword)
		})

		// Storefront
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthMiddleware(cfg.JWTService))
			r.Get("/products", h.ListProducts)
			r.Get("/products/{productID}", h.GetProduct)
			r.Get("/products/{productID}/inventory", h.GetInventory)
			r.Get("/products/{productID}/reviews", h.ListProductReviews)
			r.Get("/categories", h.ListCategories)
			r.Get("/categories/{categoryID}", h.GetCategory)
			r.Get("/vendors", h.ListVendors)
			r.Get("/vendors/{vendorID}", h.GetVendor)
		})

		// Customer
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Post("/reviews", h.SubmitReview)
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListMyOrders)
				r.Post("/", h.PlaceOrders)
				r.Get("/{orderID}", h.GetMyOrder)
				r.Post("/{orderID}/lines", h.AddOrderLine)
				r.Patch("/{orderID}/lines/{lineID}", h.UpdateOrderLine)
				r.Delete("/{orderID}/lines/{lineID}", h.RemoveOrderLine)
				r.Post("/{orderID}/confirm", h.ConfirmMyOrder)
				r.Post("/{orderID}/cancel", h.CancelMyOrder)
			})
		})

		// Vendor portal
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Post("/vendors", h.RegisterVendor)
			r.Route("/vendor", func(r chi.Router) {
				r.Get("/", h.GetMyVendor)
				r.Put("/profile", h.UpdateMyVendorProfile)
				r.Post("/submit", h.SubmitMyVendor)
				r.Get("/dashboard", h.MyDashboard)
				r.Get("/products", h.ListMyProducts)
				r.Post("/products", h.CreateMyProduct)
				r.Put("/products/{productID}", h.UpdateMyProduct)
				r.Put("/products/{productID}/category", h.AssignMyProductCategory)
				r.Post("/products/{productID}/stock", h.AdjustMyStock)
				r.Post("/products/{productID}/{action}", h.ChangeMyProductState)
				r.Get("/orders", h.ListMyVendorOrders)
				r.Post("/orders/{orderID}/{action}", h.TransitionMyVendorOrder)
				r.Get("/commissions", h.ListMyCommissions)
				r.Get("/payouts", h.ListMyPayouts)
			})
		})

		// Back office
		r.Route("/admin", func(r chi.Router) {
			r.Use(authn, admin)
			r.Get("/stats", h.MarketplaceStats)

			r.Get("/users", cfg.AuthHandlers.ListUsers)
			r.Put("/users/{userID}/role", cfg.AuthHandlers.ChangeUserRole)
			r.Post("/users/{userID}/{action}", cfg.AuthHandlers.SetUserStatus)

			r.Post("/vendors/{vendorID}/{action}", h.ChangeVendorState)
			r.Put("/vendors/{vendorID}/policy", h.SetVendorCommissionPolicy)
			r.Delete("/vendors/{vendorID}", h.DeleteVendor)
			r.Get("/vendors/{vendorID}/dashboard", h.VendorDashboard)

			r.Get("/products", h.ListAllProducts)
			r.Post("/products/{productID}/{action}", h.ChangeProductState)
			r.Delete("/products/{productID}", h.DeleteProduct)

			r.Post("/categories", h.CreateCategory)
			r.Put("/categories/{categoryID}", h.UpdateCategory)
			r.Delete("/categories/{categoryID}", h.DeleteCategory)

			r.Get("/orders", h.ListOrders)
			r.Post("/orders/mass-confirm", h.MassConfirm)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Put("/orders/{orderID}/shipping", h.SetShipping)
			r.Post("/orders/{orderID}/{action}", h.TransitionOrder)
			r.Get("/invoices/{invoiceID}", h.GetInvoice)

			r.Get("/commissions", h.ListCommissions)
			r.Get("/commissions/eligible", h.EligibleCommissions)
			r.Get("/commissions/{commissionID}", h.GetCommission)
			r.Post("/commissions/{commissionID}/confirm", h.ConfirmCommission)

			r.Get("/payouts", h.ListPayouts)
			r.Post("/payouts", h.CreatePayout)
			r.Get("/payouts/{payoutID}", h.GetPayout)
			r.Post("/payouts/{payoutID}/commissions", h.AddCommissionToPayout)
			r.Delete("/payouts/{payoutID}/commissions/{commissionID}", h.RemoveCommissionFromPayout)
			r.Post("/payouts/{payoutID}/confirm", h.ConfirmPayout)
			r.Post("/payouts/{payoutID}/paid", h.MarkPayoutPaid)

			r.Get("/reviews/pending", h.ListPendingReviews)
			r.Post("/reviews/{reviewID}/moderate", h.ModerateReview)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.WithContext(r.Context()).WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": chimw.GetReqID(r.Context()),
		}).Debug("request")
	})
}
