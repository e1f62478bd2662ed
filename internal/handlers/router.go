package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ridecredit/backend/internal/middleware"
	"github.com/ridecredit/backend/internal/models"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterDeps struct {
	Trips    *TripHandler
	Bookings *BookingHandler
	Accounts *AccountHandler
	Admin    *AdminHandler
	Auth     *middleware.Authenticator
	Store    Pinger
	DocsDir  string
	Timeout  time.Duration
	Logger   *logrus.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if d.Timeout > 0 {
		r.Use(chimw.Timeout(d.Timeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := d.Store.Ping(r.Context()); err != nil {
			d.Logger.WithError(err).Warn("Health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	if d.DocsDir != "" {
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
		r.Get("/openapi.yaml", middleware.StaticFileServer(d.DocsDir).ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/fares/estimate", d.Trips.EstimateFare)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Middleware)

			r.With(middleware.RequireRole(models.RoleDriver)).Post("/trips", d.Trips.CreateTrip)
			r.Get("/trips/{tripId}", d.Trips.GetTrip)
			r.Get("/trips/{tripId}/quote", d.Bookings.Quote)
			r.Post("/trips/{tripId}/bookings", d.Bookings.Confirm)

			r.Get("/bookings/{bookingId}", d.Bookings.GetBooking)
			r.Post("/bookings/{bookingId}/cancel", d.Bookings.Cancel)

			r.Get("/accounts/me/balance", d.Accounts.Balance)
			r.Get("/accounts/me/transactions", d.Accounts.Transactions)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))

				r.Post("/accounts/{userId}/adjustments", d.Admin.Adjust)
				r.Get("/accounts/{userId}/reconcile", d.Admin.Reconcile)
				r.Post("/transfers", d.Admin.Transfer)
				r.Put("/settings/commission-fee", d.Admin.SetCommissionFee)
				r.Delete("/settings/commission-fee", d.Admin.ClearCommissionFee)
			})
		})
	})

	return r
}
