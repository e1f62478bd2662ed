package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ridecredit/backend/internal/services"
	"github.com/sirupsen/logrus"
)

// IdempotencyHeader lets a client retry a booking without paying twice.
const IdempotencyHeader = "Idempotency-Key"

type BookingHandler struct {
	bookings *services.BookingService
	log      *logrus.Entry
}

func NewBookingHandler(bookings *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		log:      logger.WithField("component", "http"),
	}
}

// Quote previews the cost of booking a seat
// @Summary Quote booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param tripId path string true "Trip ID"
// @Success 200 {object} object{quote=services.Quote}
// @Failure 402 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /trips/{tripId}/quote [get]
func (h *BookingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	quote, err := h.bookings.Quote(r.Context(), caller.UserID, chi.URLParam(r, "tripId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": quote})
}

// Confirm books a seat and pays for it in one transaction
// @Summary Confirm booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param tripId path string true "Trip ID"
// @Param Idempotency-Key header string false "Client generated retry key"
// @Success 201 {object} services.Confirmation
// @Success 200 {object} services.Confirmation "Replayed"
// @Failure 402 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /trips/{tripId}/bookings [post]
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	conf, err := h.bookings.Confirm(r.Context(), services.ConfirmRequest{
		RiderID:        caller.UserID,
		TripID:         chi.URLParam(r, "tripId"),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	status := http.StatusCreated
	if conf.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"booking":     conf.Booking,
		"new_balance": conf.NewBalance,
		"replayed":    conf.Replayed,
	})
}

// GetBooking
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} object{booking=models.Booking}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /bookings/{bookingId} [get]
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(r.Context(), chi.URLParam(r, "bookingId"), caller)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

// Cancel refunds the rider and frees the seat
// @Summary Cancel booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} services.Cancellation
// @Failure 402 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /bookings/{bookingId}/cancel [post]
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	res, err := h.bookings.Cancel(r.Context(), chi.URLParam(r, "bookingId"), caller)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking":     res.Booking,
		"refunded":    res.Refunded,
		"new_balance": res.NewBalance,
	})
}
