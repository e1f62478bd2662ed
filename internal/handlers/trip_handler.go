package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type TripHandler struct {
	trips     *services.TripService
	pricing   *services.PricingService
	validator *services.ValidationHelper
	log       *logrus.Entry
}

func NewTripHandler(trips *services.TripService, pricing *services.PricingService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		trips:     trips,
		pricing:   pricing,
		validator: services.NewValidationHelper(),
		log:       logger.WithField("component", "http"),
	}
}

type createTripRequest struct {
	Origin       string    `json:"origin" validate:"required,max=200"`
	Destination  string    `json:"destination" validate:"required,max=200"`
	DepartureAt  time.Time `json:"departure_at" validate:"required"`
	TotalSeats   int       `json:"total_seats" validate:"required,gt=0,lte=100"`
	PricePerSeat string    `json:"price_per_seat" validate:"required,credits"`
}

// CreateTrip publishes a trip for the calling driver
// @Summary Create trip
// @Tags Trips
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createTripRequest true "Trip"
// @Success 201 {object} object{trip=models.Trip}
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /trips [post]
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	var req createTripRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	price, _ := models.ParseCredits(req.PricePerSeat)
	trip, err := h.trips.CreateTrip(r.Context(), caller.UserID, services.CreateTripInput{
		Origin:       req.Origin,
		Destination:  req.Destination,
		DepartureAt:  req.DepartureAt,
		TotalSeats:   req.TotalSeats,
		PricePerSeat: price,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"trip": trip})
}

// GetTrip returns a trip with its current seat count
// @Summary Get trip
// @Tags Trips
// @Produce json
// @Security BearerAuth
// @Param tripId path string true "Trip ID"
// @Success 200 {object} object{trip=models.Trip}
// @Failure 404 {object} services.ErrorResponse
// @Router /trips/{tripId} [get]
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.GetTrip(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trip": trip})
}

// EstimateFare quotes a distance based fare. Nothing is charged.
// @Summary Estimate fare
// @Tags Fares
// @Produce json
// @Param distance_km query string true "Distance in kilometres"
// @Success 200 {object} object{fare=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /fares/estimate [get]
func (h *TripHandler) EstimateFare(w http.ResponseWriter, r *http.Request) {
	distance, err := decimal.NewFromString(r.URL.Query().Get("distance_km"))
	if err != nil {
		services.SendError(w, http.StatusBadRequest, services.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"distance_km": "must be a number"},
		})
		return
	}

	fare, err := h.pricing.EstimateFare(r.Context(), distance)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"distance_km": distance.String(),
		"fare":        models.FormatCredits(fare),
	})
}
