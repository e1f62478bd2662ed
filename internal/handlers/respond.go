package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ridecredit/backend/internal/middleware"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/services"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1_048_576

// decodeJSON reads exactly one JSON object into dst and runs struct
// validation. It writes the error response itself and reports false on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, validator *services.ValidationHelper, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	body["success"] = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return id, ok
}

// writeServiceError maps service errors onto HTTP statuses. Infrastructure
// failures are logged and surface as 503 with retryable set.
func writeServiceError(w http.ResponseWriter, log *logrus.Entry, err error) {
	var insufficient *services.InsufficientFundsError

	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
	case errors.Is(err, services.ErrForbidden):
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
	case services.IsNotFound(err):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.As(err, &insufficient):
		services.SendError(w, http.StatusPaymentRequired, services.ErrorResponse{
			Error: services.ErrInsufficientFunds.Error(),
			Details: map[string]string{
				"available": models.FormatCredits(insufficient.Available),
				"required":  models.FormatCredits(insufficient.Required),
				"shortfall": models.FormatCredits(insufficient.Shortfall),
			},
		})
	case errors.Is(err, services.ErrNoSeatsAvailable),
		errors.Is(err, services.ErrIdempotencyConflict),
		errors.Is(err, services.ErrBookingNotCancellable):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, services.ErrTransactionAborted):
		log.WithError(err).Warn("Request aborted")
		services.SendError(w, http.StatusServiceUnavailable, services.ErrorResponse{
			Error:     services.ErrTransactionAborted.Error(),
			Retryable: true,
		})
	case errors.Is(err, services.ErrOverridesUnavailable):
		services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
	default:
		log.WithError(err).Error("Unhandled service error")
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
