package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AdminHandler exposes ledger corrections and runtime settings. Routes are
// mounted behind RequireRole(admin).
type AdminHandler struct {
	ledger    *services.LedgerService
	settings  *services.SettingsService
	validator *services.ValidationHelper
	log       *logrus.Entry
}

func NewAdminHandler(ledger *services.LedgerService, settings *services.SettingsService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		ledger:    ledger,
		settings:  settings,
		validator: services.NewValidationHelper(),
		log:       logger.WithField("component", "http"),
	}
}

type adjustmentRequest struct {
	Amount      string `json:"amount" validate:"required,credits"`
	Type        string `json:"type" validate:"omitempty,oneof=trip_purchase trip_earning transfer other trip_refund commission"`
	Description string `json:"description" validate:"required,max=500"`
}

// Adjust credits (positive amount) or debits (negative amount) a user
// @Summary Adjust balance
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body adjustmentRequest true "Adjustment"
// @Success 201 {object} object{transaction=models.CreditTransaction}
// @Failure 402 {object} services.ErrorResponse
// @Router /admin/accounts/{userId}/adjustments [post]
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	typ := models.TxOther
	if req.Type != "" {
		typ = models.CreditTransactionType(req.Type)
	}
	amount, _ := models.ParseCredits(req.Amount)

	tx, err := h.ledger.AdminAdjust(r.Context(), chi.URLParam(r, "userId"), amount, typ, req.Description)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

type transferRequest struct {
	FromUserID  string `json:"from_user_id" validate:"required"`
	ToUserID    string `json:"to_user_id" validate:"required,nefield=FromUserID"`
	Amount      string `json:"amount" validate:"required,credits"`
	Description string `json:"description" validate:"max=500"`
}

// Transfer moves credits between two users
// @Summary Transfer credits
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body transferRequest true "Transfer"
// @Success 201 {object} services.TransferResult
// @Failure 402 {object} services.ErrorResponse
// @Router /admin/transfers [post]
func (h *AdminHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	amount, _ := models.ParseCredits(req.Amount)
	res, err := h.ledger.Transfer(r.Context(), req.FromUserID, req.ToUserID, amount, req.Description)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"debit":  res.Debit,
		"credit": res.Credit,
	})
}

// Reconcile compares a cached balance with the sum of its ledger
// @Summary Reconcile account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} object{reconciliation=services.Reconciliation}
// @Router /admin/accounts/{userId}/reconcile [get]
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.Reconcile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reconciliation": rec})
}

type commissionFeeRequest struct {
	CommissionFee string `json:"commission_fee" validate:"required,credits"`
}

// SetCommissionFee overrides the configured fee until cleared
// @Summary Set commission fee
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body commissionFeeRequest true "Fee"
// @Success 200 {object} object{commission_fee=string}
// @Failure 503 {object} services.ErrorResponse
// @Router /admin/settings/commission-fee [put]
func (h *AdminHandler) SetCommissionFee(w http.ResponseWriter, r *http.Request) {
	var req commissionFeeRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	fee, _ := models.ParseCredits(req.CommissionFee)
	if err := h.settings.SetCommissionFee(r.Context(), fee); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commission_fee": models.FormatCredits(fee)})
}

// ClearCommissionFee drops the override so the configured fee applies again
// @Summary Clear commission fee override
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{commission_fee=string}
// @Router /admin/settings/commission-fee [delete]
func (h *AdminHandler) ClearCommissionFee(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.ClearCommissionFee(r.Context()); err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	fee, err := h.settings.CommissionFee(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commission_fee": models.FormatCredits(fee)})
}
