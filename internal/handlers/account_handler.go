package handlers

import (
	"net/http"
	"strconv"

	"github.com/ridecredit/backend/internal/services"
	"github.com/sirupsen/logrus"
)

type AccountHandler struct {
	ledger *services.LedgerService
	log    *logrus.Entry
}

func NewAccountHandler(ledger *services.LedgerService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{ledger: ledger, log: logger.WithField("component", "http")}
}

// Balance returns the caller's credit balance. Unknown users have zero.
// @Summary Get balance
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user_id=string,balance=string}
// @Router /accounts/me/balance [get]
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), caller.UserID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": caller.UserID,
		"balance": balance,
	})
}

// Transactions lists the caller's ledger entries, newest first
// @Summary List credit transactions
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries (default 50, max 500)"
// @Success 200 {object} object{transactions=[]models.CreditTransaction}
// @Router /accounts/me/transactions [get]
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			services.SendError(w, http.StatusBadRequest, services.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"limit": "must be a non-negative integer"},
			})
			return
		}
		limit = n
	}

	txs, err := h.ledger.History(r.Context(), caller.UserID, limit)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}
