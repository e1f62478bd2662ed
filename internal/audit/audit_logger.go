// Package audit writes one structured record per committed ledger change.
package audit

import (
	"context"
	"time"

	"github.com/ridecredit/backend/internal/events"
	"github.com/sirupsen/logrus"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	AccountID string    `json:"account_id"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

type AuditLogger struct {
	log *logrus.Entry
}

func NewAuditLogger(logger *logrus.Logger) *AuditLogger {
	return &AuditLogger{log: logger.WithField("component", "audit")}
}

func (a *AuditLogger) Name() string { return "audit" }

// Handle records evt. It never fails; the error return satisfies the
// notification sink contract.
func (a *AuditLogger) Handle(_ context.Context, evt events.Event) error {
	a.write(fromEvent(evt))
	return nil
}

func fromEvent(evt events.Event) AuditEvent {
	out := AuditEvent{
		Timestamp: evt.OccurredAt,
		EventType: string(evt.Type),
		EventID:   evt.ID,
		Amount:    evt.Amount.StringFixed(2),
		Status:    "SUCCESS",
	}

	switch evt.Type {
	case events.BookingConfirmed, events.BookingCancelled:
		out.AccountID = evt.RiderID
		out.Details = map[string]string{
			"booking_id":     evt.BookingID,
			"trip_id":        evt.TripID,
			"driver_id":      evt.DriverID,
			"commission_fee": evt.CommissionFee.StringFixed(2),
			"driver_payout":  evt.DriverPayout.StringFixed(2),
		}
	case events.LedgerTransfer:
		out.AccountID = evt.UserID
		out.Details = map[string]string{
			"from_account": evt.UserID,
			"to_account":   evt.CounterpartyID,
			"description":  evt.Description,
		}
	default:
		out.AccountID = evt.UserID
		out.Details = map[string]string{
			"transaction_type": evt.TransactionType,
			"description":      evt.Description,
		}
	}
	return out
}

func (a *AuditLogger) write(event AuditEvent) {
	a.log.WithFields(logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"event_id":   event.EventID,
		"account_id": event.AccountID,
		"amount":     event.Amount,
		"status":     event.Status,
		"details":    event.Details,
		"at":         event.Timestamp.Format(time.RFC3339Nano),
	}).Info("AUDIT")
}
