// Package jobs runs scheduled background work against the ledger.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ridecredit/backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AccountLister enumerates the accounts to check.
type AccountLister interface {
	ListAccountIDs(ctx context.Context) ([]string, error)
}

type Report struct {
	Checked    int
	Mismatches []services.Reconciliation
}

// Reconciler periodically compares every cached balance with the sum of the
// account's ledger and reports each drift. It never repairs balances.
type Reconciler struct {
	accounts AccountLister
	ledger   *services.LedgerService
	schedule string
	cron     *cron.Cron
	log      *logrus.Entry
}

func NewReconciler(accounts AccountLister, ledger *services.LedgerService, schedule string, logger *logrus.Logger) *Reconciler {
	log := logger.WithField("component", "reconciler")
	return &Reconciler{
		accounts: accounts,
		ledger:   ledger,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log)))),
		log:      log,
	}
}

// RunOnce checks all accounts. A failure on one account is logged and the
// rest are still checked.
func (r *Reconciler) RunOnce(ctx context.Context) (*Report, error) {
	ids, err := r.accounts.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	report := &Report{}
	for _, id := range ids {
		rec, err := r.ledger.Reconcile(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			r.log.WithError(err).WithField("user_id", id).Warn("Reconciliation failed")
			continue
		}
		report.Checked++
		// LedgerService.Reconcile already logs the drift.
		if !rec.Consistent {
			report.Mismatches = append(report.Mismatches, *rec)
		}
	}

	r.log.WithFields(logrus.Fields{
		"checked":    report.Checked,
		"mismatches": len(report.Mismatches),
	}).Info("Reconciliation finished")
	return report, nil
}

// Start schedules RunOnce. An empty schedule disables the job.
func (r *Reconciler) Start() error {
	if r.schedule == "" {
		r.log.Info("Reconciliation job disabled")
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.log.WithError(err).Error("Reconciliation run failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciliation %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.log.WithField("schedule", r.schedule).Info("Scheduled reconciliation job")
	return nil
}

// Stop halts scheduling; the returned context is done once a running job
// has finished.
func (r *Reconciler) Stop() context.Context {
	return r.cron.Stop()
}
