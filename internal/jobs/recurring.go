package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"financebackend/internal/core"
	"financebackend/internal/services"
)

// RecurringJob materializes due recurring transactions. For each account it
// collects one plain occurrence per fired template, persists them with a
// single atomic append, and then advances each trigger's next due date.
// Only the trigger row carries recurrence metadata, so every template
// produces exactly one occurrence per due date.
type RecurringJob struct {
	store   TransactionStore
	engine  *services.RecurrenceEngine
	workers int
	now     func() time.Time
}

func NewRecurringJob(store TransactionStore, workers int) *RecurringJob {
	return &RecurringJob{
		store:   store,
		engine:  services.NewRecurrenceEngine(),
		workers: workers,
		now:     time.Now,
	}
}

func (j *RecurringJob) Name() string { return "recurrence-processing" }

func (j *RecurringJob) Run(ctx context.Context) (Report, error) {
	accounts, err := j.store.ListAccounts(ctx)
	if err != nil {
		return Report{Job: j.Name()}, fmt.Errorf("list accounts: %w", err)
	}

	asOf := j.now().UTC()
	slog.InfoContext(ctx, "Processing recurring transactions",
		"accounts", len(accounts),
		"as_of", asOf.Format("2006-01-02"))

	c := newCounter(j.Name())
	forEachAccount(ctx, accounts, j.workers, c, func(ctx context.Context, acct core.Account) (accountOutcome, error) {
		return j.processAccount(ctx, acct, asOf)
	})

	report := c.report()
	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

// triggerAdvance records the write-back needed on one fired trigger.
type triggerAdvance struct {
	txnID   string
	nextDue time.Time
}

func (j *RecurringJob) processAccount(ctx context.Context, acct core.Account, asOf time.Time) (accountOutcome, error) {
	var clones []core.Transaction
	var advances []triggerAdvance

	for _, txn := range acct.Transactions {
		// Duplicate guard: a trigger materialized earlier today stays quiet
		// until its advanced due date comes around.
		if txn.IsRecurring && services.ProcessedOn(txn, asOf) {
			continue
		}

		res, err := j.engine.Advance(txn, asOf)
		if err != nil {
			if errors.Is(err, core.ErrValidation) {
				// Malformed recurrence data skips the one item only.
				slog.WarnContext(ctx, "Skipping malformed recurring transaction",
					"account_id", acct.ID,
					"transaction_id", txn.ID,
					"error", err)
				continue
			}
			return outcomeFailed, err
		}
		if res == nil {
			continue
		}

		slog.InfoContext(ctx, "Recurring transaction triggered",
			"account_id", acct.ID,
			"transaction_id", txn.ID,
			"description", txn.Description,
			"interval", txn.RecurringInterval,
			"next_due", res.NextDue.Format("2006-01-02"))

		clones = append(clones, res.Clone)
		advances = append(advances, triggerAdvance{txnID: txn.ID, nextDue: res.NextDue})
	}

	if len(clones) == 0 {
		return outcomeSkipped, nil
	}

	// One atomic append per account per run.
	n, err := j.store.AppendTransactions(ctx, acct.ID, clones)
	if err != nil {
		return outcomeFailed, fmt.Errorf("append transactions: %w", err)
	}

	for _, adv := range advances {
		if err := j.store.AdvanceRecurringTrigger(ctx, acct.ID, adv.txnID, adv.nextDue, asOf); err != nil {
			// The occurrence is already persisted; a trigger left unadvanced
			// re-fires on a later pass of the same day.
			slog.ErrorContext(ctx, "Failed to advance recurring trigger",
				"account_id", acct.ID,
				"transaction_id", adv.txnID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "New recurring transactions added",
		"account_id", acct.ID,
		"account", acct.Name,
		"count", n)
	return outcomeProcessed, nil
}
