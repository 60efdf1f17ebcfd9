package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"financebackend/internal/core"
	"financebackend/internal/services"
)

// BudgetCheckJob walks every account once per tick, evaluates this month's
// expense total against the account budget, and emails the owner when the
// ceiling is exceeded. Alerts are delivered at most once per account per
// calendar month.
type BudgetCheckJob struct {
	store     TransactionStore
	notifier  Notifier
	evaluator *services.BudgetEvaluator
	workers   int
	now       func() time.Time
}

func NewBudgetCheckJob(store TransactionStore, notifier Notifier, workers int) *BudgetCheckJob {
	return &BudgetCheckJob{
		store:     store,
		notifier:  notifier,
		evaluator: services.NewBudgetEvaluator(),
		workers:   workers,
		now:       time.Now,
	}
}

func (j *BudgetCheckJob) Name() string { return "budget-check" }

func (j *BudgetCheckJob) Run(ctx context.Context) (Report, error) {
	accounts, err := j.store.ListAccounts(ctx)
	if err != nil {
		return Report{Job: j.Name()}, fmt.Errorf("list accounts: %w", err)
	}

	now := j.now().UTC()
	periodStart, periodEnd := core.MonthWindow(now)
	slog.InfoContext(ctx, "Running budget check",
		"accounts", len(accounts),
		"period_start", periodStart.Format("2006-01-02"))

	c := newCounter(j.Name())
	forEachAccount(ctx, accounts, j.workers, c, func(ctx context.Context, acct core.Account) (accountOutcome, error) {
		return j.checkAccount(ctx, acct, periodStart, periodEnd, now)
	})

	report := c.report()
	slog.InfoContext(ctx, "Budget check complete",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

func (j *BudgetCheckJob) checkAccount(ctx context.Context, acct core.Account, periodStart, periodEnd, now time.Time) (accountOutcome, error) {
	alert, ok := j.evaluator.Evaluate(acct, periodStart, periodEnd)
	if !ok {
		return outcomeSkipped, nil
	}

	if services.AlertSentThisPeriod(acct, now) {
		slog.DebugContext(ctx, "Budget alert already sent this month",
			"account_id", acct.ID,
			"sent_at", acct.BudgetAlertSentAt)
		return outcomeSkipped, nil
	}

	owner, err := j.store.FindOwner(ctx, alert.OwnerID)
	if err != nil {
		// Missing owner is a non-fatal skip, not a batch abort.
		slog.WarnContext(ctx, "No owner found for account, skipping alert",
			"account_id", acct.ID,
			"owner_id", alert.OwnerID,
			"error", err)
		return outcomeSkipped, nil
	}

	body := budgetAlertBody(owner.Name, alert)
	if err := j.notifier.Send(ctx, owner.Email, "Monthly Budget Exceeded Alert", body); err != nil {
		return outcomeFailed, fmt.Errorf("send budget alert: %w", err)
	}

	if err := j.store.MarkBudgetAlertSent(ctx, acct.ID, now); err != nil {
		// The email went out; a failed dedup stamp only risks one extra
		// alert next tick.
		slog.ErrorContext(ctx, "Failed to record budget alert timestamp",
			"account_id", acct.ID,
			"error", err)
	}

	slog.InfoContext(ctx, "Budget alert sent",
		"account_id", acct.ID,
		"account", alert.AccountName,
		"budget", alert.Budget.String(),
		"total_expense", alert.TotalExpense.String(),
		"to", owner.Email)
	return outcomeProcessed, nil
}

func budgetAlertBody(ownerName string, alert *core.BudgetAlert) string {
	return fmt.Sprintf(`Hi %s,

Your account '%s' has exceeded its budget for this month.

Monthly Budget: %s
Total Expenses (this month): %s

Please review your recent transactions.

Regards,
Finance Bot
`, ownerName, alert.AccountName, alert.Budget, alert.TotalExpense)
}
