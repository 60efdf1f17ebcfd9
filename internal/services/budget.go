package services

import (
	"time"

	"financebackend/internal/core"
)

// BudgetEvaluator decides whether an account has exceeded its monthly budget.
// It is pure and idempotent: identical inputs always yield the identical
// decision. Once-per-period delivery of the resulting alert is the caller's
// responsibility (see jobs.BudgetCheckJob).
type BudgetEvaluator struct{}

func NewBudgetEvaluator() *BudgetEvaluator {
	return &BudgetEvaluator{}
}

// Evaluate sums the account's expense transactions inside [periodStart,
// periodEnd) and compares the fixed-point total against the budget ceiling.
// It returns (nil, false) when the account has no budget, no transactions, or
// is within budget.
func (e *BudgetEvaluator) Evaluate(acct core.Account, periodStart, periodEnd time.Time) (*core.BudgetAlert, bool) {
	if acct.Budget == nil || len(acct.Transactions) == 0 {
		return nil, false
	}

	var total int64
	for _, txn := range acct.Transactions {
		if txn.Kind != core.Expense {
			continue
		}
		if txn.Date.Before(periodStart) || !txn.Date.Before(periodEnd) {
			continue
		}
		total += txn.Amount.Cents
	}

	if total <= acct.Budget.Cents {
		return nil, false
	}

	return &core.BudgetAlert{
		AccountID:    acct.ID,
		AccountName:  acct.Name,
		OwnerID:      acct.ClerkUserID,
		Budget:       *acct.Budget,
		TotalExpense: core.Money{Cents: total},
	}, true
}

// AlertSentThisPeriod reports whether a budget alert was already delivered for
// the calendar month containing now. Per-account, per-month dedup state.
func AlertSentThisPeriod(acct core.Account, now time.Time) bool {
	if acct.BudgetAlertSentAt == nil {
		return false
	}
	sy, sm, _ := acct.BudgetAlertSentAt.UTC().Date()
	ny, nm, _ := now.UTC().Date()
	return sy == ny && sm == nm
}
