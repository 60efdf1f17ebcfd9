package services

import (
	"testing"
	"time"

	"financebackend/internal/core"
)

func expenseOn(date time.Time, cents int64) core.Transaction {
	return core.Transaction{Kind: core.Expense, Amount: core.Money{Cents: cents}, Date: date, Category: "misc"}
}

func TestEvaluateNoBudgetNeverAlerts(t *testing.T) {
	evaluator := NewBudgetEvaluator()
	start, end := core.MonthWindow(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))

	acct := core.Account{
		ID:   1,
		Name: "Main",
		Transactions: []core.Transaction{
			expenseOn(start.AddDate(0, 0, 3), 1_000_000),
		},
	}
	if alert, ok := evaluator.Evaluate(acct, start, end); ok || alert != nil {
		t.Errorf("Evaluate() = %+v, %v; want no alert without a budget", alert, ok)
	}
}

func TestEvaluateNoTransactions(t *testing.T) {
	evaluator := NewBudgetEvaluator()
	start, end := core.MonthWindow(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))

	acct := core.Account{ID: 1, Name: "Main", Budget: &core.Money{Cents: 100}}
	if _, ok := evaluator.Evaluate(acct, start, end); ok {
		t.Error("Evaluate() alerted on an account with zero transactions")
	}
}

func TestEvaluateOverBudget(t *testing.T) {
	evaluator := NewBudgetEvaluator()
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	start, end := core.MonthWindow(now)

	acct := core.Account{
		ID:          7,
		ClerkUserID: "user_42",
		Name:        "Main",
		Budget:      &core.Money{Cents: 10000}, // budget = 100
		Transactions: []core.Transaction{
			expenseOn(start.AddDate(0, 0, 2), 9000),
			expenseOn(start.AddDate(0, 0, 9), 6000),
			// Income never counts against the budget.
			{Kind: core.Income, Amount: core.Money{Cents: 50000}, Date: start.AddDate(0, 0, 1), Category: "salary"},
			// Outside the period: previous month and first instant of next month.
			expenseOn(start.AddDate(0, 0, -1), 70000),
			expenseOn(end, 70000),
		},
	}

	alert, ok := evaluator.Evaluate(acct, start, end)
	if !ok {
		t.Fatal("Evaluate() did not alert")
	}
	if alert.TotalExpense.Cents != 15000 {
		t.Errorf("TotalExpense = %d cents, want 15000", alert.TotalExpense.Cents)
	}
	if alert.Budget.Cents != 10000 {
		t.Errorf("Budget = %d cents, want 10000", alert.Budget.Cents)
	}
	if alert.AccountName != "Main" || alert.OwnerID != "user_42" || alert.AccountID != 7 {
		t.Errorf("alert identity fields = %+v", alert)
	}
}

func TestEvaluateExactlyAtBudget(t *testing.T) {
	evaluator := NewBudgetEvaluator()
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	start, end := core.MonthWindow(now)

	acct := core.Account{
		Budget:       &core.Money{Cents: 10000},
		Transactions: []core.Transaction{expenseOn(start.AddDate(0, 0, 5), 10000)},
	}
	// Alert fires on sum > budget, not >=.
	if _, ok := evaluator.Evaluate(acct, start, end); ok {
		t.Error("Evaluate() alerted when spending equals the budget")
	}
}

func TestAlertSentThisPeriod(t *testing.T) {
	now := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		sentAt *time.Time
		want   bool
	}{
		{"never sent", nil, false},
		{"sent this month", timePtr(time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)), true},
		{"sent last month", timePtr(time.Date(2025, 2, 27, 8, 0, 0, 0, time.UTC)), false},
		{"sent same month last year", timePtr(time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := core.Account{BudgetAlertSentAt: tt.sentAt}
			if got := AlertSentThisPeriod(acct, now); got != tt.want {
				t.Errorf("AlertSentThisPeriod() = %v, want %v", got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
