package services

import (
	"strings"
	"testing"
	"time"

	"financebackend/internal/core"
)

func TestMonthTransactions(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	acct := core.Account{
		Transactions: []core.Transaction{
			expenseOn(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 100),
			expenseOn(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC), 200),
			expenseOn(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), 300),
			expenseOn(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 400),
		},
	}

	got := MonthTransactions(acct, now)
	if len(got) != 2 {
		t.Fatalf("MonthTransactions() returned %d transactions, want 2", len(got))
	}
	if got[0].Amount.Cents != 100 || got[1].Amount.Cents != 200 {
		t.Errorf("wrong transactions selected: %+v", got)
	}
}

func TestBuildInsightPrompt(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	acct := core.Account{
		Name:   "Main",
		Budget: &core.Money{Cents: 10000},
	}
	txns := []core.Transaction{
		{Kind: core.Expense, Amount: core.Money{Cents: 2599}, Date: now, Category: "groceries", Description: "weekly shop"},
	}

	prompt := BuildInsightPrompt(acct, txns, now)
	for _, want := range []string{
		"March 2025",
		"2025-03-15 | expense | 25.99 | groceries | weekly shop",
		"monthly budget of 100.00",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
