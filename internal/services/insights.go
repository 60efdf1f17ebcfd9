package services

import (
	"fmt"
	"strings"
	"time"

	"financebackend/internal/core"
)

// MonthTransactions returns the account's transactions dated inside the
// calendar month containing now.
func MonthTransactions(acct core.Account, now time.Time) []core.Transaction {
	start, end := core.MonthWindow(now)
	var out []core.Transaction
	for _, txn := range acct.Transactions {
		if txn.Date.Before(start) || !txn.Date.Before(end) {
			continue
		}
		out = append(out, txn)
	}
	return out
}

// BuildInsightPrompt renders the text-generation prompt for the monthly
// insight email: one line per transaction plus analysis instructions.
func BuildInsightPrompt(acct core.Account, txns []core.Transaction, now time.Time) string {
	var b strings.Builder
	b.WriteString("Analyze the following bank account transactions and generate insights:\n")
	b.WriteString("- Highlight unusual or high spending.\n")
	b.WriteString("- Categorize spending.\n")
	if acct.Budget != nil {
		fmt.Fprintf(&b, "- Mention if spending exceeds the monthly budget of %s.\n", acct.Budget)
	}
	b.WriteString("- Suggest savings tips.\n\n")
	fmt.Fprintf(&b, "Only consider transactions for this month: %s\n\n", now.UTC().Format("January 2006"))
	b.WriteString("Transactions:\n")
	for _, txn := range txns {
		fmt.Fprintf(&b, "%s | %s | %s | %s | %s\n",
			txn.Date.UTC().Format("2006-01-02"), txn.Kind, txn.Amount, txn.Category, txn.Description)
	}
	return b.String()
}
