// Package jobs implements the periodic batch jobs: budget checking,
// recurring-transaction materialization, and monthly insight emails. Jobs
// consume narrow collaborator ports so the scheduler and tests can swap the
// SQLite store, the notifier, and the text generator for fakes.
package jobs

import (
	"context"
	"time"

	"financebackend/internal/core"
)

// Ports for outbound collaborators.
type (
	// TransactionStore is the durable account/transaction storage the jobs
	// read from and write back to. Mutations are atomic per account.
	TransactionStore interface {
		// ListAccounts returns every account with its transactions loaded.
		ListAccounts(ctx context.Context) ([]core.Account, error)

		// AppendTransactions atomically appends the new transactions to one
		// account's list and returns the number of rows written.
		AppendTransactions(ctx context.Context, accountID int64, txns []core.Transaction) (int, error)

		// AdvanceRecurringTrigger moves a trigger transaction's next due date
		// forward and stamps its last-processed time, via a targeted update.
		AdvanceRecurringTrigger(ctx context.Context, accountID int64, txnID string, nextDue, processedAt time.Time) error

		// MarkBudgetAlertSent records the per-month alert dedup timestamp.
		MarkBudgetAlertSent(ctx context.Context, accountID int64, at time.Time) error

		// FindOwner resolves an account's owner by clerk user id.
		FindOwner(ctx context.Context, clerkUserID string) (*core.User, error)

		// GetDefaultAccount returns the default account used for monthly
		// insight reporting, or a core.ErrNotFound wrap when none exists.
		GetDefaultAccount(ctx context.Context) (*core.Account, error)
	}

	// Notifier delivers a message to an address. Failures are logged by the
	// jobs, never propagated as fatal errors to the scheduler.
	Notifier interface {
		Send(ctx context.Context, to, subject, body string) error
	}

	// InsightGenerator produces natural-language analysis text from a prompt.
	InsightGenerator interface {
		Generate(ctx context.Context, prompt string) (string, error)
	}
)
