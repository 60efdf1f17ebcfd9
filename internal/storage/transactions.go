package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"financebackend/internal/core"
)

const transactionColumns = `id, kind, amount_cents, description, date, category, receipt_url,
	is_recurring, recurring_interval, next_recurring_date, last_processed, version, created_at, updated_at`

// signedCents is the amount's effect on the account balance.
func signedCents(t core.Transaction) int64 {
	if t.Kind == core.Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

// AppendTransactions implements jobs.TransactionStore. The whole batch is
// written in a single SQL transaction together with the balance adjustment,
// so a failure partway through leaves the account untouched.
func (r *SQLiteRepository) AppendTransactions(ctx context.Context, accountID int64, txns []core.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}
	for _, t := range txns {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE id = ?`, accountID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check account: %w", err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	}

	var delta int64
	for _, t := range txns {
		var interval sql.NullString
		if t.IsRecurring {
			interval = sql.NullString{String: string(t.RecurringInterval), Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, account_id, kind, amount_cents, description, date, category,
			    receipt_url, is_recurring, recurring_interval, next_recurring_date, last_processed, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, accountID, string(t.Kind), t.Amount.Cents, t.Description, encodeTime(t.Date), t.Category,
			t.ReceiptURL, t.IsRecurring, interval, encodeTimePtr(t.NextRecurringDate), encodeTimePtr(t.LastProcessed),
			encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt))
		if err != nil {
			return 0, fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
		delta += signedCents(t)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ?, version = version + 1, updated_at = ? WHERE id = ?`,
		delta, encodeTime(time.Now().UTC()), accountID); err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}

	slog.InfoContext(ctx, "Transactions appended",
		"account_id", accountID, "count", len(txns), "balance_delta_cents", delta)
	return len(txns), nil
}

// AdvanceRecurringTrigger implements jobs.TransactionStore. It moves a
// recurring template's next due date forward and stamps it as processed,
// without touching any other column.
func (r *SQLiteRepository) AdvanceRecurringTrigger(ctx context.Context, accountID int64, txnID string, nextDue, processedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET next_recurring_date = ?, last_processed = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND account_id = ? AND is_recurring = 1`,
		encodeTime(nextDue), encodeTime(processedAt), encodeTime(processedAt), txnID, accountID)
	if err != nil {
		return fmt.Errorf("advance recurring trigger: %w", err)
	}
	return requireAffected(res, "recurring transaction")
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, accountID int64, txnID string) (*core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND account_id = ?`,
		txnID, accountID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get transaction: %w", err)
		}
		return nil, fmt.Errorf("transaction %s: %w", txnID, core.ErrNotFound)
	}
	t, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY date`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// TransactionUpdate carries the editable fields of a transaction. Nil fields
// are left untouched.
type TransactionUpdate struct {
	Kind        *core.TransactionKind
	Amount      *core.Money
	Description *string
	Date        *time.Time
	Category    *string
	IsRecurring *bool
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, accountID int64, txnID string, upd TransactionUpdate) (*core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	current, err := r.getTransactionTx(ctx, tx, accountID, txnID)
	if err != nil {
		return nil, err
	}

	next := *current
	if upd.Kind != nil {
		next.Kind = *upd.Kind
	}
	if upd.Amount != nil {
		next.Amount = *upd.Amount
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if upd.Date != nil {
		next.Date = upd.Date.UTC()
	}
	if upd.Category != nil {
		next.Category = *upd.Category
	}
	if upd.IsRecurring != nil && *upd.IsRecurring != next.IsRecurring {
		next.IsRecurring = *upd.IsRecurring
		if !next.IsRecurring {
			next.RecurringInterval = ""
			next.NextRecurringDate = nil
		}
	}
	next.UpdatedAt = time.Now().UTC()
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("transaction %s: %w: %w", txnID, core.ErrValidation, err)
	}

	var interval sql.NullString
	if next.IsRecurring {
		interval = sql.NullString{String: string(next.RecurringInterval), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions
		 SET kind = ?, amount_cents = ?, description = ?, date = ?, category = ?,
		     is_recurring = ?, recurring_interval = ?, next_recurring_date = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND account_id = ?`,
		string(next.Kind), next.Amount.Cents, next.Description, encodeTime(next.Date), next.Category,
		next.IsRecurring, interval, encodeTimePtr(next.NextRecurringDate),
		encodeTime(next.UpdatedAt), txnID, accountID); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	// Keep the materialized balance in sync with the edited amount and kind.
	delta := signedCents(next) - signedCents(*current)
	if delta != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = ? WHERE id = ?`,
			delta, encodeTime(next.UpdatedAt), accountID); err != nil {
			return nil, fmt.Errorf("adjust balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	next.Version = current.Version + 1
	return &next, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, accountID int64, txnID string) error {
	deleted, err := r.DeleteTransactionsBulk(ctx, accountID, []string{txnID})
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return fmt.Errorf("transaction %s: %w", txnID, core.ErrNotFound)
	}
	return nil
}

// DeleteTransactionsBulk removes the given transactions and returns the ids
// that actually existed. Unknown ids are silently ignored so a retried delete
// stays idempotent.
func (r *SQLiteRepository) DeleteTransactionsBulk(ctx context.Context, accountID int64, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.Repeat(",?", len(ids))[1:]
	args := make([]any, 0, len(ids)+1)
	args = append(args, accountID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, kind, amount_cents FROM transactions WHERE account_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("select for delete: %w", err)
	}

	var (
		deleted []string
		delta   int64
	)
	for rows.Next() {
		var (
			id    string
			kind  string
			cents int64
		)
		if err := rows.Scan(&id, &kind, &cents); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan for delete: %w", err)
		}
		deleted = append(deleted, id)
		delta += signedCents(core.Transaction{Kind: core.TransactionKind(kind), Amount: core.Money{Cents: cents}})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("select for delete: %w", err)
	}
	rows.Close()

	if len(deleted) == 0 {
		return nil, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE account_id = ? AND id IN (`+placeholders+`)`, args...); err != nil {
		return nil, fmt.Errorf("delete transactions: %w", err)
	}

	// Deleting an expense gives the balance back, deleting an income takes
	// it away again.
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents - ?, version = version + 1, updated_at = ? WHERE id = ?`,
		delta, encodeTime(time.Now().UTC()), accountID); err != nil {
		return nil, fmt.Errorf("adjust balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Transactions deleted",
		"account_id", accountID, "count", len(deleted))
	return deleted, nil
}

func (r *SQLiteRepository) getTransactionTx(ctx context.Context, tx *sql.Tx, accountID int64, txnID string) (*core.Transaction, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND account_id = ?`,
		txnID, accountID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get transaction: %w", err)
		}
		return nil, fmt.Errorf("transaction %s: %w", txnID, core.ErrNotFound)
	}
	t, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	return scanTransactionInto(row, nil)
}

func scanTransactionWith(row rowScanner, accountID *int64) (core.Transaction, error) {
	return scanTransactionInto(row, accountID)
}

func scanTransactionInto(row rowScanner, accountID *int64) (core.Transaction, error) {
	var (
		t                              core.Transaction
		kind, date                     string
		interval                       sql.NullString
		nextDue, lastProcessed         sql.NullString
		createdAt, updatedAt           string
	)

	dest := make([]any, 0, 15)
	if accountID != nil {
		dest = append(dest, accountID)
	}
	dest = append(dest, &t.ID, &kind, &t.Amount.Cents, &t.Description, &date, &t.Category, &t.ReceiptURL,
		&t.IsRecurring, &interval, &nextDue, &lastProcessed, &t.Version, &createdAt, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("transaction: %w", core.ErrNotFound)
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	t.Kind = core.TransactionKind(kind)
	if interval.Valid {
		t.RecurringInterval = core.RecurringInterval(interval.String)
	}

	var err error
	if t.Date, err = decodeTime(date); err != nil {
		return core.Transaction{}, err
	}
	if t.NextRecurringDate, err = decodeTimePtr(nextDue); err != nil {
		return core.Transaction{}, err
	}
	if t.LastProcessed, err = decodeTimePtr(lastProcessed); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	if t.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}
