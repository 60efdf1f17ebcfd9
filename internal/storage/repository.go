package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"financebackend/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is how timestamps are stored in SQLite. RFC 3339 strings sort
// lexicographically in date order, which the date index relies on.
const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite supports one writer at a time; a single pooled connection makes
	// concurrent appends queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (clerk_user_id, email, name, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ClerkUserID, u.Email, u.Name, u.ImageURL, encodeTime(now), encodeTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("user %s: %w", u.Email, core.ErrUserExists)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: last insert id: %w", err)
	}

	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now

	slog.InfoContext(ctx, "User created", "id", u.ID, "email", u.Email)
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, clerk_user_id, email, name, image_url, created_at, updated_at
		 FROM users WHERE email = ?`, email))
}

// FindOwner implements jobs.TransactionStore.
func (r *SQLiteRepository) FindOwner(ctx context.Context, clerkUserID string) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, clerk_user_id, email, name, image_url, created_at, updated_at
		 FROM users WHERE clerk_user_id = ?`, clerkUserID))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (*core.User, error) {
	var (
		u                    core.User
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.ClerkUserID, &u.Email, &u.Name, &u.ImageURL, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if u.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Accounts

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Account{}, fmt.Errorf("begin create account: %w", err)
	}
	defer tx.Rollback()

	// The owner's first account becomes the default one.
	var existing int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE clerk_user_id = ?`, a.ClerkUserID).Scan(&existing); err != nil {
		return core.Account{}, fmt.Errorf("count accounts: %w", err)
	}
	a.IsDefault = existing == 0

	now := time.Now().UTC()
	var budget sql.NullInt64
	if a.Budget != nil {
		budget = sql.NullInt64{Int64: a.Budget.Cents, Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (clerk_user_id, name, type, balance_cents, budget_cents, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ClerkUserID, a.Name, string(a.Type), a.Balance.Cents, budget, a.IsDefault, encodeTime(now), encodeTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, fmt.Errorf("account %q: %w", a.Name, core.ErrAccountExists)
		}
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Account{}, fmt.Errorf("commit create account: %w", err)
	}

	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now

	slog.InfoContext(ctx, "Account created",
		"id", a.ID, "owner", a.ClerkUserID, "name", a.Name, "default", a.IsDefault)
	return a, nil
}

const accountColumns = `id, clerk_user_id, name, type, balance_cents, budget_cents, is_default, budget_alert_sent_at, version, created_at, updated_at`

// ListAccounts implements jobs.TransactionStore. Transactions are loaded for
// every account in a single second query to keep the account sweep at two
// round trips regardless of account count.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var (
		accounts []core.Account
		index    = make(map[int64]int)
	)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		index[a.ID] = len(accounts)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	txnRows, err := r.db.QueryContext(ctx,
		`SELECT account_id, `+transactionColumns+` FROM transactions ORDER BY account_id, date`)
	if err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}
	defer txnRows.Close()

	for txnRows.Next() {
		var accountID int64
		txn, err := scanTransactionWith(txnRows, &accountID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[accountID]; ok {
			accounts[i].Transactions = append(accounts[i].Transactions, txn)
		}
	}
	if err := txnRows.Err(); err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}

	return accounts, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (*core.Account, error) {
	a, err := r.getAccountRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if a.Transactions, err = r.ListTransactions(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) GetAccountByOwnerAndName(ctx context.Context, clerkUserID, name string) (*core.Account, error) {
	a, err := r.getAccountRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE clerk_user_id = ? AND name = ?`, clerkUserID, name)
	if err != nil {
		return nil, err
	}
	if a.Transactions, err = r.ListTransactions(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) GetAccountsByOwner(ctx context.Context, clerkUserID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE clerk_user_id = ? ORDER BY id`, clerkUserID)
	if err != nil {
		return nil, fmt.Errorf("accounts by owner: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accounts by owner: %w", err)
	}

	for i := range accounts {
		if accounts[i].Transactions, err = r.ListTransactions(ctx, accounts[i].ID); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// GetDefaultAccount implements jobs.TransactionStore.
func (r *SQLiteRepository) GetDefaultAccount(ctx context.Context) (*core.Account, error) {
	a, err := r.getAccountRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE is_default = 1 ORDER BY id LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if a.Transactions, err = r.ListTransactions(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) GetDefaultAccountByOwner(ctx context.Context, clerkUserID string) (*core.Account, error) {
	a, err := r.getAccountRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE clerk_user_id = ? AND is_default = 1 LIMIT 1`, clerkUserID)
	if err != nil {
		return nil, err
	}
	if a.Transactions, err = r.ListTransactions(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) getAccountRow(ctx context.Context, query string, args ...any) (*core.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get account: %w", err)
		}
		return nil, fmt.Errorf("account: %w", core.ErrNotFound)
	}
	a, err := scanAccount(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a                    core.Account
		accountType          string
		budget               sql.NullInt64
		alertSentAt          sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.ClerkUserID, &a.Name, &accountType, &a.Balance.Cents,
		&budget, &a.IsDefault, &alertSentAt, &a.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}

	a.Type = core.AccountType(accountType)
	if budget.Valid {
		a.Budget = &core.Money{Cents: budget.Int64}
	}
	if a.BudgetAlertSentAt, err = decodeTimePtr(alertSentAt); err != nil {
		return core.Account{}, err
	}
	if a.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, id int64, name string, accountType core.AccountType) error {
	if name == "" {
		return fmt.Errorf("account name is required: %w", core.ErrValidation)
	}
	if accountType != core.Current && accountType != core.Savings {
		return fmt.Errorf("account type %q: %w", accountType, core.ErrValidation)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		name, string(accountType), encodeTime(time.Now().UTC()), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %q: %w", name, core.ErrAccountExists)
		}
		return fmt.Errorf("update account: %w", err)
	}
	return requireAffected(res, "account")
}

// SetDefaultAccount makes the given account the owner's default and clears
// the flag on every other account of the same owner in one transaction.
func (r *SQLiteRepository) SetDefaultAccount(ctx context.Context, clerkUserID string, accountID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set default: %w", err)
	}
	defer tx.Rollback()

	now := encodeTime(time.Now().UTC())
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET is_default = 0, updated_at = ? WHERE clerk_user_id = ? AND is_default = 1`,
		now, clerkUserID); err != nil {
		return fmt.Errorf("clear default: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET is_default = 1, version = version + 1, updated_at = ? WHERE id = ? AND clerk_user_id = ?`,
		now, accountID, clerkUserID)
	if err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	if err := requireAffected(res, "account"); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepository) SetBudget(ctx context.Context, accountID int64, budget core.Money) error {
	if budget.Cents <= 0 {
		return fmt.Errorf("budget must be positive: %w", core.ErrValidation)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET budget_cents = ?, budget_alert_sent_at = NULL, version = version + 1, updated_at = ? WHERE id = ?`,
		budget.Cents, encodeTime(time.Now().UTC()), accountID)
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return requireAffected(res, "account")
}

// MarkBudgetAlertSent implements jobs.TransactionStore.
func (r *SQLiteRepository) MarkBudgetAlertSent(ctx context.Context, accountID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET budget_alert_sent_at = ?, updated_at = ? WHERE id = ?`,
		encodeTime(at), encodeTime(at), accountID)
	if err != nil {
		return fmt.Errorf("mark budget alert: %w", err)
	}
	return requireAffected(res, "account")
}

func requireAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
