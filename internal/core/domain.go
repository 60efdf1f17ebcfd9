package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

const (
	Daily   RecurringInterval = "daily"
	Weekly  RecurringInterval = "weekly"
	Monthly RecurringInterval = "monthly"
	Yearly  RecurringInterval = "yearly"
)

const (
	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"
)

type (
	TransactionKind   string
	RecurringInterval string
	AccountType       string

	Money struct {
		Cents int64
	}

	// Transaction is a single ledger entry inside an account. Recurring
	// transactions act as templates: on their due date the recurrence engine
	// appends a plain occurrence and moves the template's next due date
	// forward. Occurrences never carry recurrence metadata themselves.
	Transaction struct {
		ID                string
		Kind              TransactionKind
		Amount            Money
		Description       string
		Date              time.Time
		Category          string
		ReceiptURL        string
		IsRecurring       bool
		RecurringInterval RecurringInterval
		NextRecurringDate *time.Time
		LastProcessed     *time.Time
		Version           int64
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// Account owns an ordered list of transactions. Exactly one account per
	// owner may be the default account.
	Account struct {
		ID                int64
		ClerkUserID       string
		Name              string
		Type              AccountType
		Balance           Money
		Budget            *Money
		IsDefault         bool
		BudgetAlertSentAt *time.Time
		Version           int64
		CreatedAt         time.Time
		UpdatedAt         time.Time
		Transactions      []Transaction
	}

	User struct {
		ID          int64
		ClerkUserID string
		Email       string
		Name        string
		ImageURL    string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// BudgetAlert describes an over-budget condition for one account in the
	// current calendar month.
	BudgetAlert struct {
		AccountID    int64
		AccountName  string
		OwnerID      string
		Budget       Money
		TotalExpense Money
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrInvalidInterval = errors.New("invalid recurring interval")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyName       = errors.New("empty account name")
	ErrInvalidType     = errors.New("invalid account type")
	ErrUserExists      = errors.New("user already exists")
	ErrAccountExists   = errors.New("account already exists")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidInterval reports whether the interval is one of the supported
// repetition frequencies.
func ValidInterval(iv RecurringInterval) bool {
	switch iv {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if t.Kind != Income && t.Kind != Expense {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	// isRecurring and recurringInterval must agree with each other.
	if t.IsRecurring {
		if !ValidInterval(t.RecurringInterval) {
			return fmt.Errorf("%w: %q", ErrInvalidInterval, t.RecurringInterval)
		}
	} else {
		if t.RecurringInterval != "" {
			return fmt.Errorf("%w: interval set on non-recurring transaction", ErrInvalidInterval)
		}
		if t.NextRecurringDate != nil {
			return errors.New("next recurring date set on non-recurring transaction")
		}
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.Type != Current && a.Type != Savings {
		return fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}
	if strings.TrimSpace(a.ClerkUserID) == "" {
		return errors.New("missing owner id")
	}
	if a.Budget != nil && a.Budget.Cents <= 0 {
		return fmt.Errorf("budget: %w", ErrInvalidAmount)
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ClerkUserID) == "" {
		return errors.New("missing clerk user id")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("empty user name")
	}
	return nil
}

// SameCalendarDay reports whether a and b fall on the same UTC calendar date.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// MidnightUTC truncates t to the start of its UTC calendar day.
func MidnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthWindow returns the half-open interval [start, end) of the calendar
// month containing t, in UTC. Used for budget aggregation.
func MonthWindow(t time.Time) (start, end time.Time) {
	y, m, _ := t.UTC().Date()
	start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
