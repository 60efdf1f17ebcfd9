// Package services holds the pure business logic invoked by the background
// jobs: recurrence materialization, budget evaluation, and insight prompt
// building. Nothing in this package touches storage or the network.
package services

import (
	"fmt"
	"time"

	"financebackend/internal/core"

	"github.com/google/uuid"
)

// IntervalStepper is the strategy interface for computing the next due date
// of a recurring transaction. Each implementation encapsulates one frequency.
type IntervalStepper interface {
	// Step returns the next due date after the given due date. trigger is the
	// template transaction; monthly stepping takes its target day-of-month
	// from the trigger's own date.
	Step(due time.Time, trigger core.Transaction) time.Time
}

// DailyStepper advances the due date by one day.
type DailyStepper struct{}

func (DailyStepper) Step(due time.Time, _ core.Transaction) time.Time {
	return core.MidnightUTC(due).AddDate(0, 0, 1)
}

// WeeklyStepper advances the due date by seven days.
type WeeklyStepper struct{}

func (WeeklyStepper) Step(due time.Time, _ core.Transaction) time.Time {
	return core.MidnightUTC(due).AddDate(0, 0, 7)
}

// MonthlyStepper advances to the same day-of-month in the following month.
// The target day comes from the trigger transaction's date (day 1 when the
// trigger has no date), clamped to the last valid day of the target month.
type MonthlyStepper struct{}

func (MonthlyStepper) Step(due time.Time, trigger core.Transaction) time.Time {
	targetDay := 1
	if !trigger.Date.IsZero() {
		targetDay = trigger.Date.UTC().Day()
	}
	y, m, _ := core.MidnightUTC(due).Date()
	return clampedDate(y, m+1, targetDay)
}

// YearlyStepper advances to the same month and day in the following year,
// clamped for Feb 29 on non-leap years.
type YearlyStepper struct{}

func (YearlyStepper) Step(due time.Time, _ core.Transaction) time.Time {
	y, m, d := core.MidnightUTC(due).Date()
	return clampedDate(y+1, m, d)
}

// clampedDate builds a UTC midnight date, clamping day to the last valid day
// of the (normalized) year/month. time.Date would roll an overflowing day
// into the next month instead.
func clampedDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// stepStrategies maps recurring intervals to their steppers.
var stepStrategies = map[core.RecurringInterval]IntervalStepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetIntervalStepper returns the stepper for an interval, or a validation
// error for unknown intervals.
func GetIntervalStepper(interval core.RecurringInterval) (IntervalStepper, error) {
	stepper, ok := stepStrategies[interval]
	if !ok {
		return nil, fmt.Errorf("%w: unknown recurring interval %q", core.ErrValidation, interval)
	}
	return stepper, nil
}

// AdvanceResult is the outcome of a fired recurring transaction.
type AdvanceResult struct {
	// Clone is the plain occurrence to append to the account. It carries no
	// recurrence metadata: the trigger stays the one live template.
	Clone core.Transaction
	// NextDue is the advanced due date the caller must write back onto the
	// trigger transaction.
	NextDue time.Time
}

// RecurrenceEngine computes new transaction occurrences from recurring
// templates. It is pure: it never touches storage and never mutates its
// inputs.
type RecurrenceEngine struct{}

func NewRecurrenceEngine() *RecurrenceEngine {
	return &RecurrenceEngine{}
}

// Advance fires when the transaction is recurring and its next due date falls
// on the same UTC calendar day as asOf. It returns (nil, nil) when the
// transaction is simply not due, and an error wrapping core.ErrValidation for
// malformed recurrence data.
//
// The trigger stays the only recurring row: the clone is an ordinary
// non-recurring occurrence, and the caller persists it with an atomic append
// and then advances the trigger's own NextRecurringDate to result.NextDue.
// Giving the clone recurrence metadata too would leave two live templates
// due on the same future date, doubling occurrences on every firing. The
// duplicate guard within a single day is the trigger's LastProcessed date,
// which the job checks before calling Advance.
func (e *RecurrenceEngine) Advance(trigger core.Transaction, asOf time.Time) (*AdvanceResult, error) {
	if !trigger.IsRecurring || trigger.NextRecurringDate == nil {
		return nil, nil
	}
	if !core.SameCalendarDay(*trigger.NextRecurringDate, asOf) {
		return nil, nil
	}

	stepper, err := GetIntervalStepper(trigger.RecurringInterval)
	if err != nil {
		return nil, err
	}
	nextDue := stepper.Step(*trigger.NextRecurringDate, trigger)

	now := asOf.UTC()
	clone := core.Transaction{
		ID:          uuid.NewString(),
		Kind:        trigger.Kind,
		Amount:      trigger.Amount,
		Description: trigger.Description,
		Date:        now,
		Category:    trigger.Category,
		ReceiptURL:  trigger.ReceiptURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return &AdvanceResult{Clone: clone, NextDue: nextDue}, nil
}

// ProcessedOn reports whether the transaction was already materialized on the
// given UTC calendar day. Jobs use this to avoid appending duplicates when a
// day sees more than one scheduler pass.
func ProcessedOn(txn core.Transaction, day time.Time) bool {
	return txn.LastProcessed != nil && core.SameCalendarDay(*txn.LastProcessed, day)
}

// SeedNextRecurringDate computes the first due date for a newly created
// recurring transaction: one interval after creation time.
func SeedNextRecurringDate(interval core.RecurringInterval, createdAt time.Time) (time.Time, error) {
	stepper, err := GetIntervalStepper(interval)
	if err != nil {
		return time.Time{}, err
	}
	seed := core.Transaction{Date: createdAt}
	return stepper.Step(createdAt, seed), nil
}
