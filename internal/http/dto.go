package http

import (
	"fmt"
	"time"

	"financebackend/internal/core"
)

// JSON shapes of the API. Money travels as a decimal string ("123.45"),
// never as a float.

type userRequest struct {
	ClerkUserID string `json:"clerkUserId"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	ClerkUserID string `json:"clerkUserId"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:          u.ID,
		ClerkUserID: u.ClerkUserID,
		Email:       u.Email,
		Name:        u.Name,
		ImageURL:    u.ImageURL,
	}
}

type accountRequest struct {
	ClerkUserID string  `json:"clerkUserId"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Budget      *string `json:"budget,omitempty"`
}

type accountResponse struct {
	ID                int64                 `json:"id"`
	ClerkUserID       string                `json:"clerkUserId"`
	Name              string                `json:"name"`
	Type              string                `json:"type"`
	Balance           string                `json:"balance"`
	Budget            *string               `json:"budget,omitempty"`
	IsDefault         bool                  `json:"isDefault"`
	BudgetAlertSentAt *time.Time            `json:"budgetAlertSentAt,omitempty"`
	Transactions      []transactionResponse `json:"transactions"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

func toAccountResponse(a core.Account) accountResponse {
	resp := accountResponse{
		ID:                a.ID,
		ClerkUserID:       a.ClerkUserID,
		Name:              a.Name,
		Type:              string(a.Type),
		Balance:           a.Balance.String(),
		IsDefault:         a.IsDefault,
		BudgetAlertSentAt: a.BudgetAlertSentAt,
		Transactions:      make([]transactionResponse, 0, len(a.Transactions)),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.Budget != nil {
		budget := a.Budget.String()
		resp.Budget = &budget
	}
	for _, t := range a.Transactions {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(t))
	}
	return resp
}

type transactionRequest struct {
	Kind              string     `json:"kind"`
	Amount            string     `json:"amount"`
	Description       string     `json:"description,omitempty"`
	Date              *time.Time `json:"date,omitempty"`
	Category          string     `json:"category"`
	ReceiptURL        string     `json:"receiptUrl,omitempty"`
	IsRecurring       bool       `json:"isRecurring,omitempty"`
	RecurringInterval string     `json:"recurringInterval,omitempty"`
}

type transactionResponse struct {
	ID                string     `json:"id"`
	Kind              string     `json:"kind"`
	Amount            string     `json:"amount"`
	Description       string     `json:"description,omitempty"`
	Date              time.Time  `json:"date"`
	Category          string     `json:"category"`
	ReceiptURL        string     `json:"receiptUrl,omitempty"`
	IsRecurring       bool       `json:"isRecurring"`
	RecurringInterval string     `json:"recurringInterval,omitempty"`
	NextRecurringDate *time.Time `json:"nextRecurringDate,omitempty"`
	LastProcessed     *time.Time `json:"lastProcessed,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:                t.ID,
		Kind:              string(t.Kind),
		Amount:            t.Amount.String(),
		Description:       t.Description,
		Date:              t.Date,
		Category:          t.Category,
		ReceiptURL:        t.ReceiptURL,
		IsRecurring:       t.IsRecurring,
		RecurringInterval: string(t.RecurringInterval),
		NextRecurringDate: t.NextRecurringDate,
		LastProcessed:     t.LastProcessed,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func parseMoney(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: amount %q: %w", core.ErrValidation, s, err)
	}
	return core.Money{Cents: cents}, nil
}
