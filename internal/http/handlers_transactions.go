package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"financebackend/internal/core"
	"financebackend/internal/services"
	"financebackend/internal/storage"
)

func (s *Server) resolveAccount(r *http.Request) (*core.Account, error) {
	clerkUserID := r.PathValue("clerkUserId")
	accountName := r.PathValue("accountName")
	if clerkUserID == "" || accountName == "" {
		return nil, fmt.Errorf("%w: owner and account name are required", core.ErrValidation)
	}
	return s.accounts.GetAccountByOwnerAndName(r.Context(), clerkUserID, accountName)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	account, err := s.resolveAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	txn := core.Transaction{
		ID:                uuid.NewString(),
		Kind:              core.TransactionKind(req.Kind),
		Amount:            amount,
		Description:       req.Description,
		Date:              now,
		Category:          req.Category,
		ReceiptURL:        req.ReceiptURL,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: core.RecurringInterval(req.RecurringInterval),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Date != nil {
		txn.Date = req.Date.UTC()
	}

	// A new recurring transaction first fires one interval from now.
	if txn.IsRecurring {
		nextDue, err := services.SeedNextRecurringDate(txn.RecurringInterval, txn.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		txn.NextRecurringDate = &nextDue
	}

	if _, err := s.transactions.AppendTransactions(r.Context(), account.ID, []core.Transaction{txn}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	account, err := s.resolveAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txns, err := s.transactions.ListTransactions(r.Context(), account.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64 `json:"accountId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := s.transactions.GetTransaction(r.Context(), req.AccountID, r.PathValue("transactionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(*txn))
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseID(r, "accountId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Kind        *string    `json:"kind,omitempty"`
		Amount      *string    `json:"amount,omitempty"`
		Description *string    `json:"description,omitempty"`
		Date        *time.Time `json:"date,omitempty"`
		Category    *string    `json:"category,omitempty"`
		IsRecurring *bool      `json:"isRecurring,omitempty"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	upd := storage.TransactionUpdate{
		Description: req.Description,
		Date:        req.Date,
		Category:    req.Category,
		IsRecurring: req.IsRecurring,
	}
	if req.Kind != nil {
		kind := core.TransactionKind(*req.Kind)
		upd.Kind = &kind
	}
	if req.Amount != nil {
		amount, err := parseMoney(*req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.Amount = &amount
	}

	txn, err := s.transactions.UpdateTransaction(r.Context(), accountID, r.PathValue("transactionId"), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(*txn))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64 `json:"accountId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	txnID := r.PathValue("transactionId")
	deleted, err := s.transactions.DeleteTransactionsBulk(r.Context(), req.AccountID, []string{txnID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(deleted) == 0 {
		writeError(w, r, fmt.Errorf("transaction %s: %w", txnID, core.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleDeleteBulk(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseID(r, "accountId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		TransactionIDs []string `json:"transactionIds"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.TransactionIDs) == 0 {
		writeError(w, r, fmt.Errorf("%w: transactionIds is required", core.ErrValidation))
		return
	}

	deleted, err := s.transactions.DeleteTransactionsBulk(r.Context(), accountID, req.TransactionIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "requested": len(req.TransactionIDs)})
}
