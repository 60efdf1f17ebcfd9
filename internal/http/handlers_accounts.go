package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"financebackend/internal/core"
)

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", core.ErrValidation, name, r.PathValue(name))
	}
	return id, nil
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	account := core.Account{
		ClerkUserID: req.ClerkUserID,
		Name:        req.Name,
		Type:        core.AccountType(req.Type),
	}
	if req.Budget != nil {
		budget, err := parseMoney(*req.Budget)
		if err != nil {
			writeError(w, r, err)
			return
		}
		account.Budget = &budget
	}

	created, err := s.accounts.CreateAccount(r.Context(), account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(created))
}

func (s *Server) handleAccountsByOwner(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.GetAccountsByOwner(r.Context(), r.PathValue("clerkId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDefaultAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.GetDefaultAccountByOwner(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*account))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.accounts.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*account))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.accounts.UpdateAccount(r.Context(), id, req.Name, core.AccountType(req.Type)); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.accounts.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*account))
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		ClerkUserID string `json:"clerkUserId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ClerkUserID == "" {
		writeError(w, r, fmt.Errorf("%w: clerkUserId is required", core.ErrValidation))
		return
	}

	if err := s.accounts.SetDefaultAccount(r.Context(), req.ClerkUserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"defaultAccountId": id})
}

// handleMonthlyExpenses returns the current-month expense total of the
// owner's default account.
func (s *Server) handleMonthlyExpenses(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.GetDefaultAccountByOwner(r.Context(), r.PathValue("clerkId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	start, end := core.MonthWindow(time.Now())
	var total int64
	for _, t := range account.Transactions {
		if t.Kind != core.Expense {
			continue
		}
		if t.Date.Before(start) || !t.Date.Before(end) {
			continue
		}
		total += t.Amount.Cents
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId":       account.ID,
		"month":           start.Format("2006-01"),
		"monthlyExpenses": core.Money{Cents: total}.String(),
	})
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "accountId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Budget string `json:"budget"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	budget, err := parseMoney(req.Budget)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.accounts.SetBudget(r.Context(), id, budget); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accountId": id, "budget": budget.String()})
}
