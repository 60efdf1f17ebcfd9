package http

import (
	"net/http"

	"financebackend/internal/core"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.users.CreateUser(r.Context(), core.User{
		ClerkUserID: req.ClerkUserID,
		Email:       req.Email,
		Name:        req.Name,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserByEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}
