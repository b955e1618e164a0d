package server

import (
	"net/http"

	"accountgate/internal/auth"
)

type userData struct {
	Email             string `json:"email"`
	IsAccountVerified bool   `json:"isAccountVerified"`
}

type userDataResponse struct {
	Success  bool     `json:"success"`
	UserData userData `json:"userData"`
}

func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	u, err := s.ctrl.UserData(r.Context(), userID)
	s.observe("user_data", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userDataResponse{
		Success:  true,
		UserData: userData{Email: u.Email, IsAccountVerified: u.Verified},
	})
}
