package server

import (
	"net/http"

	"accountgate/internal/auth"
)

var errBadBody error = &auth.ValidationError{Reason: "invalid request body"}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyAccountRequest struct {
	OTP string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, errBadBody)
		return
	}

	sess, err := s.ctrl.Register(r.Context(), req.Email, req.Password)
	s.observe("register", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.cookies.SetTokenCookie(w, sess.Token, sess.ExpiresAt, s.now())
	s.respondOK(w, "account created")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, errBadBody)
		return
	}

	sess, err := s.ctrl.Login(r.Context(), req.Email, req.Password)
	s.observe("login", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.cookies.SetTokenCookie(w, sess.Token, sess.ExpiresAt, s.now())
	s.respondOK(w, "logged in")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.TokenCookieName); err == nil {
		s.ctrl.Logout(r.Context(), cookie.Value)
	}
	s.observe("logout", nil)
	s.cookies.ClearTokenCookie(w)
	s.respondOK(w, "logged out")
}

func (s *Server) handleSendVerifyOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	err := s.ctrl.SendVerifyOTP(r.Context(), userID)
	s.observe("send_verify_otp", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.metrics.OTPIssued.WithLabelValues(string(auth.PurposeVerify)).Inc()
	s.respondOK(w, "verification code sent to your email")
}

func (s *Server) handleVerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req verifyAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, errBadBody)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	err := s.ctrl.VerifyEmail(r.Context(), userID, req.OTP)
	s.observe("verify_email", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondOK(w, "email verified")
}

func (s *Server) handleIsAuth(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if !s.ctrl.IsAuthenticated(r.Context(), userID) {
		s.respondError(w, r, auth.ErrUnauthenticated)
		return
	}
	s.respondOK(w, "authenticated")
}

func (s *Server) handleSendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, errBadBody)
		return
	}

	err := s.ctrl.SendResetOTP(r.Context(), req.Email)
	s.observe("send_reset_otp", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.metrics.OTPIssued.WithLabelValues(string(auth.PurposeReset)).Inc()
	s.respondOK(w, "reset code sent to your email")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, errBadBody)
		return
	}

	err := s.ctrl.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	s.observe("reset_password", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondOK(w, "password has been reset")
}
