package server

import (
	"errors"
	"net/http"

	"accountgate/internal/auth"
	"accountgate/internal/logging"
)

const internalErrorMessage = "internal server error"

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) respondOK(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: message})
}

// respondError classifies err. Caller-facing kinds keep their message;
// anything else is logged in full and replaced by a generic message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := auth.PublicMessage(err)
	if msg == "" {
		logging.LogError(r.Context(), s.logger, "request failed", err)
		msg = internalErrorMessage
	}
	status := http.StatusOK
	if s.opts.StrictStatus {
		status = statusFor(err)
	}
	writeJSON(w, status, response{Success: false, Message: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrNoPendingCode),
		errors.Is(err, auth.ErrCodeExpired),
		errors.Is(err, auth.ErrCodeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrBadCredential):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrAlreadyVerified):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// observe counts the outcome of an operation.
func (s *Server) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = auth.KindCode(err)
	}
	s.metrics.Operations.WithLabelValues(op, outcome).Inc()
}
