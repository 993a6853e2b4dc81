package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// maxBodyBytes caps request bodies; credentials are tiny.
const maxBodyBytes = 1 << 16

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors to a status code and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, "too many login attempts"
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
