package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/drawbridge-ai/drawbridge/internal/domain"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, domain.CodeUnknown, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, domain.CodeUnknown, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorBody struct {
	Code    domain.Code `json:"code"`
	Message string      `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code domain.Code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeDomainError maps classified failures to HTTP statuses. Clients key on
// the stable code in the body, not on the status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, domain.CodeUnknown, "artifact not found")
		return
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, domain.CodeUnknown, "artifact expired and was removed")
		return
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		slog.Error("unclassified error reached handler", "error", err)
		writeError(w, http.StatusInternalServerError, domain.CodeUnknown, "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case domain.CodeRateLimited:
		status = http.StatusTooManyRequests
	case domain.CodeQuotaExceeded:
		status = http.StatusPaymentRequired
	case domain.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case domain.CodeConnection:
		status = http.StatusBadGateway
	case domain.CodeTimeout:
		status = http.StatusGatewayTimeout
	case domain.CodeInvalidContent:
		status = http.StatusUnprocessableEntity
	case domain.CodeStorage, domain.CodeUnknown:
		slog.Error("request failed", "code", de.Code, "error", err)
	}
	writeError(w, status, de.Code, de.Message)
}
