// Package api provides the HTTP handlers and standardized error handling
// for the booking API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/studylane/studylane/internal/booking"
	"github.com/studylane/studylane/internal/middleware"
	"github.com/studylane/studylane/internal/money"
	"github.com/studylane/studylane/internal/payment"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
// It writes the appropriate HTTP status code and returns a JSON error body.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// The error_code will be automatically logged by the logging middleware
// for all 4xx and 5xx responses if you call SetErrorCode on the context
// and pass the updated context to WriteError.
//
// Example:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Booking not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	// Update the context in the response writer if supported (for logging middleware)
	middleware.UpdateResponseContext(w, ctx)

	// Create error response
	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	// Marshal to JSON
	data, err := json.Marshal(errResp)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	// Write response
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteBookingError maps a booking service error to a stable error code and
// HTTP status and writes the response. The error messages of the booking
// sentinels double as the codes clients branch on.
func WriteBookingError(w http.ResponseWriter, ctx context.Context, err error) {
	code, status := bookingErrorCode(err)
	ctx = middleware.SetErrorCode(ctx, code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Never leak internal failure detail to callers.
		message = "internal error"
	}
	WriteError(w, ctx, status, code, message)
}

func bookingErrorCode(err error) (code string, status int) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return booking.ErrNotFound.Error(), http.StatusNotFound
	case errors.Is(err, booking.ErrConversationNotFound):
		return booking.ErrConversationNotFound.Error(), http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden):
		return booking.ErrForbidden.Error(), http.StatusForbidden
	case errors.Is(err, booking.ErrSameParty):
		return ErrCodeValidation, http.StatusBadRequest
	case errors.Is(err, money.ErrInvalidAmount), errors.Is(err, money.ErrInvalidSchedule):
		return ErrCodeValidation, http.StatusBadRequest
	case errors.Is(err, booking.ErrPaymentIntentMissing):
		return booking.ErrPaymentIntentMissing.Error(), http.StatusConflict
	case errors.Is(err, booking.ErrPaymentNotAuthorizedYet):
		return booking.ErrPaymentNotAuthorizedYet.Error(), http.StatusConflict
	case errors.Is(err, booking.ErrPaymentNotCapturable):
		return booking.ErrPaymentNotCapturable.Error(), http.StatusConflict
	case errors.Is(err, payment.ErrNotConfigured):
		return "payment_not_configured", http.StatusServiceUnavailable
	case errors.Is(err, booking.ErrPaymentCaptureFailed):
		return booking.ErrPaymentCaptureFailed.Error(), http.StatusBadGateway
	case errors.Is(err, booking.ErrPaymentCancelFailed):
		return booking.ErrPaymentCancelFailed.Error(), http.StatusBadGateway
	case errors.Is(err, booking.ErrPaymentRefundFailed):
		return booking.ErrPaymentRefundFailed.Error(), http.StatusBadGateway
	default:
		return ErrCodeInternal, http.StatusInternalServerError
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
