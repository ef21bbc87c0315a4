package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/studylane/studylane/internal/booking"
	"github.com/studylane/studylane/internal/money"
	"github.com/studylane/studylane/internal/payment"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, context.Background(), http.StatusNotFound, ErrCodeNotFound, "Booking not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != ErrCodeNotFound || resp.Error.Message != "Booking not found" {
		t.Errorf("response = %+v", resp)
	}
}

func TestBookingErrorCode(t *testing.T) {
	tests := []struct {
		err        error
		wantCode   string
		wantStatus int
	}{
		{booking.ErrNotFound, "booking_not_found", http.StatusNotFound},
		{booking.ErrConversationNotFound, "conversation_not_found", http.StatusNotFound},
		{booking.ErrForbidden, "forbidden", http.StatusForbidden},
		{booking.ErrSameParty, ErrCodeValidation, http.StatusBadRequest},
		{money.ErrInvalidAmount, ErrCodeValidation, http.StatusBadRequest},
		{money.ErrInvalidSchedule, ErrCodeValidation, http.StatusBadRequest},
		{booking.ErrPaymentIntentMissing, "payment_intent_missing", http.StatusConflict},
		{booking.ErrPaymentNotAuthorizedYet, "payment_not_authorized_yet", http.StatusConflict},
		{booking.ErrPaymentNotCapturable, "payment_not_capturable", http.StatusConflict},
		{payment.ErrNotConfigured, "payment_not_configured", http.StatusServiceUnavailable},
		{booking.ErrPaymentCaptureFailed, "payment_capture_failed", http.StatusBadGateway},
		{booking.ErrPaymentCancelFailed, "payment_cancel_failed", http.StatusBadGateway},
		{booking.ErrPaymentRefundFailed, "payment_refund_failed", http.StatusBadGateway},
		{errors.New("pq: connection reset"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode+"/"+tt.err.Error(), func(t *testing.T) {
			code, status := bookingErrorCode(tt.err)
			if code != tt.wantCode || status != tt.wantStatus {
				t.Errorf("bookingErrorCode(%v) = %q/%d, want %q/%d", tt.err, code, status, tt.wantCode, tt.wantStatus)
			}
		})
	}
}

func TestBookingErrorCodeWrapped(t *testing.T) {
	wrapped := fmt.Errorf("capture intent pi_1: %w", booking.ErrPaymentCaptureFailed)
	code, status := bookingErrorCode(wrapped)
	if code != "payment_capture_failed" || status != http.StatusBadGateway {
		t.Errorf("bookingErrorCode(wrapped) = %q/%d", code, status)
	}
}

func TestWriteBookingErrorScrubsInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBookingError(rec, context.Background(), errors.New("pq: password authentication failed for user app"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Message != "internal error" {
		t.Errorf("message = %q, internal detail must not leak", resp.Error.Message)
	}
}
