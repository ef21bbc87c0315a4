package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/studylane/studylane/internal/booking"
	"github.com/studylane/studylane/internal/middleware"
	"github.com/studylane/studylane/internal/validate"
)

// BookingHandlers holds dependencies for booking-related HTTP handlers.
type BookingHandlers struct {
	service *booking.Service
}

// NewBookingHandlers creates a new BookingHandlers instance.
func NewBookingHandlers(service *booking.Service) *BookingHandlers {
	return &BookingHandlers{service: service}
}

// Register wires the booking routes onto the mux. All routes require the
// authentication middleware to have run.
func (h *BookingHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /bookings", h.HandleCreateBooking)
	mux.HandleFunc("GET /bookings/{id}", h.HandleGetBooking)
	mux.HandleFunc("POST /bookings/{id}/modify", h.HandleModifyBooking)
	mux.HandleFunc("POST /bookings/{id}/accept", h.HandleAcceptBooking)
	mux.HandleFunc("POST /bookings/{id}/decline", h.HandleDeclineBooking)
	mux.HandleFunc("GET /conversations/{id}/bookings", h.HandleListConversationBookings)
}

// bookingRequest is the shared request payload for create and modify.
type bookingRequest struct {
	ConversationID      string    `json:"conversation_id"`
	CustomerID          string    `json:"customer_id"`
	TutorID             string    `json:"tutor_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	ScheduledStart      time.Time `json:"scheduled_start"`
	ScheduledEnd        time.Time `json:"scheduled_end"`
	HourlyRate          string    `json:"hourly_rate"`
	Location            string    `json:"location"`
	MeetingLink         string    `json:"meeting_link"`
	SpecialInstructions string    `json:"special_instructions"`
}

// checkoutResponse is returned by create and modify: the booking id and the
// Stripe Checkout URL the customer must visit to authorize payment.
type checkoutResponse struct {
	Success     bool   `json:"success"`
	BookingID   string `json:"booking_id"`
	CheckoutURL string `json:"checkout_url"`
}

// bookingResponse is returned by accept and decline.
type bookingResponse struct {
	Success bool             `json:"success"`
	Booking *booking.Booking `json:"booking"`
}

// validate checks the shared fields, trimming the free-text ones in place.
// The returned message names the offending field for the 400 response.
func (req *bookingRequest) validate() (msg string, ok bool) {
	if req.HourlyRate == "" {
		return "hourly_rate is required", false
	}
	if req.ScheduledStart.IsZero() {
		return "scheduled_start is required", false
	}
	if req.ScheduledEnd.IsZero() {
		return "scheduled_end is required", false
	}

	var err error
	if req.Title, err = validate.String(req.Title, validate.TitleConstraints); err != nil {
		return "title: " + err.Error(), false
	}
	if req.Description, err = validate.String(req.Description, validate.DescriptionConstraints); err != nil {
		return "description: " + err.Error(), false
	}
	if req.Location, err = validate.String(req.Location, validate.LocationConstraints); err != nil {
		return "location: " + err.Error(), false
	}
	if req.SpecialInstructions, err = validate.String(req.SpecialInstructions, validate.SpecialInstructionsConstraints); err != nil {
		return "special_instructions: " + err.Error(), false
	}
	if req.MeetingLink != "" {
		if req.MeetingLink, err = validate.URL(req.MeetingLink, validate.MeetingLinkConstraints); err != nil {
			return "meeting_link: " + err.Error(), false
		}
	}
	return "", true
}

// HandleCreateBooking creates a booking and starts a checkout session.
// POST /bookings
func (h *BookingHandlers) HandleCreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.ConversationID == "" || req.CustomerID == "" || req.TutorID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "conversation_id, customer_id and tutor_id are required")
		return
	}
	if msg, ok := req.validate(); !ok {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	result, err := h.service.Create(ctx, middleware.GetUserID(ctx), booking.CreateParams{
		ConversationID:      req.ConversationID,
		CustomerID:          req.CustomerID,
		TutorID:             req.TutorID,
		Title:               req.Title,
		Description:         req.Description,
		ScheduledStart:      req.ScheduledStart,
		ScheduledEnd:        req.ScheduledEnd,
		HourlyRate:          req.HourlyRate,
		Location:            req.Location,
		MeetingLink:         req.MeetingLink,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		WriteBookingError(w, ctx, err)
		return
	}

	WriteJSON(w, ctx, http.StatusCreated, checkoutResponse{
		Success:     true,
		BookingID:   result.BookingID,
		CheckoutURL: result.CheckoutURL,
	})
}

// HandleGetBooking returns a booking to one of its parties.
// GET /bookings/{id}
func (h *BookingHandlers) HandleGetBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := h.service.GetByID(ctx, middleware.GetUserID(ctx), r.PathValue("id"))
	if err != nil {
		WriteBookingError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusOK, b)
}

// HandleModifyBooking renegotiates a booking and starts a fresh checkout session.
// POST /bookings/{id}/modify
func (h *BookingHandlers) HandleModifyBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if msg, ok := req.validate(); !ok {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	result, err := h.service.Modify(ctx, middleware.GetUserID(ctx), r.PathValue("id"), booking.ModifyParams{
		Title:               req.Title,
		Description:         req.Description,
		ScheduledStart:      req.ScheduledStart,
		ScheduledEnd:        req.ScheduledEnd,
		HourlyRate:          req.HourlyRate,
		Location:            req.Location,
		MeetingLink:         req.MeetingLink,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		WriteBookingError(w, ctx, err)
		return
	}

	WriteJSON(w, ctx, http.StatusOK, checkoutResponse{
		Success:     true,
		BookingID:   result.BookingID,
		CheckoutURL: result.CheckoutURL,
	})
}

// HandleAcceptBooking captures the payment and marks the booking accepted.
// POST /bookings/{id}/accept
func (h *BookingHandlers) HandleAcceptBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := h.service.Accept(ctx, middleware.GetUserID(ctx), r.PathValue("id"))
	if err != nil {
		WriteBookingError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusOK, bookingResponse{Success: true, Booking: b})
}

// HandleDeclineBooking declines the booking, voiding or refunding its payment.
// POST /bookings/{id}/decline
func (h *BookingHandlers) HandleDeclineBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := h.service.Decline(ctx, middleware.GetUserID(ctx), r.PathValue("id"))
	if err != nil {
		WriteBookingError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusOK, bookingResponse{Success: true, Booking: b})
}

// HandleListConversationBookings lists a conversation's bookings for one of
// its participants, newest first.
// GET /conversations/{id}/bookings
func (h *BookingHandlers) HandleListConversationBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bookings, err := h.service.ListByConversation(ctx, middleware.GetUserID(ctx), r.PathValue("id"))
	if err != nil {
		WriteBookingError(w, ctx, err)
		return
	}
	if bookings == nil {
		bookings = []*booking.Booking{}
	}
	WriteJSON(w, ctx, http.StatusOK, map[string]any{"bookings": bookings})
}
