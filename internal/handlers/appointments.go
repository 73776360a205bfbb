package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jojo6550/jefitness-sub002/internal/auth"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/repositories"
	"github.com/jojo6550/jefitness-sub002/internal/services"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
)

// BookingService defines the interface for the booking engine
type BookingService interface {
	Create(ctx context.Context, principal models.Principal, in services.CreateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error)
	Get(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error)
	ListMine(ctx context.Context, principal models.Principal) ([]*services.AppointmentResponse, error)
	ListAdmin(ctx context.Context, opts repositories.AppointmentListOptions) (*services.AppointmentPage, error)
	Update(ctx context.Context, principal models.Principal, id string, in services.UpdateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error)
	Cancel(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error)
	Delete(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) error
}

// AppointmentHandler handles appointment-related HTTP requests
type AppointmentHandler struct {
	service  BookingService
	ipConfig *pkghttp.IPConfig
}

// NewAppointmentHandler creates a new AppointmentHandler
func NewAppointmentHandler(service BookingService, ipConfig *pkghttp.IPConfig) *AppointmentHandler {
	return &AppointmentHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// CreateAppointmentRequest represents the request body for booking
type CreateAppointmentRequest struct {
	ClientID  string `json:"clientId" validate:"omitempty,uuid"`
	TrainerID string `json:"trainerId" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,datetime=15:04"`
	Notes     string `json:"notes" validate:"max=1000"`
}

// UpdateAppointmentRequest represents a partial appointment update. Absent
// fields are left unchanged.
type UpdateAppointmentRequest struct {
	Date   *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time   *string `json:"time" validate:"omitempty,datetime=15:04"`
	Status *string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled no_show late"`
	Notes  *string `json:"notes" validate:"omitempty,max=1000"`
}

// ListAppointmentsResponse wraps the caller's appointments
type ListAppointmentsResponse struct {
	Appointments []*services.AppointmentResponse `json:"appointments"`
}

// writeBookingError maps booking engine errors onto the response contract.
// Invariant violations answer 400 like validation failures; only the machine
// code distinguishes them.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrClientAlreadyBooked),
		errors.Is(err, models.ErrSlotFull):
		pkghttp.WriteError(w, http.StatusBadRequest, "conflict", err.Error())
	case errors.Is(err, models.ErrInvalidTrainer),
		errors.Is(err, models.ErrPastBooking),
		errors.Is(err, models.ErrNotOnTheHour),
		errors.Is(err, models.ErrOutsideBookingWindow),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Insufficient permissions")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Appointment not found")
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, 30)
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Create books a new appointment for the caller (or, for admins, any client).
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	appt, err := h.service.Create(r.Context(), principal, services.CreateAppointmentInput{
		ClientID:  req.ClientID,
		TrainerID: req.TrainerID,
		Date:      req.Date,
		Time:      req.Time,
		Notes:     req.Notes,
	}, requestMeta(r, h.ipConfig))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, appt)
}

// Get returns one appointment the caller is a party to.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	appt, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"), requestMeta(r, h.ipConfig))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, appt)
}

// ListMine returns the caller's appointments, as client or trainer.
func (h *AppointmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	appts, err := h.service.ListMine(r.Context(), principal)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListAppointmentsResponse{Appointments: appts})
}

// ListAll returns every appointment, paginated. Admin only; the route is
// role-gated.
func (h *AppointmentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := repositories.AppointmentListOptions{
		Page:      queryInt(q.Get("page"), 1),
		Limit:     queryInt(q.Get("limit"), 10),
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	if opts.Status != "" && !models.ValidStatus(opts.Status) {
		pkghttp.WriteBadRequest(w, "Unknown status filter")
		return
	}

	page, err := h.service.ListAdmin(r.Context(), opts)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, page)
}

// Update applies a partial update to an appointment.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	appt, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "id"), services.UpdateAppointmentInput{
		Date:   req.Date,
		Time:   req.Time,
		Status: req.Status,
		Notes:  req.Notes,
	}, requestMeta(r, h.ipConfig))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, appt)
}

// Cancel moves an appointment to cancelled. Safe to repeat.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	appt, err := h.service.Cancel(r.Context(), principal, chi.URLParam(r, "id"), requestMeta(r, h.ipConfig))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, appt)
}

// Delete removes an appointment row. The service limits it to the admin, the
// owning trainer, or the booking client.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "id"), requestMeta(r, h.ipConfig)); err != nil {
		writeBookingError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Appointment deleted",
	})
}

// queryInt parses a positive integer query parameter, falling back on the
// default for anything unparseable.
func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
