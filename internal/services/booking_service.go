package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jojo6550/jefitness-sub002/internal/config"
	"github.com/jojo6550/jefitness-sub002/internal/metrics"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/repositories"
)

// AppointmentRepository is the appointment store surface the booking engine
// needs. The store enforces slot capacity and per-client-per-day uniqueness
// atomically; everything else is checked here first.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *models.Appointment, slotCapacity int) (*models.Appointment, error)
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Appointment, error)
	ListAdmin(ctx context.Context, opts repositories.AppointmentListOptions) ([]*models.Appointment, int, error)
	Update(ctx context.Context, appt *models.Appointment, slotCapacity int, revalidate bool) (*models.Appointment, error)
	Delete(ctx context.Context, id string) error
}

// AppointmentResponse is the wire shape of an appointment.
type AppointmentResponse struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	TrainerID   string    `json:"trainerId"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	ClientName  string    `json:"clientName,omitempty"`
	TrainerName string    `json:"trainerName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Pagination describes one page of an admin listing.
type Pagination struct {
	CurrentPage       int  `json:"currentPage"`
	TotalPages        int  `json:"totalPages"`
	TotalAppointments int  `json:"totalAppointments"`
	HasNext           bool `json:"hasNext"`
	HasPrev           bool `json:"hasPrev"`
}

// AppointmentPage is the admin list payload.
type AppointmentPage struct {
	Appointments []*AppointmentResponse `json:"appointments"`
	Pagination   Pagination             `json:"pagination"`
}

// CreateAppointmentInput carries a booking request. An empty ClientID books
// for the caller; admins may book on behalf of any client.
type CreateAppointmentInput struct {
	ClientID  string
	TrainerID string
	Date      string
	Time      string
	Notes     string
}

// UpdateAppointmentInput carries a partial update. nil fields are unchanged.
type UpdateAppointmentInput struct {
	Date   *string
	Time   *string
	Status *string
	Notes  *string
}

func toAppointmentResponse(appt *models.Appointment) *AppointmentResponse {
	return &AppointmentResponse{
		ID:          appt.ID,
		ClientID:    appt.ClientID,
		TrainerID:   appt.TrainerID,
		Date:        appt.Date,
		Time:        appt.Time,
		Status:      appt.Status,
		Notes:       appt.Notes,
		ClientName:  appt.ClientName,
		TrainerName: appt.TrainerName,
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}
}

func toAppointmentResponses(appts []*models.Appointment) []*AppointmentResponse {
	out := make([]*AppointmentResponse, 0, len(appts))
	for _, appt := range appts {
		out = append(out, toAppointmentResponse(appt))
	}
	return out
}

// BookingService is the booking engine. It validates slot shape, booking
// window, and trainer eligibility, then hands the capacity and uniqueness
// checks to the repository's serialized transaction.
type BookingService struct {
	appts   AppointmentRepository
	users   UserRepository
	sink    *AuditSink
	metrics *metrics.Metrics
	cfg     config.BookingConfig
	now     func() time.Time
	loc     *time.Location
}

func NewBookingService(
	appts AppointmentRepository,
	users UserRepository,
	sink *AuditSink,
	m *metrics.Metrics,
	cfg config.BookingConfig,
) *BookingService {
	return &BookingService{
		appts:   appts,
		users:   users,
		sink:    sink,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
		loc:     time.UTC,
	}
}

// validateSlot checks the shape of the requested slot: parseable, strictly in
// the future, on the hour, and inside the daily booking window.
func (s *BookingService) validateSlot(date, slotTime string) error {
	appt := models.Appointment{Date: date, Time: slotTime}
	start, err := appt.StartsAt(s.loc)
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD and time must be HH:MM", models.ErrBadRequest)
	}

	if !start.After(s.now().In(s.loc)) {
		return models.ErrPastBooking
	}
	if start.Minute() != 0 {
		return models.ErrNotOnTheHour
	}
	if start.Hour() < s.cfg.StartHour || start.Hour() >= s.cfg.EndHour {
		return models.ErrOutsideBookingWindow
	}
	return nil
}

func (s *BookingService) countBooking(outcome string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, models.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, models.ErrClientAlreadyBooked):
		return "duplicate_day"
	}
	return "error"
}

// canAccess reports whether the principal may read the appointment.
func canAccess(principal models.Principal, appt *models.Appointment) bool {
	return principal.IsAdmin() || appt.ClientID == principal.ID || appt.TrainerID == principal.ID
}

// denyAccess emits the security event for an attempted cross-user access and
// returns ErrForbidden.
func (s *BookingService) denyAccess(ctx context.Context, principal models.Principal, appt *models.Appointment, action string, meta RequestMeta) error {
	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategorySecurity,
		EventType: models.EventDataAccessDenied,
		Message:   "denied " + action + " on appointment owned by another user",
		UserID:    principal.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata:  map[string]any{"appointment_id": appt.ID, "action": action},
	})
	return models.ErrForbidden
}

// Create books an appointment. Checks run cheapest-first: authorization,
// trainer eligibility, slot shape, then the transactional capacity and
// uniqueness checks in the store.
func (s *BookingService) Create(ctx context.Context, principal models.Principal, in CreateAppointmentInput, meta RequestMeta) (*AppointmentResponse, error) {
	clientID := in.ClientID
	if clientID == "" {
		clientID = principal.ID
	}
	if clientID != principal.ID && !principal.IsAdmin() {
		return nil, models.ErrForbidden
	}

	trainer, err := s.users.GetByID(ctx, in.TrainerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidTrainer
		}
		return nil, err
	}
	if !models.CanReceiveBookings(trainer.Role) {
		return nil, models.ErrInvalidTrainer
	}

	if err := s.validateSlot(in.Date, in.Time); err != nil {
		s.countBooking("rejected")
		return nil, err
	}

	created, err := s.appts.Create(ctx, &models.Appointment{
		ClientID:  clientID,
		TrainerID: in.TrainerID,
		Date:      in.Date,
		Time:      in.Time,
		Notes:     in.Notes,
	}, s.cfg.SlotCapacity)
	if err != nil {
		s.countBooking(bookingOutcome(err))
		return nil, err
	}
	s.countBooking("booked")

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryUser,
		EventType: models.EventBookAppointment,
		Message:   "appointment booked",
		UserID:    principal.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata: map[string]any{
			"appointment_id": created.ID,
			"trainer_id":     created.TrainerID,
			"date":           created.Date,
			"time":           created.Time,
		},
	})

	return toAppointmentResponse(created), nil
}

// Get returns one appointment the principal is a party to.
func (s *BookingService) Get(ctx context.Context, principal models.Principal, id string, meta RequestMeta) (*AppointmentResponse, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(principal, appt) {
		return nil, s.denyAccess(ctx, principal, appt, "read", meta)
	}
	return toAppointmentResponse(appt), nil
}

// ListMine returns every appointment where the caller is client or trainer,
// ordered by slot.
func (s *BookingService) ListMine(ctx context.Context, principal models.Principal) ([]*AppointmentResponse, error) {
	appts, err := s.appts.ListByUser(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	return toAppointmentResponses(appts), nil
}

// ListAdmin returns one page of all appointments with pagination metadata.
func (s *BookingService) ListAdmin(ctx context.Context, opts repositories.AppointmentListOptions) (*AppointmentPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	appts, total, err := s.appts.ListAdmin(ctx, opts)
	if err != nil {
		return nil, err
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit

	return &AppointmentPage{
		Appointments: toAppointmentResponses(appts),
		Pagination: Pagination{
			CurrentPage:       opts.Page,
			TotalPages:        totalPages,
			TotalAppointments: total,
			HasNext:           opts.Page < totalPages,
			HasPrev:           opts.Page > 1,
		},
	}, nil
}

// Update applies a partial update. Status changes follow the transition rules;
// moving the slot re-runs the shape checks here and the capacity and
// uniqueness checks in the store. Only the owning trainer or an admin may
// update.
func (s *BookingService) Update(ctx context.Context, principal models.Principal, id string, in UpdateAppointmentInput, meta RequestMeta) (*AppointmentResponse, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && appt.TrainerID != principal.ID {
		return nil, s.denyAccess(ctx, principal, appt, "update", meta)
	}

	next := *appt
	if in.Date != nil {
		next.Date = *in.Date
	}
	if in.Time != nil {
		next.Time = *in.Time
	}
	if in.Notes != nil {
		next.Notes = *in.Notes
	}
	if in.Status != nil {
		if !models.ValidStatus(*in.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrBadRequest, *in.Status)
		}
		if !models.ValidTransition(appt.Status, *in.Status) {
			return nil, models.ErrInvalidTransition
		}
		next.Status = *in.Status
	}

	slotMoved := next.Date != appt.Date || next.Time != appt.Time
	if slotMoved {
		// Terminal appointments keep their historical slot.
		if appt.Status != models.StatusScheduled {
			return nil, models.ErrInvalidTransition
		}
		if err := s.validateSlot(next.Date, next.Time); err != nil {
			return nil, err
		}
	}

	updated, err := s.appts.Update(ctx, &next, s.cfg.SlotCapacity, slotMoved)
	if err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryUser,
		EventType: models.EventUpdateAppointment,
		Message:   "appointment updated",
		UserID:    principal.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata: map[string]any{
			"appointment_id": updated.ID,
			"status_from":    appt.Status,
			"status_to":      updated.Status,
			"slot_moved":     slotMoved,
		},
	})

	return toAppointmentResponse(updated), nil
}

// Cancel moves the appointment to cancelled, freeing its slot seat.
// Cancelling an already-cancelled appointment is a no-op that succeeds. The
// client, the trainer, or an admin may cancel.
func (s *BookingService) Cancel(ctx context.Context, principal models.Principal, id string, meta RequestMeta) (*AppointmentResponse, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(principal, appt) {
		return nil, s.denyAccess(ctx, principal, appt, "cancel", meta)
	}

	if appt.Status == models.StatusCancelled {
		return toAppointmentResponse(appt), nil
	}
	if !models.ValidTransition(appt.Status, models.StatusCancelled) {
		return nil, models.ErrInvalidTransition
	}

	next := *appt
	next.Status = models.StatusCancelled

	updated, err := s.appts.Update(ctx, &next, s.cfg.SlotCapacity, false)
	if err != nil {
		return nil, err
	}
	s.countBooking("cancelled")

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryUser,
		EventType: models.EventCancelAppointment,
		Message:   "appointment cancelled",
		UserID:    principal.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata:  map[string]any{"appointment_id": updated.ID},
	})

	return toAppointmentResponse(updated), nil
}

// Delete removes the appointment row entirely, unlike cancel which keeps the
// history. Permitted to an admin, the owning trainer, or the booking client.
func (s *BookingService) Delete(ctx context.Context, principal models.Principal, id string, meta RequestMeta) error {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canAccess(principal, appt) {
		return s.denyAccess(ctx, principal, appt, "delete", meta)
	}

	if err := s.appts.Delete(ctx, id); err != nil {
		return err
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryUser,
		EventType: models.EventDeleteAppointment,
		Message:   "appointment deleted",
		UserID:    principal.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata:  map[string]any{"appointment_id": id},
	})
	return nil
}
