package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/repositories"
	"github.com/jojo6550/jefitness-sub002/internal/services"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTrainerUUID = "0c9d4a1e-9d3f-4f0a-bb59-6f9f6f2b8c01"

func sampleAppointment() *services.AppointmentResponse {
	return &services.AppointmentResponse{
		ID:        "appt-1",
		ClientID:  "client-1",
		TrainerID: testTrainerUUID,
		Date:      "2026-04-02",
		Time:      "09:00",
		Status:    models.StatusScheduled,
	}
}

// appointmentRouter mounts the handler behind the same URL params the real
// router uses, so chi.URLParam resolves in tests.
func appointmentRouter(h *AppointmentHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/appointments", h.Create)
	r.Get("/appointments", h.ListAll)
	r.Get("/appointments/user", h.ListMine)
	r.Get("/appointments/{id}", h.Get)
	r.Put("/appointments/{id}", h.Update)
	r.Post("/appointments/{id}/cancel", h.Cancel)
	r.Delete("/appointments/{id}", h.Delete)
	return r
}

func validCreateBody() map[string]string {
	return map[string]string{
		"trainerId": testTrainerUUID,
		"date":      "2026-04-02",
		"time":      "09:00",
	}
}

func TestAppointmentHandler_Create(t *testing.T) {
	service := &MockBookingService{
		CreateFunc: func(ctx context.Context, principal models.Principal, in services.CreateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error) {
			assert.Equal(t, "client-1", principal.ID)
			assert.Equal(t, testTrainerUUID, in.TrainerID)
			return sampleAppointment(), nil
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(NewTestRequest(t, http.MethodPost, "/appointments", validCreateBody()), "client-1", models.RoleUser)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"trainerId"`)
	assert.Contains(t, w.Body.String(), `"date":"2026-04-02"`)
}

func TestAppointmentHandler_Create_BadPayload(t *testing.T) {
	router := appointmentRouter(NewAppointmentHandler(&MockBookingService{}, &pkghttp.IPConfig{}))

	bodies := []map[string]string{
		{"date": "2026-04-02", "time": "09:00"},
		{"trainerId": "not-a-uuid", "date": "2026-04-02", "time": "09:00"},
		{"trainerId": testTrainerUUID, "date": "04/02/2026", "time": "09:00"},
		{"trainerId": testTrainerUUID, "date": "2026-04-02", "time": "quarter past"},
	}

	for _, body := range bodies {
		w := httptest.NewRecorder()
		r := AsUser(NewTestRequest(t, http.MethodPost, "/appointments", body), "client-1", models.RoleUser)
		router.ServeHTTP(w, r)
		AssertErrorResponse(t, w, http.StatusBadRequest)
	}
}

func TestAppointmentHandler_Create_Conflicts(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantText string
	}{
		{models.ErrSlotFull, http.StatusBadRequest, "fully booked"},
		{models.ErrClientAlreadyBooked, http.StatusBadRequest, "one appointment per day"},
		{models.ErrOutsideBookingWindow, http.StatusBadRequest, "between 05:00 and 13:00"},
		{models.ErrPastBooking, http.StatusBadRequest, "future"},
		{models.ErrInvalidTrainer, http.StatusBadRequest, "trainer"},
	}

	for _, tt := range tests {
		service := &MockBookingService{
			CreateFunc: func(ctx context.Context, principal models.Principal, in services.CreateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error) {
				return nil, tt.err
			},
		}
		router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

		w := httptest.NewRecorder()
		r := AsUser(NewTestRequest(t, http.MethodPost, "/appointments", validCreateBody()), "client-1", models.RoleUser)
		router.ServeHTTP(w, r)

		resp := AssertErrorResponse(t, w, tt.wantCode)
		assert.Contains(t, resp.Error, tt.wantText)
	}
}

func TestAppointmentHandler_Get(t *testing.T) {
	service := &MockBookingService{
		GetFunc: func(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error) {
			if id != "appt-1" {
				return nil, models.ErrNotFound
			}
			return sampleAppointment(), nil
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(httptest.NewRequest(http.MethodGet, "/appointments/appt-1", nil), "client-1", models.RoleUser)
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r = AsUser(httptest.NewRequest(http.MethodGet, "/appointments/missing", nil), "client-1", models.RoleUser)
	router.ServeHTTP(w, r)
	AssertErrorResponse(t, w, http.StatusNotFound)
}

func TestAppointmentHandler_Get_Forbidden(t *testing.T) {
	service := &MockBookingService{
		GetFunc: func(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error) {
			return nil, models.ErrForbidden
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(httptest.NewRequest(http.MethodGet, "/appointments/appt-1", nil), "stranger", models.RoleUser)
	router.ServeHTTP(w, r)
	AssertErrorResponse(t, w, http.StatusForbidden)
}

func TestAppointmentHandler_ListMine(t *testing.T) {
	service := &MockBookingService{
		ListMineFunc: func(ctx context.Context, principal models.Principal) ([]*services.AppointmentResponse, error) {
			return []*services.AppointmentResponse{sampleAppointment()}, nil
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(httptest.NewRequest(http.MethodGet, "/appointments/user", nil), "client-1", models.RoleUser)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ListAppointmentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Appointments, 1)
}

func TestAppointmentHandler_ListAll(t *testing.T) {
	service := &MockBookingService{
		ListAdminFunc: func(ctx context.Context, opts repositories.AppointmentListOptions) (*services.AppointmentPage, error) {
			assert.Equal(t, 2, opts.Page)
			assert.Equal(t, models.StatusScheduled, opts.Status)
			assert.Equal(t, "jane", opts.Search)
			return &services.AppointmentPage{
				Appointments: []*services.AppointmentResponse{sampleAppointment()},
				Pagination: services.Pagination{
					CurrentPage: 2, TotalPages: 3, TotalAppointments: 25,
					HasNext: true, HasPrev: true,
				},
			}, nil
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(httptest.NewRequest(http.MethodGet, "/appointments?page=2&status=scheduled&search=jane", nil),
		"admin-1", models.RoleAdmin)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"currentPage":2`)
	assert.Contains(t, w.Body.String(), `"totalAppointments":25`)

	// Unknown status filter is rejected before touching the store
	w = httptest.NewRecorder()
	r = AsUser(httptest.NewRequest(http.MethodGet, "/appointments?status=pending", nil), "admin-1", models.RoleAdmin)
	router.ServeHTTP(w, r)
	AssertErrorResponse(t, w, http.StatusBadRequest)
}

func TestAppointmentHandler_Update(t *testing.T) {
	service := &MockBookingService{
		UpdateFunc: func(ctx context.Context, principal models.Principal, id string, in services.UpdateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error) {
			require.NotNil(t, in.Status)
			appt := sampleAppointment()
			appt.Status = *in.Status
			return appt, nil
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(NewTestRequest(t, http.MethodPut, "/appointments/appt-1", map[string]string{"status": "completed"}),
		testTrainerUUID, models.RoleTrainer)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	// Statuses outside the model vocabulary fail validation
	w = httptest.NewRecorder()
	r = AsUser(NewTestRequest(t, http.MethodPut, "/appointments/appt-1", map[string]string{"status": "archived"}),
		testTrainerUUID, models.RoleTrainer)
	router.ServeHTTP(w, r)
	AssertErrorResponse(t, w, http.StatusBadRequest)
}

func TestAppointmentHandler_Cancel(t *testing.T) {
	service := &MockBookingService{
		CancelFunc: func(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error) {
			appt := sampleAppointment()
			appt.Status = models.StatusCancelled
			return appt, nil
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(httptest.NewRequest(http.MethodPost, "/appointments/appt-1/cancel", nil), "client-1", models.RoleUser)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)
}

func TestAppointmentHandler_Delete(t *testing.T) {
	var deletedID string
	service := &MockBookingService{
		DeleteFunc: func(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) error {
			deletedID = id
			return nil
		},
	}
	router := appointmentRouter(NewAppointmentHandler(service, &pkghttp.IPConfig{}))

	w := httptest.NewRecorder()
	r := AsUser(httptest.NewRequest(http.MethodDelete, "/appointments/appt-1", nil), "admin-1", models.RoleAdmin)
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "appt-1", deletedID)
}
