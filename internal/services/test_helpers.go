package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/repositories"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc               func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.User, error)
	ListFunc                  func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc                func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc        func(ctx context.Context, id, newHash string) (*models.User, error)
	IncrementTokenVersionFunc func(ctx context.Context, id string) (*models.User, error)
	RecordFailedLoginFunc     func(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error)
	ClearLockoutFunc          func(ctx context.Context, id string) error
	UpdateRoleFunc            func(ctx context.Context, id, role string) (*models.User, error)
	AnonymizeFunc             func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.GetByEmailFunc(ctx, email)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return m.ListFunc(ctx, limit, offset)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return m.CreateFunc(ctx, user)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, newHash string) (*models.User, error) {
	return m.UpdatePasswordFunc(ctx, id, newHash)
}

func (m *MockUserRepository) IncrementTokenVersion(ctx context.Context, id string) (*models.User, error) {
	return m.IncrementTokenVersionFunc(ctx, id)
}

func (m *MockUserRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error) {
	return m.RecordFailedLoginFunc(ctx, id, threshold, lockout)
}

func (m *MockUserRepository) ClearLockout(ctx context.Context, id string) error {
	if m.ClearLockoutFunc == nil {
		return nil
	}
	return m.ClearLockoutFunc(ctx, id)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	return m.UpdateRoleFunc(ctx, id, role)
}

func (m *MockUserRepository) Anonymize(ctx context.Context, id string) error {
	return m.AnonymizeFunc(ctx, id)
}

// MockAppointmentRepository implements AppointmentRepository for testing
type MockAppointmentRepository struct {
	CreateFunc     func(ctx context.Context, appt *models.Appointment, slotCapacity int) (*models.Appointment, error)
	GetByIDFunc    func(ctx context.Context, id string) (*models.Appointment, error)
	ListByUserFunc func(ctx context.Context, userID string) ([]*models.Appointment, error)
	ListAdminFunc  func(ctx context.Context, opts repositories.AppointmentListOptions) ([]*models.Appointment, int, error)
	UpdateFunc     func(ctx context.Context, appt *models.Appointment, slotCapacity int, revalidate bool) (*models.Appointment, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appt *models.Appointment, slotCapacity int) (*models.Appointment, error) {
	return m.CreateFunc(ctx, appt, slotCapacity)
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *MockAppointmentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Appointment, error) {
	return m.ListByUserFunc(ctx, userID)
}

func (m *MockAppointmentRepository) ListAdmin(ctx context.Context, opts repositories.AppointmentListOptions) ([]*models.Appointment, int, error) {
	return m.ListAdminFunc(ctx, opts)
}

func (m *MockAppointmentRepository) Update(ctx context.Context, appt *models.Appointment, slotCapacity int, revalidate bool) (*models.Appointment, error) {
	return m.UpdateFunc(ctx, appt, slotCapacity, revalidate)
}

func (m *MockAppointmentRepository) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

// recordingStore captures persisted audit events
type recordingStore struct {
	ch chan *models.AuditEvent
}

func newRecordingStore() *recordingStore {
	return &recordingStore{ch: make(chan *models.AuditEvent, 16)}
}

func (s *recordingStore) Insert(_ context.Context, event *models.AuditEvent) error {
	s.ch <- event
	return nil
}

// recordingAlerter captures alerted events
type recordingAlerter struct {
	name string
	ch   chan *models.AuditEvent
	err  error
}

func newRecordingAlerter(name string) *recordingAlerter {
	return &recordingAlerter{name: name, ch: make(chan *models.AuditEvent, 16)}
}

func (a *recordingAlerter) Name() string { return a.name }

func (a *recordingAlerter) Notify(_ context.Context, event *models.AuditEvent) error {
	a.ch <- event
	return a.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSink builds a console-only sink for service tests.
func newTestSink() *AuditSink {
	return NewAuditSink(discardLogger(), nil, nil)
}

func fixedTime(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}
