package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jojo6550/jefitness-sub002/internal/database"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

const appointmentColumns = `a.id, a.client_id, a.trainer_id,
	to_char(a.date, 'YYYY-MM-DD'), to_char(a.slot_time, 'HH24:MI'),
	a.status, a.notes, a.created_at, a.updated_at`

// appointmentReturning mirrors appointmentColumns without the table alias,
// for RETURNING clauses on single-table statements.
const appointmentReturning = `id, client_id, trainer_id,
	to_char(date, 'YYYY-MM-DD'), to_char(slot_time, 'HH24:MI'),
	status, notes, created_at, updated_at`

const appointmentJoins = `
	JOIN users c ON c.id = a.client_id
	JOIN users t ON t.id = a.trainer_id`

const appointmentNameColumns = `,
	TRIM(c.first_name || ' ' || c.last_name), TRIM(t.first_name || ' ' || t.last_name)`

// AppointmentListOptions drives the admin list query.
type AppointmentListOptions struct {
	Page      int
	Limit     int
	Status    string
	Search    string
	SortBy    string
	SortOrder string
}

// sortColumns whitelists admin sort keys to their SQL expressions.
var sortColumns = map[string]string{
	"date":      "a.date",
	"time":      "a.slot_time",
	"status":    "a.status",
	"createdAt": "a.created_at",
}

// AppointmentRepository is the appointment store. Capacity and per-client
// uniqueness are enforced here, inside a transaction that serializes writers
// on the affected slot and client-day, so two concurrent bookings cannot both
// pass the pre-checks.
type AppointmentRepository struct {
	db *database.DB
}

func NewAppointmentRepository(db *database.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func scanAppointmentRow(scanner rowScanner, withNames bool) (*models.Appointment, error) {
	var appt models.Appointment

	dest := []interface{}{
		&appt.ID, &appt.ClientID, &appt.TrainerID,
		&appt.Date, &appt.Time,
		&appt.Status, &appt.Notes, &appt.CreatedAt, &appt.UpdatedAt,
	}
	if withNames {
		dest = append(dest, &appt.ClientName, &appt.TrainerName)
	}

	if err := scanner.Scan(dest...); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &appt, nil
}

func scanAppointmentRows(rows pgx.Rows, withNames bool) ([]*models.Appointment, error) {
	defer rows.Close()

	appts := make([]*models.Appointment, 0)

	for rows.Next() {
		appt, err := scanAppointmentRow(rows, withNames)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return appts, nil
}

// acquireSlotLocks takes transaction-scoped advisory locks on the slot and
// the client-day, serializing concurrent bookings that touch either. The
// locks release automatically on commit or rollback.
func acquireSlotLocks(ctx context.Context, tx pgx.Tx, appt *models.Appointment) error {
	slotKey := fmt.Sprintf("slot:%s:%s:%s", appt.TrainerID, appt.Date, appt.Time)
	dayKey := fmt.Sprintf("client-day:%s:%s", appt.ClientID, appt.Date)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotKey); err != nil {
		return database.MapPostgresError(err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, dayKey); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// checkBookingInvariants verifies the per-slot capacity and per-client-per-day
// uniqueness inside the locked transaction. excludeID skips the appointment
// being rescheduled.
func checkBookingInvariants(ctx context.Context, tx pgx.Tx, appt *models.Appointment, slotCapacity int, excludeID string) error {
	var clientCount int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE client_id = $1 AND date = $2::date AND status <> 'cancelled' AND id <> $3
	`, appt.ClientID, appt.Date, excludeID).Scan(&clientCount)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if clientCount > 0 {
		return models.ErrClientAlreadyBooked
	}

	var slotCount int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE trainer_id = $1 AND date = $2::date AND slot_time = $3::time
		  AND status <> 'cancelled' AND id <> $4
	`, appt.TrainerID, appt.Date, appt.Time, excludeID).Scan(&slotCount)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if slotCount >= slotCapacity {
		return models.ErrSlotFull
	}

	return nil
}

// Create inserts a scheduled appointment, enforcing the booking invariants
// atomically with the insert.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment, slotCapacity int) (*models.Appointment, error) {
	appt.ID = uuid.New().String()
	appt.Status = models.StatusScheduled

	var created *models.Appointment
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := acquireSlotLocks(ctx, tx, appt); err != nil {
			return err
		}
		if err := checkBookingInvariants(ctx, tx, appt, slotCapacity, appt.ID); err != nil {
			return err
		}

		query := `
			INSERT INTO appointments (id, client_id, trainer_id, date, slot_time, status, notes)
			VALUES ($1, $2, $3, $4::date, $5::time, $6, $7)
			RETURNING ` + appointmentReturning

		var err error
		created, err = scanAppointmentRow(tx.QueryRow(ctx, query,
			appt.ID, appt.ClientID, appt.TrainerID, appt.Date, appt.Time, appt.Status, appt.Notes,
		), false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + appointmentNameColumns + `
		FROM appointments a` + appointmentJoins + `
		WHERE a.id = $1`

	return scanAppointmentRow(r.db.Pool.QueryRow(ctx, query, id), true)
}

// ListByUser returns every appointment where the user is client or trainer,
// sorted by date then time ascending.
func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + appointmentNameColumns + `
		FROM appointments a` + appointmentJoins + `
		WHERE a.client_id = $1 OR a.trainer_id = $1
		ORDER BY a.date ASC, a.slot_time ASC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanAppointmentRows(rows, true)
}

// ListAdmin returns one page of appointments plus the unpaginated total.
// Search matches case-insensitively against the populated client and trainer
// names; sort keys outside the whitelist fall back to the slot ordering.
func (r *AppointmentRepository) ListAdmin(ctx context.Context, opts AppointmentListOptions) ([]*models.Appointment, int, error) {
	where := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		where = append(where, fmt.Sprintf(
			"((c.first_name || ' ' || c.last_name) ILIKE $%d OR (t.first_name || ' ' || t.last_name) ILIKE $%d)",
			len(args), len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM appointments a` + appointmentJoins + whereClause

	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, database.MapPostgresError(err)
	}

	orderBy := "a.date ASC, a.slot_time ASC"
	if col, ok := sortColumns[opts.SortBy]; ok {
		direction := "ASC"
		if strings.EqualFold(opts.SortOrder, "desc") {
			direction = "DESC"
		}
		orderBy = col + " " + direction + ", a.slot_time ASC"
	}

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	listQuery := fmt.Sprintf(`SELECT `+appointmentColumns+appointmentNameColumns+`
		FROM appointments a`+appointmentJoins+whereClause+`
		ORDER BY %s LIMIT $%d OFFSET $%d`, orderBy, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, database.MapPostgresError(err)
	}

	appts, err := scanAppointmentRows(rows, true)
	if err != nil {
		return nil, 0, err
	}

	return appts, total, nil
}

// Update persists field changes. When revalidate is set (the slot moved), the
// booking invariants are re-checked against the new slot under the same locks
// used by Create.
func (r *AppointmentRepository) Update(ctx context.Context, appt *models.Appointment, slotCapacity int, revalidate bool) (*models.Appointment, error) {
	var updated *models.Appointment
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if revalidate {
			if err := acquireSlotLocks(ctx, tx, appt); err != nil {
				return err
			}
			if err := checkBookingInvariants(ctx, tx, appt, slotCapacity, appt.ID); err != nil {
				return err
			}
		}

		query := `
			UPDATE appointments
			SET date = $2::date, slot_time = $3::time, status = $4, notes = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + appointmentReturning

		var err error
		updated, err = scanAppointmentRow(tx.QueryRow(ctx, query,
			appt.ID, appt.Date, appt.Time, appt.Status, appt.Notes,
		), false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountForSlot reports the non-cancelled bookings in one slot. Used by the
// integration tests to check the capacity invariant.
func (r *AppointmentRepository) CountForSlot(ctx context.Context, trainerID, date, slotTime string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE trainer_id = $1 AND date = $2::date AND slot_time = $3::time AND status <> 'cancelled'
	`, trainerID, date, slotTime).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
