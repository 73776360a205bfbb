package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jojo6550/jefitness-sub002/internal/database"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

// AuditLogRepository is the persistent, append-only half of the audit sink.
type AuditLogRepository struct {
	db *database.DB
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Insert appends one event. Events are written once and never updated.
func (r *AuditLogRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_logs (id, level, category, event_type, message,
			user_id, ip_address, user_agent, request_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var userID *string
	if event.UserID != "" {
		userID = &event.UserID
	}

	_, err := r.db.Pool.Exec(ctx, query,
		uuid.New().String(), event.Level, event.Category, event.EventType, event.Message,
		userID, nullable(event.IP), nullable(event.UserAgent), nullable(event.RequestID),
		event.Metadata, event.Timestamp,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// ListRecent returns the newest events, most recent first. Backs the admin
// audit view.
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	query := `
		SELECT level, category, event_type, message,
			COALESCE(user_id::text, ''), COALESCE(ip_address, ''),
			COALESCE(user_agent, ''), COALESCE(request_id, ''), metadata, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)
	for rows.Next() {
		var event models.AuditEvent
		err := rows.Scan(&event.Level, &event.Category, &event.EventType, &event.Message,
			&event.UserID, &event.IP, &event.UserAgent, &event.RequestID,
			&event.Metadata, &event.Timestamp)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return events, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
