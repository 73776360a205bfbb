package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jojo6550/jefitness-sub002/internal/database"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, token_version,
	email_verified, failed_login_attempts, lockout_until, created_at, updated_at`

// UserRepository is the credential store. It exclusively owns the
// security-sensitive fields on the user row: password hash, token version,
// and the lockout counters.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockoutUntil *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Role, &user.TokenVersion, &user.EmailVerified,
		&user.FailedLoginAttempts, &lockoutUntil,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LockoutUntil = lockoutUntil
	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByEmail looks the user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanUserRows(rows)
}

// Create inserts a new user. Duplicate emails surface as ErrDuplicate via the
// unique index on LOWER(email).
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	if user.Role == "" {
		user.Role = models.RoleUser
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role,
			token_version, email_verified, failed_login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.TokenVersion, user.EmailVerified, user.FailedLoginAttempts,
		user.CreatedAt, user.UpdatedAt,
	))
}

// UpdatePassword swaps the hash and bumps token_version in one statement, so
// every token minted before the change is below the new floor. Lockout
// counters reset alongside.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, newHash string) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = $2,
		    token_version = token_version + 1,
		    failed_login_attempts = 0,
		    lockout_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id, newHash))
}

// IncrementTokenVersion raises the revocation floor, invalidating every
// outstanding token for the user. Used for forced logout.
func (r *UserRepository) IncrementTokenVersion(ctx context.Context, id string) (*models.User, error) {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// RecordFailedLogin increments the failure counter and, when the threshold is
// crossed, sets the lockout window, atomically in a single statement. A streak
// goes stale once a full lockout window passes without another attempt; the
// counter then restarts at one instead of accumulating forever. The updated
// row is returned so the caller can see whether the lock engaged.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = CASE
		        WHEN updated_at < NOW() - make_interval(secs => $3) THEN 1
		        ELSE failed_login_attempts + 1
		    END,
		    lockout_until = CASE
		        WHEN (CASE
		            WHEN updated_at < NOW() - make_interval(secs => $3) THEN 1
		            ELSE failed_login_attempts + 1
		        END) >= $2 THEN NOW() + make_interval(secs => $3)
		        ELSE lockout_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id, threshold, lockout.Seconds()))
}

// ClearLockout zeroes the failure counters after a successful authentication.
func (r *UserRepository) ClearLockout(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, lockout_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	query := `
		UPDATE users
		SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id, role))
}

// Anonymize redacts the identity fields but keeps the row, preserving
// referential integrity of historical appointments. The token_version bump
// revokes any outstanding sessions.
func (r *UserRepository) Anonymize(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET email = 'erased+' || id || '@redacted.invalid',
		    password_hash = '',
		    first_name = 'Deleted',
		    last_name = 'User',
		    email_verified = FALSE,
		    token_version = token_version + 1,
		    failed_login_attempts = 0,
		    lockout_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
