package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/usermap/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

const userColumns = `id, email, password_hash, name, website, role, latitude, longitude,
	email_updates, is_confirmed, is_active, confirmation_key, session_version, created_at, updated_at`

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	MarkConfirmed(ctx context.Context, id string) (bool, error)
	ReplacePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
	SetActive(ctx context.Context, id string, active bool) error
	ListPublic(ctx context.Context, role model.Role) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

type userRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db, now: time.Now}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	now := r.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Website,
		user.Role,
		user.Latitude,
		user.Longitude,
		user.EmailUpdates,
		user.IsConfirmed,
		user.IsActive,
		user.ConfirmationKey,
		user.SessionVersion,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "email") {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateProfile writes the fields the account holder may edit.
// Role, status flags and credentials are not touched.
func (r *userRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = r.now()
	query := `
		UPDATE users
		SET email = $1, name = $2, website = $3, latitude = $4, longitude = $5,
			email_updates = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Email, user.Name, user.Website, user.Latitude, user.Longitude,
		user.EmailUpdates, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "email") {
			return ErrDuplicateEmail
		}
		return err
	}

	return requireRow(result)
}

// MarkConfirmed atomically flips is_confirmed from false to true.
// Only one concurrent caller gets true; the others see the latch already set.
func (r *userRepository) MarkConfirmed(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE users
		SET is_confirmed = TRUE, updated_at = $1
		WHERE id = $2
		AND is_confirmed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, r.now(), id)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// ReplacePasswordHash swaps the hash only if it still equals oldHash and
// bumps session_version so every existing session stops validating.
func (r *userRepository) ReplacePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $1, session_version = session_version + 1, updated_at = $2
		WHERE id = $3
		AND password_hash = $4
	`

	result, err := r.db.ExecContext(ctx, query, newHash, r.now(), id, oldHash)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

func (r *userRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, active, r.now(), id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// ListPublic returns confirmed, active users with the given role.
func (r *userRepository) ListPublic(ctx context.Context, role model.Role) ([]model.User, error) {
	users := []model.User{}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1
		AND is_confirmed = TRUE
		AND is_active = TRUE
		ORDER BY created_at
	`

	err := r.db.SelectContext(ctx, &users, query, role)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	err := r.db.SelectContext(ctx, &users, query)
	if err != nil {
		return nil, err
	}

	return users, nil
}

// isUniqueViolation works for both SQLite and PostgreSQL
func isUniqueViolation(err error, column string) bool {
	errStr := err.Error()
	unique := strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
	return unique && strings.Contains(errStr, column)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
