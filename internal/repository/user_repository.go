package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/userposts/internal/domain"
)

var _ domain.UserRepository = new(DBUserRepository)

const (
	sqlListUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		ORDER BY created_at DESC, id DESC
	`

	sqlGetUser = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	sqlInsertUser = `
		INSERT INTO users (name, email)
		VALUES ($1, $2)
		RETURNING id, name, email, created_at, updated_at
	`

	// Absent patch fields are bound as NULL and keep the current value.
	sqlUpdateUser = `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING id, name, email, created_at, updated_at
	`

	sqlDeleteUser = `
		DELETE FROM users
		WHERE id = $1
		RETURNING id, name, email, created_at, updated_at
	`

	sqlCountUsers = `SELECT COUNT(*) FROM users`
)

type DBUserRepository struct {
	db *pgxpool.Pool
}

func NewDBUserRepository(db *pgxpool.Pool) *DBUserRepository {
	return &DBUserRepository{
		db: db,
	}
}

func (r *DBUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, sqlListUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

func (r *DBUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.queryOne(ctx, sqlGetUser, id)
}

func (r *DBUserRepository) Create(ctx context.Context, name, email string) (*domain.User, error) {
	user, err := r.queryOne(ctx, sqlInsertUser, name, email)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (r *DBUserRepository) Update(ctx context.Context, id int64, patch domain.UserPatch) (*domain.User, error) {
	user, err := r.queryOne(ctx, sqlUpdateUser, id, patch.Name, patch.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (r *DBUserRepository) Delete(ctx context.Context, id int64) (*domain.User, error) {
	user, err := r.queryOne(ctx, sqlDeleteUser, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	return user, nil
}

func (r *DBUserRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, sqlCountUsers).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

func (r *DBUserRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapUserError(err)
	}

	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return nil, mapUserError(err)
	}
	return &user, nil
}

func scanUser(row pgx.CollectableRow) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func mapUserError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrUserNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrEmailAlreadyExists, err)
	default:
		return err
	}
}
