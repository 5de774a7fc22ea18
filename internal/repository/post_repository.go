package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/userposts/internal/domain"
)

var _ domain.PostRepository = new(DBPostRepository)

const postColumns = `id, user_id, title, content, created_at, updated_at`

const (
	// The author join reads the users table directly: both services share the instance.
	sqlListPosts = `
		SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
		       u.name, u.email
		FROM posts p
		JOIN users u ON p.user_id = u.id
		ORDER BY p.created_at DESC, p.id DESC
	`

	sqlGetPost = `
		SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
		       u.name, u.email
		FROM posts p
		JOIN users u ON p.user_id = u.id
		WHERE p.id = $1
	`

	sqlListPostsByUser = `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	sqlInsertPost = `
		INSERT INTO posts (user_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING ` + postColumns

	sqlUpdatePost = `
		UPDATE posts
		SET title = COALESCE($2, title),
		    content = COALESCE($3, content),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + postColumns

	sqlDeletePost = `
		DELETE FROM posts
		WHERE id = $1
		RETURNING ` + postColumns

	sqlPostStats = `
		SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM posts
	`
)

type DBPostRepository struct {
	db *pgxpool.Pool
}

func NewDBPostRepository(db *pgxpool.Pool) *DBPostRepository {
	return &DBPostRepository{
		db: db,
	}
}

func (r *DBPostRepository) List(ctx context.Context) ([]domain.Post, error) {
	rows, err := r.db.Query(ctx, sqlListPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	posts, err := pgx.CollectRows(rows, scanPostWithAuthor)
	if err != nil {
		return nil, fmt.Errorf("failed to scan posts: %w", err)
	}
	return posts, nil
}

func (r *DBPostRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	rows, err := r.db.Query(ctx, sqlGetPost, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query post: %w", err)
	}

	post, err := pgx.CollectExactlyOneRow(rows, scanPostWithAuthor)
	if err != nil {
		return nil, mapPostError(err)
	}
	return &post, nil
}

func (r *DBPostRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Post, error) {
	rows, err := r.db.Query(ctx, sqlListPostsByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	posts, err := pgx.CollectRows(rows, scanPost)
	if err != nil {
		return nil, fmt.Errorf("failed to scan posts: %w", err)
	}
	return posts, nil
}

func (r *DBPostRepository) Create(ctx context.Context, userID int64, title, content string) (*domain.Post, error) {
	post, err := r.queryOne(ctx, sqlInsertPost, userID, title, content)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	return post, nil
}

func (r *DBPostRepository) Update(ctx context.Context, id int64, patch domain.PostPatch) (*domain.Post, error) {
	post, err := r.queryOne(ctx, sqlUpdatePost, id, patch.Title, patch.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

func (r *DBPostRepository) Delete(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := r.queryOne(ctx, sqlDeletePost, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	return post, nil
}

func (r *DBPostRepository) Stats(ctx context.Context) (*domain.PostStats, error) {
	var stats domain.PostStats
	if err := r.db.QueryRow(ctx, sqlPostStats).Scan(&stats.TotalPosts, &stats.UsersWithPosts); err != nil {
		return nil, fmt.Errorf("failed to query post stats: %w", err)
	}
	return &stats, nil
}

func (r *DBPostRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.Post, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostError(err)
	}

	post, err := pgx.CollectExactlyOneRow(rows, scanPost)
	if err != nil {
		return nil, mapPostError(err)
	}
	return &post, nil
}

func scanPost(row pgx.CollectableRow) (domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanPostWithAuthor(row pgx.CollectableRow) (domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt, &p.UserName, &p.UserEmail)
	return p, err
}

func mapPostError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrPostNotFound
	}
	return err
}
