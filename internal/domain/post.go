package domain

import (
	"context"
	"time"
)

// Post is a post row. UserName and UserEmail are filled only when the author has been
// resolved, either through a local join or from the users service at creation time.
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserName  string    `json:"user_name,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
}

// UserSnapshot is the public view of a user as returned by the users service.
type UserSnapshot struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreatePostRequest struct {
	UserID  int64  `json:"user_id" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type UpdatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// PostPatch is a normalized UpdatePostRequest.
type PostPatch struct {
	Title   *string
	Content *string
}

func (p PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}

type PostStats struct {
	TotalPosts     int64 `json:"total_posts"`
	UsersWithPosts int64 `json:"users_with_posts"`
}

type PostRepository interface {
	List(ctx context.Context) ([]Post, error)
	GetByID(ctx context.Context, id int64) (*Post, error)
	ListByUser(ctx context.Context, userID int64) ([]Post, error)
	Create(ctx context.Context, userID int64, title, content string) (*Post, error)
	Update(ctx context.Context, id int64, patch PostPatch) (*Post, error)
	Delete(ctx context.Context, id int64) (*Post, error)
	Stats(ctx context.Context) (*PostStats, error)
}

// UserDirectory resolves users owned by the users service.
//
// Lookup returns ErrUserNotFound when the user does not exist and
// ErrUsersServiceUnavailable for every other failure.
type UserDirectory interface {
	Lookup(ctx context.Context, id int64) (*UserSnapshot, error)
}
