package domain

import (
	"context"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,contains=@"`
}

// UpdateUserRequest carries a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UserPatch is a normalized UpdateUserRequest: every non-nil field is trimmed and non-empty.
type UserPatch struct {
	Name  *string `validate:"omitempty"`
	Email *string `validate:"omitempty,contains=@"`
}

func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}

type UserStats struct {
	Total int64 `json:"total"`
}

type UserRepository interface {
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, name, email string) (*User, error)
	Update(ctx context.Context, id int64, patch UserPatch) (*User, error)
	Delete(ctx context.Context, id int64) (*User, error)
	Count(ctx context.Context) (int64, error)
}
