package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhirschtritt/userposts/internal/events"
)

type UserService struct {
	userRepo      UserRepository
	eventConsumer events.EventConsumer
	logger        *slog.Logger
	now           func() time.Time
}

func NewUserService(userRepo UserRepository, eventConsumer events.EventConsumer, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo:      userRepo,
		eventConsumer: eventConsumer,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// CreateUser validates and inserts a user. Email uniqueness is left to the database,
// which reports a duplicate as ErrEmailAlreadyExists.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if err := validate.Struct(req); err != nil {
		if hasTag(err, "required") {
			return nil, newValidationError("Name and email required")
		}
		return nil, newValidationError("Invalid email")
	}

	user, err := s.userRepo.Create(ctx, req.Name, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID)
	recordEvent(ctx, s.eventConsumer, s.logger, userEvent(EventUserCreated, user, s.now()))

	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	patch := UserPatch{
		Name:  trimmedOrNil(req.Name),
		Email: trimmedOrNil(req.Email),
	}
	if patch.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}
	if err := validate.Struct(patch); err != nil {
		return nil, newValidationError("Invalid email")
	}

	user, err := s.userRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}

	s.logger.Info("user updated", "user_id", user.ID)
	recordEvent(ctx, s.eventConsumer, s.logger, userEvent(EventUserUpdated, user, s.now()))

	return user, nil
}

// DeleteUser removes the user and returns its last state. Posts referencing the user
// are owned by another service and are not touched.
func (s *UserService) DeleteUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete user %d: %w", id, err)
	}

	s.logger.Info("user deleted", "user_id", user.ID)
	recordEvent(ctx, s.eventConsumer, s.logger, userEvent(EventUserDeleted, user, s.now()))

	return user, nil
}

func (s *UserService) Stats(ctx context.Context) (*UserStats, error) {
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return &UserStats{Total: total}, nil
}
