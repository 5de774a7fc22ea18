package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhirschtritt/userposts/internal/events"
)

type PostService struct {
	postRepo      PostRepository
	users         UserDirectory
	eventConsumer events.EventConsumer
	logger        *slog.Logger
	now           func() time.Time
}

func NewPostService(postRepo PostRepository, users UserDirectory, eventConsumer events.EventConsumer, logger *slog.Logger) *PostService {
	return &PostService{
		postRepo:      postRepo,
		users:         users,
		eventConsumer: eventConsumer,
		logger:        logger,
		now:           time.Now,
	}
}

// ListPosts returns every post with its author's name and email. Authors are resolved
// with a local join, not through the users service.
func (s *PostService) ListPosts(ctx context.Context) ([]Post, error) {
	posts, err := s.postRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id int64) (*Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return post, nil
}

// ListPostsByUser confirms the user with the users service before reading local rows.
// An unconfirmed user fails the whole call even when posts exist for that id.
func (s *PostService) ListPostsByUser(ctx context.Context, userID int64) (*UserSnapshot, []Post, error) {
	author, err := s.verifyAuthor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	posts, err := s.postRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list posts for user %d: %w", userID, err)
	}
	return author, posts, nil
}

// CreatePost confirms the author with the users service, inserts the post and enriches it
// with the author snapshot taken during the check.
//
// The check and the insert are not atomic: a user deleted in between still gets the post.
func (s *PostService) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)

	if err := validate.Struct(req); err != nil {
		return nil, newValidationError("user_id, title and content required")
	}

	author, err := s.verifyAuthor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.Create(ctx, req.UserID, req.Title, req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	post.UserName = author.Name
	post.UserEmail = author.Email

	s.logger.Info("post created", "post_id", post.ID, "user_id", post.UserID)
	recordEvent(ctx, s.eventConsumer, s.logger, postEvent(EventPostCreated, post, s.now()))

	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, id int64, req UpdatePostRequest) (*Post, error) {
	patch := PostPatch{
		Title:   trimmedOrNil(req.Title),
		Content: trimmedOrNil(req.Content),
	}
	if patch.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}

	post, err := s.postRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update post %d: %w", id, err)
	}

	s.logger.Info("post updated", "post_id", post.ID)
	recordEvent(ctx, s.eventConsumer, s.logger, postEvent(EventPostUpdated, post, s.now()))

	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, id int64) (*Post, error) {
	post, err := s.postRepo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete post %d: %w", id, err)
	}

	s.logger.Info("post deleted", "post_id", post.ID)
	recordEvent(ctx, s.eventConsumer, s.logger, postEvent(EventPostDeleted, post, s.now()))

	return post, nil
}

func (s *PostService) Stats(ctx context.Context) (*PostStats, error) {
	stats, err := s.postRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute post stats: %w", err)
	}
	return stats, nil
}

// verifyAuthor asks the users service whether userID exists. An unreachable users
// service is reported the same way as a missing user: the returned error always
// matches ErrUserNotFound, and additionally ErrUsersServiceUnavailable when the
// lookup itself failed.
func (s *PostService) verifyAuthor(ctx context.Context, userID int64) (*UserSnapshot, error) {
	author, err := s.users.Lookup(ctx, userID)
	switch {
	case err == nil:
		return author, nil
	case errors.Is(err, ErrUserNotFound):
		s.logger.Warn("user does not exist", "user_id", userID)
		return nil, fmt.Errorf("user %d: %w", userID, err)
	default:
		s.logger.Error("failed to verify user with users service", "user_id", userID, "error", err)
		return nil, fmt.Errorf("user %d: %w: %w", userID, ErrUserNotFound, err)
	}
}
