package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhirschtritt/userposts/internal/domain"
	"github.com/zhirschtritt/userposts/internal/repository/memory"
)

var ann = domain.UserSnapshot{ID: 7, Name: "Ann", Email: "ann@example.com"}

type postFixture struct {
	svc       *domain.PostService
	repo      *memory.PostRepository
	directory *stubDirectory
	consumer  *recordingConsumer
}

func newPostFixture() postFixture {
	repo := memory.NewPostRepository(nil)
	directory := &stubDirectory{users: map[int64]domain.UserSnapshot{ann.ID: ann}}
	consumer := &recordingConsumer{}
	return postFixture{
		svc:       domain.NewPostService(repo, directory, consumer, discardLogger()),
		repo:      repo,
		directory: directory,
		consumer:  consumer,
	}
}

func (f postFixture) totalPosts(t *testing.T) int64 {
	t.Helper()
	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	return stats.TotalPosts
}

func TestCreatePost_EnrichesWithAuthor(t *testing.T) {
	f := newPostFixture()
	title := gofakeit.Sentence(5)

	post, err := f.svc.CreatePost(context.Background(), domain.CreatePostRequest{
		UserID:  ann.ID,
		Title:   " " + title + " ",
		Content: gofakeit.Paragraph(1, 3, 10, " "),
	})
	require.NoError(t, err)

	assert.NotZero(t, post.ID)
	assert.Equal(t, ann.ID, post.UserID)
	assert.Equal(t, title, post.Title)
	assert.Equal(t, ann.Name, post.UserName)
	assert.Equal(t, ann.Email, post.UserEmail)
	assert.Equal(t, 1, f.directory.calls)
	assert.Equal(t, []string{domain.EventPostCreated}, f.consumer.types())
}

func TestCreatePost_UnknownUserPersistsNothing(t *testing.T) {
	f := newPostFixture()

	_, err := f.svc.CreatePost(context.Background(), domain.CreatePostRequest{UserID: 99, Title: "t", Content: "c"})

	require.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NotErrorIs(t, err, domain.ErrUsersServiceUnavailable)
	assert.Zero(t, f.totalPosts(t))
	assert.Empty(t, f.consumer.types())
}

func TestCreatePost_UsersServiceDownLooksLikeUnknownUser(t *testing.T) {
	f := newPostFixture()
	f.directory.err = errors.Join(domain.ErrUsersServiceUnavailable, context.DeadlineExceeded)

	_, err := f.svc.CreatePost(context.Background(), domain.CreatePostRequest{UserID: ann.ID, Title: "t", Content: "c"})

	require.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, err, domain.ErrUsersServiceUnavailable)
	assert.Zero(t, f.totalPosts(t))
}

func TestCreatePost_ValidationSkipsRemoteCheck(t *testing.T) {
	tests := []struct {
		name string
		req  domain.CreatePostRequest
	}{
		{"missing user", domain.CreatePostRequest{Title: "t", Content: "c"}},
		{"missing title", domain.CreatePostRequest{UserID: ann.ID, Content: "c"}},
		{"blank content", domain.CreatePostRequest{UserID: ann.ID, Title: "t", Content: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture()

			_, err := f.svc.CreatePost(context.Background(), tt.req)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "user_id, title and content required", verr.Message)
			assert.Zero(t, f.directory.calls)
			assert.Zero(t, f.totalPosts(t))
		})
	}
}

func TestListPostsByUser(t *testing.T) {
	f := newPostFixture()
	f.repo.Seed(ann.ID, "first", "a")
	f.repo.Seed(ann.ID, "second", "b")
	f.repo.Seed(8, "other", "c")

	author, posts, err := f.svc.ListPostsByUser(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, &ann, author)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.Equal(t, ann.ID, p.UserID)
	}
}

func TestListPostsByUser_UnconfirmedUserHidesLocalRows(t *testing.T) {
	t.Run("user deleted", func(t *testing.T) {
		f := newPostFixture()
		f.repo.Seed(8, "orphan", "c")

		_, posts, err := f.svc.ListPostsByUser(context.Background(), 8)
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.Nil(t, posts)
	})

	t.Run("users service down", func(t *testing.T) {
		f := newPostFixture()
		f.repo.Seed(ann.ID, "mine", "c")
		f.directory.err = domain.ErrUsersServiceUnavailable

		_, posts, err := f.svc.ListPostsByUser(context.Background(), ann.ID)
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.Nil(t, posts)
	})
}

func TestUpdatePost(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	seeded := f.repo.Seed(ann.ID, "title", "content")

	updated, err := f.svc.UpdatePost(ctx, seeded.ID, domain.UpdatePostRequest{Content: ptr(" new content ")})
	require.NoError(t, err)
	assert.Equal(t, "title", updated.Title)
	assert.Equal(t, "new content", updated.Content)

	_, err = f.svc.UpdatePost(ctx, seeded.ID, domain.UpdatePostRequest{Title: ptr(" ")})
	require.ErrorIs(t, err, domain.ErrNoFieldsToUpdate)

	_, err = f.svc.UpdatePost(ctx, 404, domain.UpdatePostRequest{Title: ptr("x")})
	require.ErrorIs(t, err, domain.ErrPostNotFound)

	assert.Zero(t, f.directory.calls)
}

func TestDeletePost(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	seeded := f.repo.Seed(ann.ID, "title", "content")

	deleted, err := f.svc.DeletePost(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, deleted.ID)

	_, err = f.svc.GetPost(ctx, seeded.ID)
	require.ErrorIs(t, err, domain.ErrPostNotFound)
	assert.Equal(t, []string{domain.EventPostDeleted}, f.consumer.types())
}

func TestPostStats(t *testing.T) {
	f := newPostFixture()
	f.repo.Seed(1, "a", "a")
	f.repo.Seed(1, "b", "b")
	f.repo.Seed(2, "c", "c")

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &domain.PostStats{TotalPosts: 3, UsersWithPosts: 2}, stats)
}

func TestListPosts_HidesPostsOfDeletedUsers(t *testing.T) {
	users := memory.NewUserRepository()
	posts := memory.NewPostRepository(users)
	svc := domain.NewPostService(posts, users, &recordingConsumer{}, discardLogger())
	ctx := context.Background()

	author, err := users.Create(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)
	kept, err := svc.CreatePost(ctx, domain.CreatePostRequest{UserID: author.ID, Title: "t", Content: "c"})
	require.NoError(t, err)
	posts.Seed(author.ID+1, "orphan", "c")

	list, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)
	assert.Equal(t, "Ann", list[0].UserName)
}
