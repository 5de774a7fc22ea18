package repository_test

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhirschtritt/userposts/internal/domain"
	"github.com/zhirschtritt/userposts/internal/repository"
	"github.com/zhirschtritt/userposts/internal/repository/testutil"
)

func TestDBPostRepository(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	users := repository.NewDBUserRepository(pool)
	repo := repository.NewDBPostRepository(pool)
	ctx := context.Background()

	author, err := users.Create(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	first, err := repo.Create(ctx, author.ID, gofakeit.Sentence(4), gofakeit.Paragraph(1, 2, 8, " "))
	require.NoError(t, err)
	second, err := repo.Create(ctx, author.ID, "second", "body")
	require.NoError(t, err)
	// No foreign key: a post may reference a user the database does not know.
	orphan, err := repo.Create(ctx, author.ID+1000, "orphan", "body")
	require.NoError(t, err)

	t.Run("get joins author", func(t *testing.T) {
		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.UserName)
		assert.Equal(t, "alice@example.com", got.UserEmail)

		_, err = repo.GetByID(ctx, orphan.ID)
		require.ErrorIs(t, err, domain.ErrPostNotFound)
	})

	t.Run("list hides posts without author", func(t *testing.T) {
		posts, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, second.ID, posts[0].ID)
		assert.Equal(t, "Alice", posts[1].UserName)
	})

	t.Run("list by user", func(t *testing.T) {
		posts, err := repo.ListByUser(ctx, author.ID+1000)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, orphan.ID, posts[0].ID)
		assert.Empty(t, posts[0].UserName)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &domain.PostStats{TotalPosts: 3, UsersWithPosts: 2}, stats)
	})

	t.Run("update and delete", func(t *testing.T) {
		updated, err := repo.Update(ctx, second.ID, domain.PostPatch{Content: strPtr("edited")})
		require.NoError(t, err)
		assert.Equal(t, "second", updated.Title)
		assert.Equal(t, "edited", updated.Content)

		deleted, err := repo.Delete(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", deleted.Content)

		_, err = repo.Delete(ctx, second.ID)
		require.ErrorIs(t, err, domain.ErrPostNotFound)

		_, err = repo.Update(ctx, second.ID, domain.PostPatch{Title: strPtr("x")})
		require.ErrorIs(t, err, domain.ErrPostNotFound)
	})
}
