package domain_test

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhirschtritt/userposts/internal/domain"
	"github.com/zhirschtritt/userposts/internal/events"
	"github.com/zhirschtritt/userposts/internal/repository/memory"
)

func newUserService() (*domain.UserService, *memory.UserRepository, *recordingConsumer) {
	repo := memory.NewUserRepository()
	consumer := &recordingConsumer{}
	return domain.NewUserService(repo, consumer, discardLogger()), repo, consumer
}

func TestCreateUser_TrimsAndStores(t *testing.T) {
	svc, _, _ := newUserService()
	ctx := context.Background()

	name, email := gofakeit.Name(), gofakeit.Email()
	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Name: "  " + name + " ", Email: " " + email})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, name, user.Name)
	assert.Equal(t, email, user.Email)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.CreateUserRequest
		message string
	}{
		{"missing name", domain.CreateUserRequest{Email: "a@b.c"}, "Name and email required"},
		{"missing email", domain.CreateUserRequest{Name: "Ann"}, "Name and email required"},
		{"blank name", domain.CreateUserRequest{Name: "   ", Email: "a@b.c"}, "Name and email required"},
		{"email without at", domain.CreateUserRequest{Name: "Ann", Email: "ann.example.com"}, "Invalid email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, consumer := newUserService()

			_, err := svc.CreateUser(context.Background(), tt.req)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Message)

			count, _ := repo.Count(context.Background())
			assert.Zero(t, count)
			assert.Empty(t, consumer.types())
		})
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc, _, _ := newUserService()
	ctx := context.Background()
	email := gofakeit.Email()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Name: gofakeit.Name(), Email: email})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Name: gofakeit.Name(), Email: email})
	require.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestUpdateUser_PartialKeepsOtherFields(t *testing.T) {
	svc, _, _ := newUserService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, user.ID, domain.UpdateUserRequest{Name: ptr(" Annie ")})
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.Name)
	assert.Equal(t, "ann@example.com", updated.Email)

	updated, err = svc.UpdateUser(ctx, user.ID, domain.UpdateUserRequest{Name: ptr(""), Email: ptr("annie@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.Name)
	assert.Equal(t, "annie@example.com", updated.Email)
}

func TestUpdateUser_NoFieldsDoesNotTouchStorage(t *testing.T) {
	svc, _, consumer := newUserService()

	// The id does not exist: reaching storage would report ErrUserNotFound instead.
	for _, req := range []domain.UpdateUserRequest{
		{},
		{Name: ptr("  "), Email: ptr("")},
	} {
		_, err := svc.UpdateUser(context.Background(), 42, req)
		require.ErrorIs(t, err, domain.ErrNoFieldsToUpdate)
	}
	assert.Empty(t, consumer.types())
}

func TestUpdateUser_Errors(t *testing.T) {
	svc, _, _ := newUserService()
	ctx := context.Background()

	ann, err := svc.CreateUser(ctx, domain.CreateUserRequest{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, ann.ID, domain.UpdateUserRequest{Email: ptr("nope")})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid email", verr.Message)

	_, err = svc.UpdateUser(ctx, ann.ID, domain.UpdateUserRequest{Email: ptr("bob@example.com")})
	require.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	_, err = svc.UpdateUser(ctx, 999, domain.UpdateUserRequest{Name: ptr("Zed")})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDeleteUser_ReturnsLastState(t *testing.T) {
	svc, _, _ := newUserService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Name: gofakeit.Name(), Email: gofakeit.Email()})
	require.NoError(t, err)

	deleted, err := svc.DeleteUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, deleted)

	_, err = svc.GetUser(ctx, user.ID)
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.DeleteUser(ctx, user.ID)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestListUsers_NewestFirst(t *testing.T) {
	svc, _, _ := newUserService()
	ctx := context.Background()

	var ids []int64
	for range 3 {
		u, err := svc.CreateUser(ctx, domain.CreateUserRequest{Name: gofakeit.Name(), Email: gofakeit.Email()})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, ids[2], users[0].ID)
	assert.Equal(t, ids[0], users[2].ID)
}

func TestUserService_RecordsAuditEvents(t *testing.T) {
	svc, _, consumer := newUserService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)
	_, err = svc.UpdateUser(ctx, user.ID, domain.UpdateUserRequest{Name: ptr("Annie")})
	require.NoError(t, err)
	_, err = svc.DeleteUser(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{domain.EventUserCreated, domain.EventUserUpdated, domain.EventUserDeleted}, consumer.types())
	for _, e := range consumer.events {
		assert.Equal(t, "user", e.AggregateType)
		assert.NotEmpty(t, e.ID)
	}
}

func TestCreateUser_FullAuditConsumerDoesNotFailRequest(t *testing.T) {
	repo := memory.NewUserRepository()
	consumer := &recordingConsumer{err: events.ErrConsumerFull}
	svc := domain.NewUserService(repo, consumer, discardLogger())

	user, err := svc.CreateUser(context.Background(), domain.CreateUserRequest{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
}
