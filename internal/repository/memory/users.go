// Package memory holds in-memory repositories with the same observable behavior as the
// PostgreSQL ones. They are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zhirschtritt/userposts/internal/domain"
)

var _ domain.UserRepository = new(UserRepository)

type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.User
	now    func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID: make(map[int64]domain.User),
		now:  time.Now,
	}
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, name, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(email, 0) {
		return nil, fmt.Errorf("email %q: %w", email, domain.ErrEmailAlreadyExists)
	}

	r.nextID++
	now := r.now()
	u := domain.User{ID: r.nextID, Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
	r.byID[u.ID] = u
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, patch domain.UserPatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if patch.Email != nil && r.emailTaken(*patch.Email, id) {
		return nil, fmt.Errorf("email %q: %w", *patch.Email, domain.ErrEmailAlreadyExists)
	}

	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	u.UpdatedAt = r.now()
	r.byID[id] = u
	return &u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	delete(r.byID, id)
	return &u, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

// Lookup resolves a user the way the users service does over HTTP. It lets the
// repository stand in for a domain.UserDirectory in tests.
func (r *UserRepository) Lookup(ctx context.Context, id int64) (*domain.UserSnapshot, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.UserSnapshot{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// emailTaken must be called with mu held. Comparison is exact, like the unique index.
func (r *UserRepository) emailTaken(email string, except int64) bool {
	for id, u := range r.byID {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}
