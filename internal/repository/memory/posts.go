package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zhirschtritt/userposts/internal/domain"
)

var _ domain.PostRepository = new(PostRepository)

// PostRepository mirrors the author join of the PostgreSQL repository: List and GetByID
// only return posts whose author exists in users.
type PostRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.Post
	users  *UserRepository
	now    func() time.Time
}

func NewPostRepository(users *UserRepository) *PostRepository {
	return &PostRepository{
		byID:  make(map[int64]domain.Post),
		users: users,
		now:   time.Now,
	}
}

func (r *PostRepository) List(ctx context.Context) ([]domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Post, 0, len(r.byID))
	for _, p := range r.byID {
		if r.withAuthor(ctx, &p) {
			out = append(out, p)
		}
	}
	sortPosts(out)
	return out, nil
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok || !r.withAuthor(ctx, &p) {
		return nil, domain.ErrPostNotFound
	}
	return &p, nil
}

func (r *PostRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Post, 0)
	for _, p := range r.byID {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sortPosts(out)
	return out, nil
}

func (r *PostRepository) Create(ctx context.Context, userID int64, title, content string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := r.now()
	p := domain.Post{ID: r.nextID, UserID: userID, Title: title, Content: content, CreatedAt: now, UpdatedAt: now}
	r.byID[p.ID] = p
	return &p, nil
}

func (r *PostRepository) Update(ctx context.Context, id int64, patch domain.PostPatch) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	p.UpdatedAt = r.now()
	r.byID[id] = p
	return &p, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int64) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	delete(r.byID, id)
	return &p, nil
}

func (r *PostRepository) Stats(ctx context.Context) (*domain.PostStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	authors := make(map[int64]struct{})
	for _, p := range r.byID {
		authors[p.UserID] = struct{}{}
	}
	return &domain.PostStats{TotalPosts: int64(len(r.byID)), UsersWithPosts: int64(len(authors))}, nil
}

// Seed stores a post without any author check, the way a row written before its
// author was deleted would look.
func (r *PostRepository) Seed(userID int64, title, content string) domain.Post {
	p, _ := r.Create(context.Background(), userID, title, content)
	return *p
}

func (r *PostRepository) withAuthor(ctx context.Context, p *domain.Post) bool {
	if r.users == nil {
		return true
	}
	u, err := r.users.GetByID(ctx, p.UserID)
	if err != nil {
		return false
	}
	p.UserName = u.Name
	p.UserEmail = u.Email
	return true
}

func sortPosts(posts []domain.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
