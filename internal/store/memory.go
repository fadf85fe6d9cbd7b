package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fastcrud/apiserver/types"
	"github.com/google/uuid"
)

// MemoryUserRepository is an in-process user store for local development
// and tests. Uniqueness checks and writes happen under one lock, so
// concurrent writers cannot both claim the same email or phone.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]types.User
	byEmail map[string]uuid.UUID
	byPhone map[string]uuid.UUID
	now     func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[uuid.UUID]types.User),
		byEmail: make(map[string]uuid.UUID),
		byPhone: make(map[string]uuid.UUID),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) GetByPhone(ctx context.Context, phone string) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	if phone == "" {
		return types.User{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPhone[phone]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}

	r.mu.RLock()
	users := make([]types.User, 0, len(r.byID))
	for _, user := range r.byID {
		users = append(users, user)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID.String() < users[j].ID.String()
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	if offset >= len(users) {
		return []types.User{}, nil
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(user, uuid.Nil); err != nil {
		return types.User{}, err
	}

	now := r.now()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	if user.Phone != "" {
		r.byPhone[user.Phone] = user.ID
	}
	return user, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if err := r.checkUniqueLocked(user, user.ID); err != nil {
		return types.User{}, err
	}

	delete(r.byEmail, current.Email)
	if current.Phone != "" {
		delete(r.byPhone, current.Phone)
	}

	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.now()

	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	if user.Phone != "" {
		r.byPhone[user.Phone] = user.ID
	}
	return user, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, user.Email)
	if user.Phone != "" {
		delete(r.byPhone, user.Phone)
	}
	return nil
}

// checkUniqueLocked must be called with r.mu held for writing.
func (r *MemoryUserRepository) checkUniqueLocked(user types.User, self uuid.UUID) error {
	if id, ok := r.byEmail[user.Email]; ok && id != self {
		return &ConflictError{Field: "email"}
	}
	if user.Phone != "" {
		if id, ok := r.byPhone[user.Phone]; ok && id != self {
			return &ConflictError{Field: "phone"}
		}
	}
	return nil
}
