package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/creditoya/backend/internal/db"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[int64]db.User
	next  int64
	now   func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: map[int64]db.User{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser mirrors the unique constraints on users.rut and users.email.
func (r *UserRepository) CreateUser(_ context.Context, in db.CreateUserInput) (*db.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.RUT == in.RUT {
			return nil, fmt.Errorf("%w: users_rut_key", db.ErrDuplicate)
		}
		if strings.EqualFold(u.Email, in.Email) {
			return nil, fmt.Errorf("%w: users_email_key", db.ErrDuplicate)
		}
	}
	r.next++
	now := r.now()
	u := db.User{
		ID:           r.next,
		RUT:          in.RUT,
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u
	return &u, nil
}

func (r *UserRepository) GetUserByRUT(_ context.Context, rut string) (*db.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.RUT == rut {
			return &u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *UserRepository) GetUserByID(_ context.Context, id int64) (*db.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}
