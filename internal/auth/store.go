package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserStore persists users. Update is the only way to mutate an existing
// record: fn runs against a private copy and its changes are committed
// atomically only when it returns nil. Two Updates for the same id never
// interleave.
type UserStore interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id string, fn func(*User) error) (*User, error)
}

// MemoryStore is a process-local UserStore used in tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, u *User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email := NormalizeEmail(u.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[email]; ok {
		return nil, fail("store.create", ErrEmailTaken, "email", email)
	}
	c := u.Clone()
	c.ID = uuid.NewString()
	c.Email = email
	c.CreatedAt = m.now().UTC()
	c.UpdatedAt = c.CreatedAt
	m.byID[c.ID] = c
	m.byEmail[email] = c.ID
	return c.Clone(), nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, fail("store.get", ErrUserNotFound, "user_id", id)
	}
	return u.Clone(), nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, fail("store.get", ErrUserNotFound, "email", email)
	}
	return m.byID[id].Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*User) error) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byID[id]
	if !ok {
		return nil, fail("store.update", ErrUserNotFound, "user_id", id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	// id and email are immutable through Update.
	next.ID = cur.ID
	next.Email = cur.Email
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = m.now().UTC()
	m.byID[id] = next
	return next.Clone(), nil
}
