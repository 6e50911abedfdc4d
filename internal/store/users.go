package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrEmailTaken = errors.New("email already registered")

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryUserStore keeps user accounts in process memory. It is the default
// directory backend when no database is configured.
type MemoryUserStore struct {
	mu      sync.RWMutex
	users   map[int64]User
	byEmail map[string]int64
	now     func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   map[int64]User{},
		byEmail: map[string]int64{},
		now:     time.Now,
	}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return User{}, ErrEmailTaken
	}
	now := s.now().UTC()
	user.ID = nextID(s.users)
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	s.byEmail[email] = user.ID
	return user, nil
}

func (s *MemoryUserStore) GetUserByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryUserStore) UpdateUserDisplayName(_ context.Context, id int64, displayName string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	user.DisplayName = displayName
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return user, nil
}

func (s *MemoryUserStore) Ping(context.Context) error { return nil }
