package auth

import (
	"context"
	"sort"
	"sync"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	// Create stores a new user in a single write.
	// Returns ErrUsernameTaken or ErrIdentityExists on uniqueness violations.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns nil, nil if not found.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByExternalID retrieves a user by provider tag and IdP subject.
	// Returns nil, nil if not found.
	GetByExternalID(ctx context.Context, provider, subject string) (*User, error)

	// GetByUsername retrieves a user by username (case-sensitive).
	// Returns nil, nil if not found.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// ExistsByUsername reports whether any user holds username.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// List returns all users, newest first.
	List(ctx context.Context) ([]*User, error)

	// Update modifies the mutable profile fields of an existing user,
	// including LastLoginAt, in a single write. Provider and subject are
	// never rewritten.
	Update(ctx context.Context, user *User) error
}

// MemoryUserStore is an in-memory implementation of UserStore.
// Thread-safe; suitable for development and single-instance deployments.
type MemoryUserStore struct {
	mu            sync.RWMutex
	users         map[string]*User  // keyed by ID
	usernameIndex map[string]string // username -> ID
	identityIndex map[string]string // provider\x00subject -> ID
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:         make(map[string]*User),
		usernameIndex: make(map[string]string),
		identityIndex: make(map[string]string),
	}
}

func (s *MemoryUserStore) Create(_ context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(user.Provider, user.OpenIDSubject)
	if _, exists := s.identityIndex[key]; exists {
		return ErrIdentityExists
	}
	if _, exists := s.users[user.ID]; exists {
		return ErrIdentityExists
	}
	if _, exists := s.usernameIndex[user.Username]; exists {
		return ErrUsernameTaken
	}

	s.users[user.ID] = copyUser(user)
	s.usernameIndex[user.Username] = user.ID
	s.identityIndex[key] = user.ID
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id string) (*User, error) {
	if id == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.users[id]), nil
}

func (s *MemoryUserStore) GetByExternalID(_ context.Context, provider, subject string) (*User, error) {
	if subject == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identityIndex[identityKey(provider, subject)]
	if !ok {
		return nil, nil
	}
	return copyUser(s.users[id]), nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	if username == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, nil
	}
	return copyUser(s.users[id]), nil
}

func (s *MemoryUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	_, ok := s.usernameIndex[username]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryUserStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	result := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, copyUser(u))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *User) error {
	if user == nil || user.ID == "" {
		return ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.ID]
	if !exists {
		return ErrUserNotFound
	}

	if existing.Username != user.Username {
		if _, taken := s.usernameIndex[user.Username]; taken {
			return ErrUsernameTaken
		}
		delete(s.usernameIndex, existing.Username)
		s.usernameIndex[user.Username] = user.ID
	}

	updated := copyUser(user)
	updated.Provider = existing.Provider
	updated.OpenIDSubject = existing.OpenIDSubject
	updated.CreatedAt = existing.CreatedAt
	s.users[user.ID] = updated
	return nil
}
