package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// Store is an in-memory implementation of UserStore and AuditStore.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*domain.User
	emails      map[string]string
	order       []string
	invocations []*domain.InvocationRecord
}

var (
	_ ports.UserStore  = (*Store)(nil)
	_ ports.AuditStore = (*Store)(nil)
)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		users:  make(map[string]*domain.User),
		emails: make(map[string]string),
	}
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := s.emails[user.Email]; exists {
		return &domain.UserAlreadyRegisteredError{Email: user.Email}
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	s.emails[user.Email] = user.ID
	s.order = append(s.order, user.ID)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	id, exists := s.emails[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()

	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context, opts ports.ListOptions) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.User, 0, len(s.order))
	for _, id := range s.order {
		copied := *s.users[id]
		result = append(result, &copied)
	}
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) SetBanned(ctx context.Context, id string, banned bool) error {
	return s.update(id, func(u *domain.User) { u.Banned = banned })
}

func (s *Store) SetPlan(ctx context.Context, id string, plan domain.Plan) error {
	return s.update(id, func(u *domain.User) { u.Plan = plan })
}

func (s *Store) update(id string, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return domain.ErrUserNotFound
	}
	fn(user)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) RecordInvocation(ctx context.Context, rec *domain.InvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	s.invocations = append(s.invocations, &copied)
	return nil
}

func (s *Store) ListInvocations(ctx context.Context, opts ports.InvocationListOptions) ([]*domain.InvocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.InvocationRecord
	for _, rec := range s.invocations {
		if opts.ActionName != "" && rec.ActionName != opts.ActionName {
			continue
		}
		if opts.Outcome != "" && rec.Outcome != opts.Outcome {
			continue
		}
		copied := *rec
		result = append(result, &copied)
	}

	// Newest first; records with equal timestamps keep reverse insertion order.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) Close() error {
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
