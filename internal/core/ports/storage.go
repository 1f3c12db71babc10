package ports

import (
	"context"

	"github.com/tjfontaine/movegate/internal/core/domain"
)

// UserStore defines the interface for account storage. It is also the
// identity store consulted by the session resolver.
type UserStore interface {
	// CreateUser stores a new user. A taken email yields
	// *domain.UserAlreadyRegisteredError.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUserByID returns domain.ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	// GetUserByEmail returns domain.ErrUserNotFound if the user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// ListUsers lists users ordered by creation time.
	ListUsers(ctx context.Context, opts ListOptions) ([]*domain.User, error)

	// SetBanned updates the ban flag of a user.
	SetBanned(ctx context.Context, id string, banned bool) error

	// SetPlan updates the subscription plan of a user.
	SetPlan(ctx context.Context, id string, plan domain.Plan) error

	// Close closes the storage connection
	Close() error
}

// AuditStore records action invocations.
type AuditStore interface {
	// RecordInvocation saves one invocation record.
	RecordInvocation(ctx context.Context, rec *domain.InvocationRecord) error

	// ListInvocations lists records, newest first.
	ListInvocations(ctx context.Context, opts InvocationListOptions) ([]*domain.InvocationRecord, error)
}

// ListOptions contains pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// InvocationListOptions filters invocation listings.
type InvocationListOptions struct {
	ActionName string
	Outcome    domain.Outcome
	Limit      int
	Offset     int
}
