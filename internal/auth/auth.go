// Package auth registers accounts, checks passwords and extracts session
// credentials from HTTP requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = domain.NewActionError("Invalid email or password")

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int
}

// ValidateCost reports an error for a cost bcrypt does not accept.
func ValidateCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d is outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// NewPasswordHasher creates a hasher. Costs outside bcrypt's range fall back
// to DefaultCost; callers taking a cost from users check it with
// ValidateCost first.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt digest of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest.
func (h *PasswordHasher) Verify(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// Authenticator registers users and validates their passwords.
type Authenticator struct {
	users  ports.UserStore
	hasher *PasswordHasher

	// absentOnce guards absentDigest, which unknown emails are compared
	// against so sign-in does the same bcrypt work for every email.
	absentOnce   sync.Once
	absentDigest string
}

// NewAuthenticator creates a new authenticator over users.
func NewAuthenticator(users ports.UserStore, hasher *PasswordHasher) *Authenticator {
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultCost)
	}
	return &Authenticator{users: users, hasher: hasher}
}

// Registration holds the fields of a new account.
type Registration struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
	Plan     domain.Plan
}

// Register creates an account. A taken email yields
// *domain.UserAlreadyRegisteredError. Role and plan default to user and free.
func (a *Authenticator) Register(ctx context.Context, reg Registration) (*domain.User, error) {
	digest, err := a.hasher.Hash(reg.Password)
	if err != nil {
		return nil, err
	}
	return a.create(ctx, reg, digest)
}

// RegisterWithHash creates an account from an existing bcrypt digest.
func (a *Authenticator) RegisterWithHash(ctx context.Context, reg Registration, digest string) (*domain.User, error) {
	if _, err := bcrypt.Cost([]byte(digest)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	return a.create(ctx, reg, digest)
}

func (a *Authenticator) create(ctx context.Context, reg Registration, digest string) (*domain.User, error) {
	if reg.Role == "" {
		reg.Role = domain.RoleUser
	}
	if reg.Plan == "" {
		reg.Plan = domain.PlanFree
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        reg.Email,
		Name:         reg.Name,
		PasswordHash: digest,
		Role:         reg.Role,
		Plan:         reg.Plan,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AuthenticateWithPassword returns the user owning email if password matches.
// Banned accounts other than admins are refused.
func (a *Authenticator) AuthenticateWithPassword(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		a.hasher.Verify(a.absentUserDigest(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !a.hasher.Verify(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Banned && user.Role != domain.RoleAdmin {
		return nil, domain.ErrBanned()
	}
	return user, nil
}

func (a *Authenticator) absentUserDigest() string {
	a.absentOnce.Do(func() {
		a.absentDigest, _ = a.hasher.Hash(uuid.NewString())
	})
	return a.absentDigest
}

// ExtractCredential returns the session credential from the named cookie, or
// from a Bearer Authorization header when the cookie is absent. No credential
// yields the empty Credential.
func ExtractCredential(r *http.Request, cookieName string) domain.Credential {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return domain.Credential(c.Value)
		}
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	// Support "Bearer <token>" format
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return domain.Credential(strings.TrimSpace(parts[1]))
}
