// Package session issues and resolves signed session tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// DefaultTTL is the lifetime of a session token.
const DefaultTTL = 30 * 24 * time.Hour

const defaultIssuer = "movegate"

// Claims are the JWT claims of a session token. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Plan string `json:"plan,omitempty"`
}

// Manager issues session tokens and resolves them back to identities. When a
// user store is configured, every resolve reloads the user so that role, plan
// and ban changes apply to existing sessions.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	users  ports.UserStore
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithUserStore reloads identities from users on every resolve.
func WithUserStore(users ports.UserStore) Option {
	return func(m *Manager) {
		m.users = users
	}
}

// WithIssuer sets the token issuer.
func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager signing tokens with secret (HS256).
func NewManager(secret []byte, opts ...Option) (*Manager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	m := &Manager{
		secret: secret,
		ttl:    DefaultTTL,
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a signed session token for user.
func (m *Manager) Issue(user *domain.User) (string, time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: string(user.Role),
		Plan: string(user.Plan),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expires, nil
}

// Resolve implements ports.SessionResolver. Absent, malformed, forged and
// expired credentials all resolve to no identity. A token for a deleted user
// resolves to no identity as well.
func (m *Manager) Resolve(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	if cred == "" {
		return nil, nil
	}

	claims, err := m.parse(string(cred))
	if err != nil {
		return nil, nil
	}

	if claims.Subject == "" || m.users == nil {
		return claimsIdentity(claims), nil
	}

	user, err := m.users.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	id := user.Identity()
	return &id, nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// claimsIdentity builds an identity from the token alone. A token without a
// subject yields an identity without a user id.
func claimsIdentity(c *Claims) *domain.Identity {
	role, _ := domain.ParseRole(c.Role)
	plan, _ := domain.ParsePlan(c.Plan)
	return &domain.Identity{UserID: c.Subject, Role: role, Plan: plan}
}
