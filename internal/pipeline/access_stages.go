package pipeline

import (
	"context"
	"fmt"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// AuthStage resolves the caller's session and adds the identity fields to
// the execution context.
type AuthStage struct {
	resolver ports.SessionResolver
}

// NewAuthStage creates an authentication stage backed by resolver.
func NewAuthStage(resolver ports.SessionResolver) *AuthStage {
	return &AuthStage{resolver: resolver}
}

func (s *AuthStage) Name() string { return "authentication" }

func (s *AuthStage) Provides() []domain.ContextKey { return domain.IdentityKeys }

func (s *AuthStage) Process(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
	identity, err := s.resolver.Resolve(ctx, inv.Credential)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if identity == nil {
		return nil, domain.ErrUnauthenticated()
	}
	if identity.UserID == "" {
		return nil, domain.ErrInvalidSession()
	}

	authed, err := ec.WithIdentity(*identity)
	if err != nil {
		return nil, err
	}
	return next(ctx, authed)
}

// DefaultLandings maps each role to its dashboard.
var DefaultLandings = map[domain.Role]string{
	domain.RoleAdmin: "/admin/dashboard",
	domain.RoleUser:  "/user/dashboard",
}

// RoleGate lets only callers with the required role through. Callers with
// another role are redirected to their own landing location; this is not an
// error. Banned callers other than admins are refused.
type RoleGate struct {
	required domain.Role
	landings map[domain.Role]string
	fallback string
}

// RoleGateOption configures a RoleGate.
type RoleGateOption func(*RoleGate)

// WithLandings overrides the redirect location per role.
func WithLandings(landings map[domain.Role]string) RoleGateOption {
	return func(g *RoleGate) {
		g.landings = landings
	}
}

// WithFallbackLanding sets the redirect location for roles without a landing.
func WithFallbackLanding(location string) RoleGateOption {
	return func(g *RoleGate) {
		g.fallback = location
	}
}

// NewRoleGate creates a gate requiring role.
func NewRoleGate(role domain.Role, opts ...RoleGateOption) *RoleGate {
	g := &RoleGate{required: role, landings: DefaultLandings, fallback: "/"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *RoleGate) Name() string { return "role-gate:" + string(g.required) }

func (g *RoleGate) Requires() []domain.ContextKey {
	return []domain.ContextKey{domain.KeyUserRole, domain.KeyBanned}
}

func (g *RoleGate) Process(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
	role, err := ec.UserRole()
	if err != nil {
		return nil, err
	}
	banned, err := ec.Banned()
	if err != nil {
		return nil, err
	}

	if banned && role != domain.RoleAdmin {
		return nil, domain.ErrBanned()
	}
	if role != g.required {
		return domain.Redirect(g.landing(role)), nil
	}
	return next(ctx, ec)
}

func (g *RoleGate) landing(role domain.Role) string {
	if loc, ok := g.landings[role]; ok && loc != "" {
		return loc
	}
	return g.fallback
}

// PlanGate fails with EntitlementRequired unless the caller's plan satisfies
// the required plan.
type PlanGate struct {
	required domain.Plan
}

// NewPlanGate creates a gate requiring plan.
func NewPlanGate(plan domain.Plan) *PlanGate {
	return &PlanGate{required: plan}
}

func (g *PlanGate) Name() string { return "plan-gate:" + string(g.required) }

func (g *PlanGate) Requires() []domain.ContextKey {
	return []domain.ContextKey{domain.KeyPlan}
}

func (g *PlanGate) Process(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
	plan, err := ec.Plan()
	if err != nil {
		return nil, err
	}
	if !plan.Satisfies(g.required) {
		return nil, domain.ErrEntitlementRequired(g.required)
	}
	return next(ctx, ec)
}
