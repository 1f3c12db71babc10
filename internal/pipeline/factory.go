package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// Clients is the standard set of action clients. Each one extends the
// previous chain:
//
//	Base          logging
//	Authenticated logging -> authentication
//	Admin         logging -> authentication -> role-gate(Admin)
//	User          logging -> authentication -> role-gate(user)
//	Premium       logging -> authentication -> plan-gate(premium)
type Clients struct {
	Base          *Client
	Authenticated *Client
	Admin         *Client
	User          *Client
	Premium       *Client
}

// ClientsConfig configures the standard clients.
type ClientsConfig struct {
	Logger   *slog.Logger
	Resolver ports.SessionResolver
	// Audit is optional. When set, every invocation is recorded.
	Audit ports.AuditStore
	// Landings overrides DefaultLandings for the role gates.
	Landings map[domain.Role]string
}

// NewClients builds the standard clients from configuration.
func NewClients(cfg ClientsConfig) (*Clients, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("session resolver is required")
	}

	var logOpts []LoggingOption
	if cfg.Audit != nil {
		logOpts = append(logOpts, WithAuditStore(cfg.Audit))
	}
	var gateOpts []RoleGateOption
	if cfg.Landings != nil {
		gateOpts = append(gateOpts, WithLandings(cfg.Landings))
	}

	base, err := New(NewLoggingStage(cfg.Logger, logOpts...))
	if err != nil {
		return nil, err
	}
	authed, err := base.Use(NewAuthStage(cfg.Resolver))
	if err != nil {
		return nil, err
	}
	admin, err := authed.Use(NewRoleGate(domain.RoleAdmin, gateOpts...))
	if err != nil {
		return nil, err
	}
	user, err := authed.Use(NewRoleGate(domain.RoleUser, gateOpts...))
	if err != nil {
		return nil, err
	}
	premium, err := authed.Use(NewPlanGate(domain.PlanPremium))
	if err != nil {
		return nil, err
	}

	return &Clients{
		Base:          base,
		Authenticated: authed,
		Admin:         admin,
		User:          user,
		Premium:       premium,
	}, nil
}
