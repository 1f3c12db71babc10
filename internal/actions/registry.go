// Package actions defines the server actions exposed by movegate and the
// registry the HTTP layer dispatches them from.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/movegate/internal/auth"
	"github.com/tjfontaine/movegate/internal/balancer"
	"github.com/tjfontaine/movegate/internal/classifier"
	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
	"github.com/tjfontaine/movegate/internal/pipeline"
	"github.com/tjfontaine/movegate/internal/tokens"
)

// Endpoint is an action callable with raw JSON input.
type Endpoint interface {
	Name() string
	Invoke(ctx context.Context, cred domain.Credential, raw json.RawMessage) *domain.Result
}

// Registry maps action names to endpoints.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]Endpoint)}
}

// Register adds e. Names must be unique.
func (r *Registry) Register(e Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpoints[e.Name()]; exists {
		return fmt.Errorf("action %s already registered", e.Name())
	}
	r.endpoints[e.Name()] = e
	return nil
}

// Get returns the endpoint registered under name.
func (r *Registry) Get(name string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	return e, ok
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TokenIssuer issues session tokens for signed-in users.
type TokenIssuer interface {
	Issue(user *domain.User) (string, time.Time, error)
}

// Deps are the collaborators of the standard actions.
type Deps struct {
	Clients       *pipeline.Clients
	Authenticator *auth.Authenticator
	Sessions      TokenIssuer
	Users         ports.UserStore
	Audit         ports.AuditStore
	Classifier    classifier.Classifier
	Balancer      *balancer.Random[string]
	Instances     []string
	SentenceLimit *tokens.Limit
}

// NewStandardRegistry registers every standard action.
func NewStandardRegistry(deps Deps) (*Registry, error) {
	if deps.Clients == nil {
		return nil, fmt.Errorf("action clients are required")
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.Stub{}
	}
	if deps.Balancer == nil {
		deps.Balancer = balancer.NewRandom[string]()
	}

	r := NewRegistry()
	endpoints := []Endpoint{
		NewRegisterAction(deps.Clients.Base, deps.Authenticator),
		NewSignInAction(deps.Clients.Base, deps.Authenticator, deps.Sessions),
		NewAnnotateTextAction(deps.Clients.User, deps.Classifier, deps.SentenceLimit),
		NewClassifySentenceAction(deps.Clients.Premium, deps.Classifier, deps.SentenceLimit),
		NewPickInstanceAction(deps.Clients.Authenticated, deps.Balancer, deps.Instances),
		NewListUsersAction(deps.Clients.Admin, deps.Users),
		NewBanUserAction(deps.Clients.Admin, deps.Users),
		NewSetPlanAction(deps.Clients.Admin, deps.Users),
	}
	if deps.Audit != nil {
		endpoints = append(endpoints, NewListInvocationsAction(deps.Clients.Admin, deps.Audit))
	}

	for _, e := range endpoints {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}
