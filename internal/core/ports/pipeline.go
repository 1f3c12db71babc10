// Package ports defines the core interfaces of the action pipeline.
// This file contains the pipeline stage interfaces.
package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/movegate/internal/core/domain"
)

// Invocation is one call of an action, as seen by every stage.
type Invocation struct {
	// ID uniquely identifies the invocation in logs and the audit trail.
	ID string
	// Credential is the caller's session credential; empty when absent.
	Credential domain.Credential
	// Input is the decoded action input.
	Input any
	// Metadata describes the action being invoked.
	Metadata domain.Metadata
	// StartedAt is when the invocation entered the pipeline.
	StartedAt time.Time
}

// Next runs the remainder of the chain with the given context.
type Next func(ctx context.Context, ec domain.ExecutionContext) (*domain.Result, error)

// Stage is one link of the action pipeline.
type Stage interface {
	// Name returns the identifier of this stage.
	Name() string
	// Process runs the stage. It may return without calling next to end the
	// chain early, call next with an extended context, and observe what next
	// returns.
	Process(ctx context.Context, ec domain.ExecutionContext, inv Invocation, next Next) (*domain.Result, error)
}

// ContextConsumer is implemented by stages that read context fields.
type ContextConsumer interface {
	Requires() []domain.ContextKey
}

// ContextProducer is implemented by stages that add context fields.
type ContextProducer interface {
	Provides() []domain.ContextKey
}

// Handler is the business function at the end of the chain.
type Handler func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error)

// SessionResolver maps a credential to the caller's identity.
type SessionResolver interface {
	// Resolve returns nil and no error when the credential is absent, invalid
	// or expired. Errors are reserved for identity store failures.
	Resolve(ctx context.Context, cred domain.Credential) (*domain.Identity, error)
}
