package pipeline

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// HandlerFunc is a typed action handler.
type HandlerFunc[In, Out any] func(ctx context.Context, ec domain.ExecutionContext, in In) (Out, error)

// Action binds a typed handler and its metadata to a client.
type Action[In, Out any] struct {
	client  *Client
	meta    domain.Metadata
	handler HandlerFunc[In, Out]
}

// NewAction defines an action executed through client.
func NewAction[In, Out any](client *Client, meta domain.Metadata, handler HandlerFunc[In, Out]) *Action[In, Out] {
	return &Action[In, Out]{client: client, meta: meta, handler: handler}
}

// Name returns the action name from its metadata.
func (a *Action[In, Out]) Name() string { return a.meta.ActionName }

// Metadata returns the action metadata.
func (a *Action[In, Out]) Metadata() domain.Metadata { return a.meta }

// Run executes the action with a decoded input.
func (a *Action[In, Out]) Run(ctx context.Context, cred domain.Credential, in In) *domain.Result {
	inv := ports.Invocation{
		Credential: cred,
		Input:      in,
		Metadata:   a.meta,
	}
	return a.client.Execute(ctx, inv, a.handle)
}

// Invoke decodes a JSON input and executes the action. An empty body
// decodes to the zero input. Malformed input still passes the stages, so it
// is logged and access control runs before the input error is reported.
func (a *Action[In, Out]) Invoke(ctx context.Context, cred domain.Credential, raw json.RawMessage) *domain.Result {
	var in In
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			inv := ports.Invocation{Credential: cred, Metadata: a.meta}
			return a.client.Execute(ctx, inv, func(context.Context, domain.ExecutionContext, any) (any, error) {
				return nil, &domain.DecodeError{Action: a.meta.ActionName, Err: err}
			})
		}
	}
	return a.Run(ctx, cred, in)
}

func (a *Action[In, Out]) handle(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
	in, _ := input.(In)
	return a.handler(ctx, ec, in)
}
