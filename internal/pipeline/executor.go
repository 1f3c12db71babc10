package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

const tracerName = "github.com/tjfontaine/movegate/internal/pipeline"

// ErrMissingContext is matched by the error New returns when a stage reads a
// context field that no earlier stage adds.
var ErrMissingContext = errors.New("stage ordering leaves context fields unset")

// ErrContextShrunk is returned when a stage calls next with a context that
// does not extend the one it received.
var ErrContextShrunk = errors.New("stage dropped execution context fields")

// Client is an immutable, ordered chain of stages. Actions executed through a
// client pass every stage in declaration order before the handler runs, and
// see the results flow back in reverse order.
type Client struct {
	stages []ports.Stage
	tracer trace.Tracer
}

// New builds a client from stages, rejecting orderings in which a stage reads
// context fields that no earlier stage provides.
func New(stages ...ports.Stage) (*Client, error) {
	if err := validateOrder(stages); err != nil {
		return nil, err
	}
	return &Client{
		stages: append([]ports.Stage(nil), stages...),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Use returns a new client with stage appended. The receiver is unchanged.
func (c *Client) Use(stage ports.Stage) (*Client, error) {
	stages := make([]ports.Stage, 0, len(c.stages)+1)
	stages = append(stages, c.stages...)
	stages = append(stages, stage)
	return New(stages...)
}

// StageNames returns the names of the stages in execution order.
func (c *Client) StageNames() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Execute runs the chain for one invocation and returns exactly one outcome.
// Errors and panics raised anywhere in the chain are classified here and
// never escape as errors.
func (c *Client) Execute(ctx context.Context, inv ports.Invocation, handler ports.Handler) *domain.Result {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.StartedAt.IsZero() {
		inv.StartedAt = time.Now()
	}

	ctx, span := c.tracer.Start(ctx, "action "+inv.Metadata.ActionName,
		trace.WithAttributes(
			attribute.String("action.name", inv.Metadata.ActionName),
			attribute.String("action.invocation_id", inv.ID),
		))
	defer span.End()

	result := c.execute(ctx, inv, handler)

	span.SetAttributes(attribute.String("action.outcome", string(result.Outcome)))
	if result.Outcome == domain.OutcomeFailure {
		span.SetAttributes(attribute.String("action.error_kind", string(result.Error.Kind)))
		span.SetStatus(codes.Error, result.Error.Message)
	}
	return result
}

func (c *Client) execute(ctx context.Context, inv ports.Invocation, handler ports.Handler) *domain.Result {
	if err := inv.Metadata.Validate(); err != nil {
		return domain.Failure(domain.Classify(err))
	}

	result, err := c.run(ctx, 0, domain.ExecutionContext{}, inv, handler)
	if err != nil {
		return domain.Failure(domain.Classify(err))
	}
	if !result.Valid() {
		return domain.Failure(domain.Classify(fmt.Errorf("action %s produced an invalid result", inv.Metadata.ActionName)))
	}
	return result
}

// run invokes stage i, or the handler once every stage has passed.
func (c *Client) run(ctx context.Context, i int, ec domain.ExecutionContext, inv ports.Invocation, handler ports.Handler) (result *domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic in action %s: %v", inv.Metadata.ActionName, r)
		}
	}()

	if i == len(c.stages) {
		return runHandler(ctx, ec, inv, handler)
	}

	stage := c.stages[i]
	next := func(ctx context.Context, nextEC domain.ExecutionContext) (*domain.Result, error) {
		if !nextEC.Extends(ec) {
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), ErrContextShrunk)
		}
		return c.run(ctx, i+1, nextEC, inv, handler)
	}
	return stage.Process(ctx, ec, inv, next)
}

// validator is implemented by action inputs that check themselves.
type validator interface {
	Validate() error
}

func runHandler(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, handler ports.Handler) (*domain.Result, error) {
	if v, ok := inv.Input.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	data, err := handler(ctx, ec, inv.Input)
	if err != nil {
		return nil, err
	}
	return domain.Success(data), nil
}

func validateOrder(stages []ports.Stage) error {
	provided := make(map[domain.ContextKey]bool)
	for _, s := range stages {
		if consumer, ok := s.(ports.ContextConsumer); ok {
			for _, key := range consumer.Requires() {
				if !provided[key] {
					return fmt.Errorf("%w: %w", ErrMissingContext, &domain.MissingContextError{Key: key, Stage: s.Name()})
				}
			}
		}
		if producer, ok := s.(ports.ContextProducer); ok {
			for _, key := range producer.Provides() {
				provided[key] = true
			}
		}
	}
	return nil
}
