package actions

import (
	"context"

	"github.com/tjfontaine/movegate/internal/balancer"
	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/pipeline"
)

// PickInstanceOutput names the chosen instance.
type PickInstanceOutput struct {
	Instance string `json:"instance"`
}

// NewPickInstanceAction creates the pick-instance action over instances.
func NewPickInstanceAction(client *pipeline.Client, b *balancer.Random[string], instances []string) *pipeline.Action[struct{}, *PickInstanceOutput] {
	pool := append([]string(nil), instances...)
	return pipeline.NewAction(client, domain.Metadata{ActionName: "pick-instance"},
		func(ctx context.Context, ec domain.ExecutionContext, _ struct{}) (*PickInstanceOutput, error) {
			instance, err := b.Pick(pool)
			if err != nil {
				return nil, domain.WrapActionError("No instances are available", err)
			}
			return &PickInstanceOutput{Instance: instance}, nil
		})
}
