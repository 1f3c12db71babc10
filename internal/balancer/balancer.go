// Package balancer picks one instance out of a configured set.
package balancer

import (
	"math/rand/v2"

	"github.com/tjfontaine/movegate/internal/core/domain"
)

// Random picks instances uniformly at random.
type Random[T any] struct {
	intn func(n int) int
}

// NewRandom creates a uniform random balancer.
func NewRandom[T any]() *Random[T] {
	return &Random[T]{intn: rand.IntN}
}

// Pick returns one of instances. An empty set yields domain.ErrNoInstances.
func (b *Random[T]) Pick(instances []T) (T, error) {
	var zero T
	if len(instances) == 0 {
		return zero, domain.ErrNoInstances
	}
	return instances[b.intn(len(instances))], nil
}
