package balancer

import (
	"errors"
	"testing"

	"github.com/tjfontaine/movegate/internal/core/domain"
)

func TestRandom_Pick(t *testing.T) {
	b := NewRandom[string]()

	if _, err := b.Pick(nil); !errors.Is(err, domain.ErrNoInstances) {
		t.Errorf("Pick(nil) error = %v, want ErrNoInstances", err)
	}

	got, err := b.Pick([]string{"only"})
	if err != nil || got != "only" {
		t.Errorf("Pick() = %q, %v", got, err)
	}

	instances := []string{"a", "b", "c"}
	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		got, err := b.Pick(instances)
		if err != nil {
			t.Fatalf("Pick() error = %v", err)
		}
		seen[got] = true
	}
	if len(seen) != len(instances) {
		t.Errorf("Pick() covered %v, want all instances", seen)
	}
}

func TestRandom_PickDeterministic(t *testing.T) {
	b := &Random[int]{intn: func(n int) int { return n - 1 }}
	got, _ := b.Pick([]int{1, 2, 3})
	if got != 3 {
		t.Errorf("Pick() = %d, want 3", got)
	}
}
