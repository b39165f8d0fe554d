package entities_test

import (
	"errors"
	"math"
	"testing"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/kick/values"
)

func noopComponent(kick.Props) {}

func TestNewDescriptor(t *testing.T) {
	id := values.MustNewKickID("k1")

	t.Run("Valid", func(t *testing.T) {
		d, err := entities.NewDescriptor(id, "Kick One", "does things", 1, 0, values.RoleSet{}, noopComponent)
		if err != nil {
			t.Fatalf("NewDescriptor failed: %v", err)
		}
		if d.Name() != "Kick One" {
			t.Errorf("expected name Kick One, got %s", d.Name())
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		_, err := entities.NewDescriptor(id, "", "", 1, 0, values.RoleSet{}, noopComponent)
		if !errors.Is(err, entities.ErrContractViolation) {
			t.Errorf("expected contract violation, got %v", err)
		}
	})

	t.Run("MissingComponent", func(t *testing.T) {
		_, err := entities.NewDescriptor(id, "n", "", 1, 0, values.RoleSet{}, nil)
		if !errors.Is(err, entities.ErrContractViolation) {
			t.Errorf("expected contract violation, got %v", err)
		}
	})

	t.Run("NonFinitePosition", func(t *testing.T) {
		for _, pos := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			if _, err := entities.NewDescriptor(id, "n", "", pos, 0, values.RoleSet{}, noopComponent); err == nil {
				t.Errorf("expected error for position %v", pos)
			}
		}
	})
}

func TestDescriptor_Before(t *testing.T) {
	id := values.MustNewKickID
	mk := func(kid string, pos float64, order int) *entities.Descriptor {
		d, err := entities.NewDescriptor(id(kid), kid, "", pos, order, values.RoleSet{}, noopComponent)
		if err != nil {
			t.Fatalf("NewDescriptor failed: %v", err)
		}
		return d
	}

	first := mk("a", 1, 5)
	second := mk("b", 2, 0)
	if !first.Before(second) {
		t.Error("lower position should order first regardless of load order")
	}

	tieEarly := mk("c", 3, 1)
	tieLate := mk("d", 3, 2)
	if !tieEarly.Before(tieLate) {
		t.Error("position ties should break by load order")
	}
}
