package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestExecutionContext_AppendOnly(t *testing.T) {
	var empty ExecutionContext

	withID, err := empty.With(KeyUserID, "u-1")
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	if empty.Has(KeyUserID) {
		t.Error("With() mutated the receiver")
	}
	if !withID.Extends(empty) {
		t.Error("derived context should extend the empty context")
	}

	_, err = withID.With(KeyUserID, "u-2")
	var exists *FieldExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("With() on existing key error = %v, want FieldExistsError", err)
	}

	id, err := withID.UserID()
	if err != nil || id != "u-1" {
		t.Errorf("UserID() = %q, %v; want u-1", id, err)
	}
}

func TestExecutionContext_Extends(t *testing.T) {
	a, _ := ExecutionContext{}.With(KeyUserID, "u-1")
	b, _ := a.With(KeyPlan, PlanFree)
	other, _ := ExecutionContext{}.With(KeyUserID, "u-1")

	if !b.Extends(a) {
		t.Error("b should extend a")
	}
	if a.Extends(b) {
		t.Error("a should not extend b")
	}
	if other.Extends(a) {
		t.Error("an independently built context should not extend a")
	}
}

func TestExecutionContext_Identity(t *testing.T) {
	want := Identity{UserID: "u-1", Role: RoleAdmin, Plan: PlanPremium, Banned: true}

	ec, err := ExecutionContext{}.WithIdentity(want)
	if err != nil {
		t.Fatalf("WithIdentity() error = %v", err)
	}

	got, err := ec.Identity()
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if got != want {
		t.Errorf("Identity() = %+v, want %+v", got, want)
	}

	if keys := ec.Keys(); !reflect.DeepEqual(keys, IdentityKeys) {
		t.Errorf("Keys() = %v, want %v", keys, IdentityKeys)
	}

	if _, err := ec.WithIdentity(want); err == nil {
		t.Error("adding identity twice should fail")
	}
}

func TestExecutionContext_MissingField(t *testing.T) {
	var ec ExecutionContext

	_, err := ec.UserRole()
	var missing *MissingContextError
	if !errors.As(err, &missing) {
		t.Fatalf("UserRole() error = %v, want MissingContextError", err)
	}
	if missing.Key != KeyUserRole {
		t.Errorf("Key = %q, want %q", missing.Key, KeyUserRole)
	}

	wrongType, _ := ec.With(KeyPlan, "premium")
	if _, err := wrongType.Plan(); !errors.As(err, &missing) {
		t.Errorf("Plan() with untyped string error = %v, want MissingContextError", err)
	}
}
