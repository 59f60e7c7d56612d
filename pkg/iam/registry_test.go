package iam_test

import (
	"testing"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/iam"
)

func TestRegistry_LookupFailsClosed(t *testing.T) {
	reg := iam.NewNamedRegistry[iam.ExpiryPolicy]("test_policies")

	_, err := reg.Lookup("nobody-registered-this")
	if err == nil {
		t.Fatal("expected unknown key to fail closed")
	}
	if !errx.HasCode(err, "IAM_UNKNOWN_ENTRY") {
		t.Fatalf("expected IAM_UNKNOWN_ENTRY, got %v", err)
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := iam.NewNamedRegistry[iam.ExpiryPolicy]("test_policies")

	if err := reg.Register("default", iam.FixedTTL(time.Minute)); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := reg.Register("default", iam.FixedTTL(time.Hour))
	if err == nil {
		t.Fatal("expected duplicate registration to be rejected")
	}
	if !errx.HasCode(err, "IAM_DUPLICATE_ENTRY") {
		t.Fatalf("expected IAM_DUPLICATE_ENTRY, got %v", err)
	}

	// The original binding survives.
	policy, err := reg.Lookup("default")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if policy.TTL() != time.Minute {
		t.Fatalf("duplicate registration overwrote the entry: %s", policy.TTL())
	}
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := iam.NewNamedRegistry[iam.ExpiryPolicy]("test_policies")
	reg.MustRegister("default", iam.FixedTTL(time.Minute))

	defer func() {
		if recover() == nil {
			t.Fatal("expected MustRegister to panic on duplicate")
		}
	}()
	reg.MustRegister("default", iam.FixedTTL(time.Hour))
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := iam.NewNamedRegistry[iam.ExpiryPolicy]("test_policies")
	reg.MustRegister("zeta", iam.FixedTTL(time.Minute))
	reg.MustRegister("alpha", iam.FixedTTL(time.Minute))

	names := reg.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestFixedTTL(t *testing.T) {
	if iam.FixedTTL(10 * time.Minute).TTL() != 10*time.Minute {
		t.Fatal("FixedTTL did not round-trip")
	}
}
