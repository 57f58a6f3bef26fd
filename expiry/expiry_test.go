package expiry

import (
	"testing"
	"time"
)

func TestFixed_CreateAndUpdateShareTTL(t *testing.T) {
	p := Fixed{TTL: 5 * time.Second}
	if p.ForCreate() != 5*time.Second {
		t.Fatalf("ForCreate must return the fixed TTL")
	}
	if p.ForUpdate() != 5*time.Second {
		t.Fatalf("ForUpdate must return the fixed TTL")
	}
	if p.ForAccess() != NotChanged {
		t.Fatalf("a Fixed policy must leave access alone")
	}
}

func TestSliding_ExtendsOnAccess(t *testing.T) {
	p := Sliding{TTL: 2 * time.Second}
	if p.ForAccess() != 2*time.Second {
		t.Fatalf("a Sliding policy must extend the TTL on access")
	}
	if p.ForCreate() != p.ForUpdate() {
		t.Fatalf("Sliding's create and update TTLs must agree")
	}
}

// The three sentinels must never collide with each other or with a real,
// non-negative caller TTL.
func TestSentinels_Distinct(t *testing.T) {
	sentinels := []time.Duration{NotChanged, Zero, Eternal}
	for i, a := range sentinels {
		if a >= 0 {
			t.Fatalf("sentinel %d must be negative, got %v", i, a)
		}
		for j, b := range sentinels {
			if i != j && a == b {
				t.Fatalf("sentinels must be pairwise distinct: %v == %v", a, b)
			}
		}
	}
}
