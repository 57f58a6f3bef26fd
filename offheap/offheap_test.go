package offheap

import "testing"

func TestArena_PutGetRoundTrip(t *testing.T) {
	a := NewArena(0)
	h, err := a.Put([]byte("hello"), 3)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := a.Used(); got != 5 {
		t.Fatalf("Used() = %d, want 5", got)
	}

	bytes, tag, err := a.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(bytes) != "hello" || tag != 3 {
		t.Fatalf("Get() = (%q, %d), want (\"hello\", 3)", bytes, tag)
	}
}

// Release is idempotent: a second Release (or a Remove after a manual
// Release) must not double-free the arena's accounting.
func TestHandle_ReleaseIdempotent(t *testing.T) {
	a := NewArena(0)
	h, err := a.Put([]byte("x"), 0)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	h.Release()
	h.Release()
	if got := a.Used(); got != 0 {
		t.Fatalf("Used() = %d after double-release, want 0", got)
	}
	if bytes := h.Bytes(); bytes != nil {
		t.Fatalf("Bytes() after Release must be nil, got %v", bytes)
	}
}

func TestArena_CapacityEnforced(t *testing.T) {
	a := NewArena(4)
	if _, err := a.Put([]byte("12345"), 0); err == nil {
		t.Fatalf("Put exceeding capacity must fail")
	}
	if _, err := a.Put([]byte("1234"), 0); err != nil {
		t.Fatalf("Put exactly at capacity must succeed: %v", err)
	}
}

func TestArena_GetOnReleasedHandleFails(t *testing.T) {
	a := NewArena(0)
	h, _ := a.Put([]byte("y"), 0)
	if err := a.Remove(h); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, _, err := a.Get(h); err == nil {
		t.Fatalf("Get on a released handle must fail")
	}
}
