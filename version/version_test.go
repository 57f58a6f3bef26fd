package version

import "testing"

// Order is the primary sort key: a higher order always wins regardless
// of node order or topology version.
func TestCompare_OrderPrimary(t *testing.T) {
	a := Version{Order: 1, NodeOrder: 9, TopologyVersion: 100}
	b := Version{Order: 2, NodeOrder: 1, TopologyVersion: 1}
	if Compare(a, b) >= 0 {
		t.Fatalf("Compare(a,b) should be negative: a has the lower order")
	}
	if Compare(b, a) <= 0 {
		t.Fatalf("Compare(b,a) should be positive")
	}
}

// When order ties, node order breaks it.
func TestCompare_NodeOrderTiebreak(t *testing.T) {
	a := Version{Order: 5, NodeOrder: 1}
	b := Version{Order: 5, NodeOrder: 2}
	if Compare(a, b) >= 0 {
		t.Fatalf("Compare(a,b) should be negative on node order tiebreak")
	}
	if Compare(a, a) != 0 {
		t.Fatalf("Compare(a,a) must be 0")
	}
}

// When order and node order both tie, topology version is the last
// resort.
func TestCompare_TopologyVersionLastResort(t *testing.T) {
	a := Version{Order: 5, NodeOrder: 1, TopologyVersion: 1}
	b := Version{Order: 5, NodeOrder: 1, TopologyVersion: 2}
	if Compare(a, b) >= 0 {
		t.Fatalf("Compare(a,b) should be negative on topology tiebreak")
	}
}

func TestLocalSource_NextIsMonotonic(t *testing.T) {
	s := NewLocalSource(7, 0)
	v1 := s.Next()
	v2 := s.Next()
	if Compare(v1, v2) >= 0 {
		t.Fatalf("successive Next() calls must be strictly increasing")
	}
	if v1.NodeOrder != 7 || v2.NodeOrder != 7 {
		t.Fatalf("NodeOrder must be stamped from the source's own node order")
	}
}

// NextForLoad must advance the order (so a reload is observably newer)
// but must pin the topology version to the prior version's, even after
// the source's own topology has moved on.
func TestLocalSource_NextForLoadPinsTopology(t *testing.T) {
	s := NewLocalSource(1, 0)
	s.SetTopologyVersion(10)
	prev := s.Next()

	s.SetTopologyVersion(20)
	loaded := s.NextForLoad(prev)

	if loaded.TopologyVersion != prev.TopologyVersion {
		t.Fatalf("NextForLoad must pin topology version to prev's, got %d want %d", loaded.TopologyVersion, prev.TopologyVersion)
	}
	if loaded.Order <= prev.Order {
		t.Fatalf("NextForLoad must still advance the order")
	}
}

func TestVersion_IsZero(t *testing.T) {
	if !(Version{}).IsZero() {
		t.Fatalf("zero-value Version must report IsZero")
	}
	if (Version{Order: 1}).IsZero() {
		t.Fatalf("a Version with a non-zero Order must not report IsZero")
	}
}
