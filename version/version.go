// Package version implements the monotonic version token described in the
// data model: a composite of topology version, order, node order, and an
// optional nested data-center conflict version, ordered by
// ATOMIC_VER_COMPARATOR.
package version

import "fmt"

// DRType tags the origin of a replicated update.
type DRType int

const (
	DRNone DRType = iota
	DRPrimary
	DRBackup
	DRPreload
)

func (t DRType) String() string {
	switch t {
	case DRPrimary:
		return "PRIMARY"
	case DRBackup:
		return "BACKUP"
	case DRPreload:
		return "PRELOAD"
	default:
		return "NONE"
	}
}

// Conflict is the nested data-center version carried by a cross-DC update.
type Conflict struct {
	DataCenterID    byte
	TopologyVersion int64
	Order           int64
	NodeOrder       int32
}

// Version is the monotonic token assigned by a version Source and compared
// with Compare (ATOMIC_VER_COMPARATOR).
type Version struct {
	TopologyVersion int64
	Order           int64
	NodeOrder       int32
	DataCenterID    byte
	Conflict        *Conflict // nil unless this update carries a DR conflict version
}

func (v Version) String() string {
	return fmt.Sprintf("Version{top=%d, order=%d, node=%d, dc=%d}",
		v.TopologyVersion, v.Order, v.NodeOrder, v.DataCenterID)
}

// IsZero reports whether v is the unset version (the zero value).
func (v Version) IsZero() bool {
	return v.Order == 0 && v.NodeOrder == 0 && v.TopologyVersion == 0
}

// Compare implements ATOMIC_VER_COMPARATOR: order is the primary key, node
// order breaks ties between nodes that raced to the same order, and
// topology version is consulted last as a tie-breaker of last resort.
// Compare(a, b) < 0 means a is older than b; 0 means equal.
func Compare(a, b Version) int {
	if a.Order != b.Order {
		if a.Order < b.Order {
			return -1
		}
		return 1
	}
	if a.NodeOrder != b.NodeOrder {
		if a.NodeOrder < b.NodeOrder {
			return -1
		}
		return 1
	}
	if a.TopologyVersion != b.TopologyVersion {
		if a.TopologyVersion < b.TopologyVersion {
			return -1
		}
		return 1
	}
	return 0
}

// Source is the collaborator that assigns new versions. NextForLoad must not advance the topology version, matching
// innerReload's "fresh load version that does NOT change topology-version".
type Source interface {
	Next() Version
	NextFrom(prev Version) Version
	NextForLoad(prev Version) Version
}
