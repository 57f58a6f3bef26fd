// Package mvcc implements the per-cell lock-candidate list consulted by
// mark_obsolete and the lock-query surface. Despite the name, this is not
// a multiversion history — it is the list of concurrent lock candidates
// for one key.
package mvcc

import "github.com/gridkv/entrycell/version"

// Candidate is one entry in a cell's lock-candidate list.
type Candidate struct {
	Version  version.Version
	NodeID   string
	ThreadID int64
	Local    bool
	Owner    bool
}

// List is the per-cell candidate list. All methods are called with the
// owning cell's lock already held, so List itself does not
// lock.
type List struct {
	cands []*Candidate
}

// AnyOwner reports whether any candidate currently owns the lock.
func (l *List) AnyOwner() bool {
	for _, c := range l.cands {
		if c.Owner {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the list has no candidates, optionally excluding
// the given versions from consideration.
func (l *List) IsEmpty(exclude ...version.Version) bool {
	for _, c := range l.cands {
		if !containsVersion(exclude, c.Version) {
			return false
		}
	}
	return true
}

func containsVersion(vs []version.Version, v version.Version) bool {
	for _, x := range vs {
		if version.Compare(x, v) == 0 {
			return true
		}
	}
	return false
}

// HasCandidate reports whether ver is present in the list.
func (l *List) HasCandidate(ver version.Version) bool {
	return l.Candidate(ver) != nil
}

// Candidate returns the candidate with the given version, or nil.
func (l *List) Candidate(ver version.Version) *Candidate {
	for _, c := range l.cands {
		if version.Compare(c.Version, ver) == 0 {
			return c
		}
	}
	return nil
}

// LocalCandidate returns the local candidate owned by threadID, if any.
func (l *List) LocalCandidate(threadID int64) *Candidate {
	for _, c := range l.cands {
		if c.Local && c.ThreadID == threadID {
			return c
		}
	}
	return nil
}

// LocalOwner returns the local owning candidate, if any.
func (l *List) LocalOwner() *Candidate {
	for _, c := range l.cands {
		if c.Local && c.Owner {
			return c
		}
	}
	return nil
}

// IsLocallyOwned reports whether ver is a local, owning candidate.
func (l *List) IsLocallyOwned(ver version.Version) bool {
	c := l.Candidate(ver)
	return c != nil && c.Local && c.Owner
}

// IsLocallyOwnedByThread reports whether threadID locally owns ver.
func (l *List) IsLocallyOwnedByThread(threadID int64, ver version.Version) bool {
	c := l.Candidate(ver)
	return c != nil && c.Local && c.Owner && c.ThreadID == threadID
}

// IsOwnedBy reports whether ver owns the lock (local or remote).
func (l *List) IsOwnedBy(ver version.Version) bool {
	c := l.Candidate(ver)
	return c != nil && c.Owner
}

// RemoteCandidate returns the remote candidate from nodeID/threadID, if any.
func (l *List) RemoteCandidate(nodeID string, threadID int64) *Candidate {
	for _, c := range l.cands {
		if !c.Local && c.NodeID == nodeID && c.ThreadID == threadID {
			return c
		}
	}
	return nil
}

// Add registers a new candidate.
func (l *List) Add(c *Candidate) { l.cands = append(l.cands, c) }

// Remove drops the candidate with the given version.
func (l *List) Remove(ver version.Version) {
	out := l.cands[:0]
	for _, c := range l.cands {
		if version.Compare(c.Version, ver) != 0 {
			out = append(out, c)
		}
	}
	l.cands = out
}

// RemoveAll clears the candidate list, used when a remove commits without
// an MVCC conflict.
func (l *List) RemoveAll() { l.cands = nil }

// PermitsObsoletion reports whether the list allows the cell to become
// obsolete under ver: empty, or only holding ver itself.
func (l *List) PermitsObsoletion(ver version.Version) bool {
	return l.IsEmpty(ver)
}
