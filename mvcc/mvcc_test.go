package mvcc

import (
	"testing"

	"github.com/gridkv/entrycell/version"
)

func v(order int64) version.Version { return version.Version{Order: order, NodeOrder: 1} }

func TestList_AddRemoveHasCandidate(t *testing.T) {
	l := &List{}
	if !l.IsEmpty() {
		t.Fatalf("a fresh list must be empty")
	}

	c := &Candidate{Version: v(1), Local: true, ThreadID: 42}
	l.Add(c)
	if !l.HasCandidate(v(1)) {
		t.Fatalf("HasCandidate must find the just-added candidate")
	}
	if got := l.LocalCandidate(42); got != c {
		t.Fatalf("LocalCandidate must find the candidate by thread id")
	}

	l.Remove(v(1))
	if l.HasCandidate(v(1)) {
		t.Fatalf("Remove must drop the candidate")
	}
}

// PermitsObsoletion allows obsoletion when the list is empty, or holds
// only the version about to become obsolete — any other live candidate
// must block it.
func TestList_PermitsObsoletion(t *testing.T) {
	l := &List{}
	if !l.PermitsObsoletion(v(1)) {
		t.Fatalf("an empty list must permit obsoletion")
	}

	l.Add(&Candidate{Version: v(1)})
	if !l.PermitsObsoletion(v(1)) {
		t.Fatalf("a list holding only the obsoleting version must permit it")
	}

	l.Add(&Candidate{Version: v(2)})
	if l.PermitsObsoletion(v(1)) {
		t.Fatalf("a second, unrelated candidate must block obsoletion")
	}
}

func TestList_OwnerQueries(t *testing.T) {
	l := &List{}
	l.Add(&Candidate{Version: v(1), Local: true, Owner: true, ThreadID: 1})
	l.Add(&Candidate{Version: v(2), Local: false, NodeID: "n2", ThreadID: 2})

	if !l.AnyOwner() {
		t.Fatalf("AnyOwner must report true when a candidate owns the lock")
	}
	if owner := l.LocalOwner(); owner == nil || owner.ThreadID != 1 {
		t.Fatalf("LocalOwner must return the local owning candidate")
	}
	if got := l.RemoteCandidate("n2", 2); got == nil {
		t.Fatalf("RemoteCandidate must find the remote candidate by node/thread")
	}
	if !l.IsOwnedBy(v(1)) {
		t.Fatalf("IsOwnedBy must report true for the owning version")
	}
	if l.IsOwnedBy(v(2)) {
		t.Fatalf("IsOwnedBy must report false for a non-owning candidate")
	}

	l.RemoveAll()
	if !l.IsEmpty() {
		t.Fatalf("RemoveAll must clear every candidate")
	}
}
