// Package conflict implements the DR conflict-resolution collaborator:
// given the local and incoming sides of a cross-datacenter write, decide
// which wins.
package conflict

import (
	"encoding/hex"
	"log/slog"

	"golang.org/x/crypto/blake2b"

	"github.com/gridkv/entrycell/entry"
	"github.com/gridkv/entrycell/version"
)

// VersionWins is an entry.ConflictResolver that keeps whichever side
// carries the newer version, per ATOMIC_VER_COMPARATOR ordering. It
// never actually merges field-by-field — a real merge policy would live
// behind the same interface — but it does checksum the incoming side's
// marshaled bytes with blake2b so a replicator can log a corruption
// fingerprint alongside the decision.
type VersionWins[K comparable, V any] struct {
	// Marshal converts a V to bytes for checksumming. Nil disables
	// checksumming (the resolver still resolves correctly, it just has
	// nothing to log).
	Marshal func(V) ([]byte, error)
	Logger  *slog.Logger
}

// NewVersionWins constructs a VersionWins resolver. A nil logger falls
// back to slog.Default().
func NewVersionWins[K comparable, V any](marshal func(V) ([]byte, error), logger *slog.Logger) *VersionWins[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionWins[K, V]{Marshal: marshal, Logger: logger}
}

func (r *VersionWins[K, V]) Resolve(key K, oldSide, newSide entry.ConflictSide[V], verCheck bool) entry.ConflictResult[V] {
	cmp := version.Compare(oldSide.Version, newSide.Version)
	if cmp > 0 {
		return entry.ConflictResult[V]{Outcome: entry.ConflictUseOld}
	}

	sum := r.checksum(newSide.Value)
	r.Logger.Debug("conflict resolved", "key", key, "outcome", "use_new", "checksum", sum, "verCheck", verCheck)
	return entry.ConflictResult[V]{
		Outcome:    entry.ConflictUseNew,
		Merged:     newSide.Value,
		TTL:        newSide.TTL,
		ExpireTime: newSide.ExpireTime,
	}
}

func (r *VersionWins[K, V]) checksum(v V) string {
	if r.Marshal == nil {
		return ""
	}
	b, err := r.Marshal(v)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

var _ entry.ConflictResolver[string, string] = (*VersionWins[string, string])(nil)
