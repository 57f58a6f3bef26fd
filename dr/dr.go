// Package dr implements the data-replication collaborator that
// entry.InnerUpdate calls after every committed write (and entry.InnerSet
// calls when conflict resolution is enabled), so a backup node or a
// cross-datacenter link can observe the same sequence of changes the
// primary committed.
package dr

import (
	"log/slog"
	"time"

	"github.com/gridkv/entrycell/version"
)

// NoopReplicator replicates nothing; the default for a single-node cache.
type NoopReplicator[K comparable, V any] struct{}

func (NoopReplicator[K, V]) Replicate(K, V, bool, time.Duration, int64, *version.Conflict, version.DRType) error {
	return nil
}

// LogReplicator records every replicated update through a structured
// logger — a stand-in for a real transport that still exercises the full
// call shape DR replication uses (conflict version, TTL, DR type).
type LogReplicator[K comparable, V any] struct {
	Logger *slog.Logger
}

// NewLogReplicator constructs a LogReplicator. A nil logger falls back to
// slog.Default().
func NewLogReplicator[K comparable, V any](logger *slog.Logger) *LogReplicator[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReplicator[K, V]{Logger: logger}
}

func (r *LogReplicator[K, V]) Replicate(key K, val V, hasVal bool, ttl time.Duration, expireTime int64, conflictVer *version.Conflict, drType version.DRType) error {
	attrs := []any{"key", key, "hasValue", hasVal, "ttl", ttl, "expireTime", expireTime, "drType", drType.String()}
	if conflictVer != nil {
		attrs = append(attrs, "conflictDC", conflictVer.DataCenterID, "conflictOrder", conflictVer.Order)
	}
	r.Logger.Debug("dr replicate", attrs...)
	return nil
}
