// Package index implements the index/query-manager collaborator: the
// hook that keeps a secondary index consistent with every committed
// write, following the posture that the core never owns indexing, it
// just reports to it.
package index

import (
	"context"
	"log/slog"

	"github.com/gridkv/entrycell/version"
)

// Noop indexes nothing. It is the default for a cache with no query
// engine attached.
type Noop[K comparable, V any] struct{}

func (Noop[K, V]) Store(context.Context, K, V, version.Version, int64) error { return nil }
func (Noop[K, V]) Remove(context.Context, K) error                          { return nil }

// Log records every index mutation through a structured logger, useful
// for debugging index-consistency issues without a real query engine
// wired in.
type Log[K comparable, V any] struct {
	Logger *slog.Logger
}

// NewLog constructs a Log adapter. A nil logger falls back to
// slog.Default().
func NewLog[K comparable, V any](logger *slog.Logger) *Log[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log[K, V]{Logger: logger}
}

func (l *Log[K, V]) Store(ctx context.Context, key K, val V, ver version.Version, expireTime int64) error {
	l.Logger.DebugContext(ctx, "index store", "key", key, "version", ver.String(), "expireTime", expireTime)
	return nil
}

func (l *Log[K, V]) Remove(ctx context.Context, key K) error {
	l.Logger.DebugContext(ctx, "index remove", "key", key)
	return nil
}
