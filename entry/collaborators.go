package entry

import (
	"context"
	"time"

	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// Logger is the context-carried logger injected at construction, replacing
// a global static logger with compare-and-set publication.
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NoopLogger discards everything; it is the zero-value default.
type NoopLogger struct{}

func (NoopLogger) Debugf(string, ...any) {}
func (NoopLogger) Errorf(string, ...any) {}

// EventType enumerates the event kinds the core may emit on its wire
// format.
type EventType int

const (
	EventPut EventType = iota
	EventRemoved
	EventRead
	EventExpired
)

func (t EventType) String() string {
	switch t {
	case EventPut:
		return "PUT"
	case EventRemoved:
		return "REMOVED"
	case EventRead:
		return "READ"
	case EventExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Event is the wire-format record emitted to the event bus.
type Event[K comparable, V any] struct {
	Partition         int32
	Key               K
	TxID              string
	NodeID            string
	NewVersion        version.Version
	Type              EventType
	NewVal            V
	HasNew            bool
	OldVal            V
	HasOld            bool
	SubjectID         string
	TransformClsName  string
	TaskName          string
}

// EventBus is the event-bus collaborator.
type EventBus[K comparable, V any] interface {
	IsRecordable(t EventType) bool
	AddEvent(e Event[K, V])
}

// NoopEventBus records nothing and considers nothing recordable.
type NoopEventBus[K comparable, V any] struct{}

func (NoopEventBus[K, V]) IsRecordable(EventType) bool    { return false }
func (NoopEventBus[K, V]) AddEvent(Event[K, V])           {}

// ContinuousQueryNotifier is the continuous-query collaborator.
type ContinuousQueryNotifier[K comparable, V any] interface {
	OnEntryUpdated(key K, newVal V, hasNew bool, oldVal V, hasOld bool, preload bool)
	OnEntryExpired(key K, expiredVal V, hasExpired bool)
}

// NoopCQNotifier implements ContinuousQueryNotifier with no-ops.
type NoopCQNotifier[K comparable, V any] struct{}

func (NoopCQNotifier[K, V]) OnEntryUpdated(K, V, bool, V, bool, bool) {}
func (NoopCQNotifier[K, V]) OnEntryExpired(K, V, bool)                {}

// InvokeEntry is the view of the cell an Interceptor or entry-processor
// operates against.
type InvokeEntry[K comparable, V any] interface {
	Key() K
	Value() (V, bool)
}

// Interceptor is the before/after put/remove hook collaborator.
type Interceptor[K comparable, V any] interface {
	// OnBeforePut returns the value to actually store and ok=false to
	// abort the write.
	OnBeforePut(e InvokeEntry[K, V], newVal V) (V, bool)
	// OnBeforeRemove returns cancel=true to abort the remove, along with
	// the value the caller should observe instead.
	OnBeforeRemove(e InvokeEntry[K, V]) (cancel bool, val V)
	OnAfterPut(e InvokeEntry[K, V])
	OnAfterRemove(e InvokeEntry[K, V])
}

// NoopInterceptor never aborts and never transforms.
type NoopInterceptor[K comparable, V any] struct{}

func (NoopInterceptor[K, V]) OnBeforePut(_ InvokeEntry[K, V], newVal V) (V, bool) { return newVal, true }
func (NoopInterceptor[K, V]) OnBeforeRemove(e InvokeEntry[K, V]) (bool, V) {
	v, _ := e.Value()
	return false, v
}
func (NoopInterceptor[K, V]) OnAfterPut(InvokeEntry[K, V])    {}
func (NoopInterceptor[K, V]) OnAfterRemove(InvokeEntry[K, V]) {}

// DRReplicator is the data-replication collaborator.
type DRReplicator[K comparable, V any] interface {
	Replicate(key K, val V, hasVal bool, ttl time.Duration, expireTime int64, conflictVer *version.Conflict, drType version.DRType) error
}

// NoopDRReplicator replicates nothing.
type NoopDRReplicator[K comparable, V any] struct{}

func (NoopDRReplicator[K, V]) Replicate(K, V, bool, time.Duration, int64, *version.Conflict, version.DRType) error {
	return nil
}

// ConflictOutcome is the verdict returned by a ConflictResolver.
type ConflictOutcome int

const (
	ConflictUseOld ConflictOutcome = iota
	ConflictUseNew
	ConflictMerge
)

// ConflictSide is one side (old or new) presented to a ConflictResolver.
type ConflictSide[V any] struct {
	Value      V
	HasValue   bool
	Version    version.Version
	TTL        time.Duration
	ExpireTime int64
}

// ConflictResult is the resolver's verdict.
type ConflictResult[V any] struct {
	Outcome    ConflictOutcome
	Merged     V
	TTL        time.Duration
	ExpireTime int64
}

// ConflictResolver is the DR conflict-resolution collaborator.
type ConflictResolver[K comparable, V any] interface {
	Resolve(key K, oldSide, newSide ConflictSide[V], verCheck bool) ConflictResult[V]
}

// TTLTracker is the eager-TTL tracker collaborator.
type TTLTracker[K comparable, V any] interface {
	AddTrackedEntry(c *Cell[K, V])
	RemoveTrackedEntry(c *Cell[K, V])
}

// NoopTTLTracker tracks nothing.
type NoopTTLTracker[K comparable, V any] struct{}

func (NoopTTLTracker[K, V]) AddTrackedEntry(*Cell[K, V])    {}
func (NoopTTLTracker[K, V]) RemoveTrackedEntry(*Cell[K, V]) {}

// IndexManager is the index/query-manager collaborator.
type IndexManager[K comparable, V any] interface {
	Store(ctx context.Context, key K, val V, ver version.Version, expireTime int64) error
	Remove(ctx context.Context, key K) error
}

// NoopIndexManager indexes nothing.
type NoopIndexManager[K comparable, V any] struct{}

func (NoopIndexManager[K, V]) Store(context.Context, K, V, version.Version, int64) error { return nil }
func (NoopIndexManager[K, V]) Remove(context.Context, K) error                           { return nil }

// Store is the persistent-store collaborator: read-through on miss,
// write-through on commit.
type Store[K comparable, V any] interface {
	LoadFromStore(ctx context.Context, t *tx.Tx, key K) (V, bool, error)
	PutToStore(ctx context.Context, t *tx.Tx, key K, val V, ver version.Version) error
	RemoveFromStore(ctx context.Context, t *tx.Tx, key K) error
	IsLocalStore() bool
	ReadThrough() bool
	WriteThrough() bool
	LoadPreviousValue() bool
}

// NoopStore never has anything and never persists anything; ReadThrough
// and WriteThrough report false so operation-engine code short-circuits
// around it.
type NoopStore[K comparable, V any] struct{}

func (NoopStore[K, V]) LoadFromStore(context.Context, *tx.Tx, K) (V, bool, error) {
	var zero V
	return zero, false, nil
}
func (NoopStore[K, V]) PutToStore(context.Context, *tx.Tx, K, V, version.Version) error { return nil }
func (NoopStore[K, V]) RemoveFromStore(context.Context, *tx.Tx, K) error                { return nil }
func (NoopStore[K, V]) IsLocalStore() bool                                              { return true }
func (NoopStore[K, V]) ReadThrough() bool                                               { return false }
func (NoopStore[K, V]) WriteThrough() bool                                              { return false }
func (NoopStore[K, V]) LoadPreviousValue() bool                                         { return false }

// TouchNotifier is the eviction-LRU accounting sink a cell reports to
// after innerReload and any "completed" read/write the caller flagged for
// touch accounting.
type TouchNotifier[K comparable, V any] interface {
	Touch(c *Cell[K, V], topologyVersion int64)
}

// NoopTouchNotifier discards every touch.
type NoopTouchNotifier[K comparable, V any] struct{}

func (NoopTouchNotifier[K, V]) Touch(*Cell[K, V], int64) {}

// SizeAccountant handles the block-keyed data-cache special case: it is
// told the delta between old and new serialized sizes for block-keyed
// entries so the owning cache can keep its data-size accounting exact.
type SizeAccountant interface {
	AdjustSize(deltaBytes int64)
}

// ExpiryPolicy is the expiry-policy collaborator: it decides the TTL to
// apply on creation, update, and access. expiry.Fixed and expiry.Sliding
// satisfy this interface structurally, with no adapter required.
type ExpiryPolicy interface {
	ForCreate() time.Duration
	ForUpdate() time.Duration
	ForAccess() time.Duration
}
