package cellctl

import (
	"fmt"
	"log/slog"

	"github.com/gridkv/entrycell/cache"
	"github.com/gridkv/entrycell/conflict"
	"github.com/gridkv/entrycell/cq"
	"github.com/gridkv/entrycell/dr"
	"github.com/gridkv/entrycell/entry"
	"github.com/gridkv/entrycell/eventbus"
	"github.com/gridkv/entrycell/index"
	"github.com/gridkv/entrycell/interceptor"
	"github.com/gridkv/entrycell/metrics/prom"
	"github.com/gridkv/entrycell/policy/twoq"
	"github.com/gridkv/entrycell/registry"
	"github.com/gridkv/entrycell/store"
	"github.com/gridkv/entrycell/swap/memswap"
	"github.com/gridkv/entrycell/swap/sqliteswap"
	"github.com/gridkv/entrycell/ttl"
)

// openRegistry builds a string-keyed, string-valued registry wired to a
// file- or SQLite-backed persistent store, a SQLite- or memory-backed
// swap tier, and the logging-backed DR/index/interceptor/continuous-query
// collaborators plus an eager TTL sweeper and (optionally) DR conflict
// resolution — the way the wider retrieval pack's CLIs wire a durable
// backend behind a thin command surface. The returned closer must be
// called once the caller is done.
func openRegistry(cfg Config) (*registry.Cache[string, string], func() error, error) {
	persist, storeCloser, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	swapMgr, swapCloser, err := openSwap(cfg)
	if err != nil {
		return nil, nil, err
	}

	metrics := prom.New(nil, "cellctl", "registry", nil)
	entryMetrics := prom.NewEntryAdapter(nil, "cellctl", "entry", nil)

	cctx := entry.DefaultContext[string, string]()
	cctx.Store = persist
	cctx.Swap = swapMgr
	cctx.Metrics = entryMetrics
	cctx.DR = dr.NewLogReplicator[string, string](nil)
	cctx.Index = index.NewLog[string, string](nil)
	cctx.CQ = cq.NewRegistry[string, string]()
	cctx.Intercept = interceptor.NewChain[string, string]()
	cctx.EventBus = eventbus.NewChannel[string, string](256,
		[]entry.EventType{entry.EventPut, entry.EventRemoved, entry.EventExpired},
		func() { slog.Default().Warn("cellctl: event bus buffer full, dropping event") })
	cctx.ConflictEnabled = cfg.ConflictEnabled
	cctx.Conflict = conflict.NewVersionWins[string, string](stringBytes, nil)

	eagerTTL := ttl.NewEagerTracker[string, string](cctx.Versions, cfg.TTLSweepInterval)
	cctx.TTL = eagerTTL
	cctx.EagerTTL = true

	shard := cache.Options[string, *entry.Cell[string, string]]{
		Capacity: cfg.Capacity,
		Shards:   cfg.Shards,
		Metrics:  metrics,
	}
	switch cfg.Policy {
	case "", "lru":
		// nil => LRU by default
	case "2q":
		shard.Policy = twoq.New[string, *entry.Cell[string, string]](cfg.Capacity/4, cfg.Capacity/2)
	default:
		return nil, nil, fmt.Errorf("cellctl: unknown policy %q (use lru or 2q)", cfg.Policy)
	}

	r := registry.New(registry.Options[string, string]{Shard: shard, Ctx: cctx})
	closer := func() error {
		eagerTTL.Close()
		if err := r.Close(); err != nil {
			return err
		}
		if swapCloser != nil {
			if err := swapCloser(); err != nil {
				return err
			}
		}
		if storeCloser != nil {
			return storeCloser()
		}
		return nil
	}
	return r, closer, nil
}

// stringBytes is the identity marshal conflict.VersionWins checksums a
// merge value's bytes with — a string's byte representation needs no
// codec of its own.
func stringBytes(v string) ([]byte, error) { return []byte(v), nil }

func openStore(cfg Config) (entry.Store[string, string], func() error, error) {
	switch cfg.StoreBackend {
	case "", "file":
		fileStore, err := store.NewFileStore[string, string](cfg.StoreDir, true, true)
		if err != nil {
			return nil, nil, fmt.Errorf("cellctl: open store: %w", err)
		}
		return fileStore, nil, nil
	case "sqlite":
		sqliteStore, err := store.OpenSQLiteStore[string, string](cfg.StoreDSN, true, true)
		if err != nil {
			return nil, nil, fmt.Errorf("cellctl: open store: %w", err)
		}
		return sqliteStore, sqliteStore.Close, nil
	default:
		return nil, nil, fmt.Errorf("cellctl: unknown store backend %q (use file or sqlite)", cfg.StoreBackend)
	}
}

func openSwap(cfg Config) (entry.SwapManager[string, string], func() error, error) {
	switch cfg.SwapBackend {
	case "", "sqlite":
		sqliteSwap, err := sqliteswap.NewManager[string, string](cfg.SwapDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("cellctl: open swap: %w", err)
		}
		return sqliteSwap, sqliteSwap.Close, nil
	case "memory":
		return memswap.NewManager[string, string](), nil, nil
	default:
		return nil, nil, fmt.Errorf("cellctl: unknown swap backend %q (use sqlite or memory)", cfg.SwapBackend)
	}
}
