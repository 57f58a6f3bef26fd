package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridkv/entrycell/entry"
)

// EntryAdapter implements entry.Metrics and exports Prometheus counters
// for per-cell read/put/remove/expire/conflict events — the cell-level
// counterpart to Adapter's shard-level hit/miss/eviction counters.
type EntryAdapter struct {
	reads     *prometheus.CounterVec
	puts      prometheus.Counter
	removed   prometheus.Counter
	expired   prometheus.Counter
	conflicts *prometheus.CounterVec
}

// NewEntryAdapter constructs a Prometheus metrics adapter for entry.Metrics.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func NewEntryAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *EntryAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &EntryAdapter{
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "entry_reads_total",
				Help:        "Entry cell reads by hit/miss outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "entry_puts_total",
			Help:        "Entry cell writes committed",
			ConstLabels: constLabels,
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "entry_removed_total",
			Help:        "Entry cell removals committed",
			ConstLabels: constLabels,
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "entry_expired_total",
			Help:        "Entry cells expired by TTL",
			ConstLabels: constLabels,
		}),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "entry_conflicts_total",
				Help:        "DR conflict resolutions by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(a.reads, a.puts, a.removed, a.expired, a.conflicts)
	return a
}

func (a *EntryAdapter) Read(hit bool) {
	if hit {
		a.reads.WithLabelValues("hit").Inc()
	} else {
		a.reads.WithLabelValues("miss").Inc()
	}
}

func (a *EntryAdapter) Put()     { a.puts.Inc() }
func (a *EntryAdapter) Removed() { a.removed.Inc() }
func (a *EntryAdapter) Expired() { a.expired.Inc() }

func (a *EntryAdapter) Conflict(outcome entry.ConflictOutcome) {
	a.conflicts.WithLabelValues(conflictLabel(outcome)).Inc()
}

func conflictLabel(o entry.ConflictOutcome) string {
	switch o {
	case entry.ConflictUseOld:
		return "use_old"
	case entry.ConflictUseNew:
		return "use_new"
	case entry.ConflictMerge:
		return "merge"
	default:
		return "unknown"
	}
}

var _ entry.Metrics = (*EntryAdapter)(nil)
