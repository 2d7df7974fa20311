package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CorridordRebuildTotal counts rebuild passes by outcome
	CorridordRebuildTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corridord_rebuild_total",
			Help: "Total number of rebuild passes by outcome",
		},
		[]string{"outcome"},
	)

	// CorridordRebuildSeconds tracks the duration of a rebuild pass
	CorridordRebuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corridord_rebuild_seconds",
			Help:    "Duration of a rebuild pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	// CorridordEntityRebuildTotal counts per-entity rebuilds by kind and outcome
	CorridordEntityRebuildTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corridord_entity_rebuild_total",
			Help: "Total number of entity rebuilds by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// CorridordSectionsBuilt counts cross-sections cut during corridor rebuilds
	CorridordSectionsBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corridord_sections_built_total",
			Help: "Total number of corridor cross-sections built",
		},
	)

	// CorridordDirtyEntities tracks entities awaiting rebuild
	CorridordDirtyEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corridord_dirty_entities",
			Help: "Number of entities currently dirty or in error",
		},
	)

	// CorridordSnapshotDiscards counts stale background snapshots thrown away
	CorridordSnapshotDiscards = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corridord_snapshot_discards_total",
			Help: "Total number of background rebuild snapshots discarded as stale",
		},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(CorridordRebuildTotal)
	prometheus.MustRegister(CorridordRebuildSeconds)
	prometheus.MustRegister(CorridordEntityRebuildTotal)
	prometheus.MustRegister(CorridordSectionsBuilt)
	prometheus.MustRegister(CorridordDirtyEntities)
	prometheus.MustRegister(CorridordSnapshotDiscards)
}
