package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hogprice_import_batches_total",
			Help: "Total import batches by final status",
		},
		[]string{"dataset_type", "status"},
	)

	ObservationsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hogprice_observations_inserted_total",
			Help: "Total new observations written to the canonical store",
		},
		[]string{"dataset_type"},
	)

	ObservationsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hogprice_observations_updated_total",
			Help: "Total observations overwritten by a later batch",
		},
		[]string{"dataset_type"},
	)

	ImportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hogprice_import_errors_total",
			Help: "Total recorded import errors by taxonomy type",
		},
		[]string{"error_type"},
	)

	SheetDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hogprice_sheet_duration_seconds",
			Help:    "Per-sheet processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"parser"},
	)
)
