package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the collectors for the sync loop and the order store.
type Registry struct {
	reg *prometheus.Registry

	SyncCycles       *prometheus.CounterVec
	SyncSkippedTicks prometheus.Counter
	SyncInFlight     prometheus.Gauge
	SyncDurationSec  prometheus.Histogram
	LastSyncUnix     prometheus.Gauge
	OrdersMerged     prometheus.Counter
	OrdersRejected   prometheus.Counter

	PersistFailures prometheus.Counter
	EventsDropped   prometheus.Counter
	StoredOrders    prometheus.Gauge
	OpenOrders      prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_cycles_total",
		Help: "Sync cycles by outcome (ok, empty, error).",
	}, []string{"outcome"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sync_skipped_ticks_total"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_sync_in_flight"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	lastSync := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_sync_last_attempt_unix"})
	merged := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_orders_merged_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_orders_rejected_total"})
	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_store_persist_failures_total"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_events_dropped_total"})
	stored := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_store_orders"})
	open := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_store_open_orders"})

	r.MustRegister(cycles, skipped, inFlight, duration, lastSync, merged, rejected, persistFailures, dropped, stored, open)
	return &Registry{
		reg:              r,
		SyncCycles:       cycles,
		SyncSkippedTicks: skipped,
		SyncInFlight:     inFlight,
		SyncDurationSec:  duration,
		LastSyncUnix:     lastSync,
		OrdersMerged:     merged,
		OrdersRejected:   rejected,
		PersistFailures:  persistFailures,
		EventsDropped:    dropped,
		StoredOrders:     stored,
		OpenOrders:       open,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
