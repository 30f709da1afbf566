// Package telemetry exposes the daemon's own counters in Prometheus
// format.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vitalsd"

// Metrics holds all Prometheus metrics for the daemon. It observes the
// collector, the history store and the relay hub.
type Metrics struct {
	// Collector metrics
	MetricsAccepted *prometheus.CounterVec
	MetricsIgnored  prometheus.Counter
	MetricsRelayed  prometheus.Counter

	// Store metrics
	SnapshotsAppended *prometheus.CounterVec
	StorageErrors     *prometheus.CounterVec
	WriteConflicts    prometheus.Counter

	// Relay metrics
	RelayDelivered   prometheus.Counter
	RelayDropped     *prometheus.CounterVec
	RelaySubscribers prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		MetricsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "accepted_total",
			Help:      "Metric updates recorded, by signal.",
		}, []string{"signal"}),
		MetricsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "ignored_total",
			Help:      "Metric updates dropped because the signal is not tracked.",
		}),
		MetricsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "relayed_total",
			Help:      "Metric updates handed to the relay for embedded pages.",
		}),
		SnapshotsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "snapshots_appended_total",
			Help:      "Snapshots appended to page history, by series.",
		}, []string{"series"}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "storage_errors_total",
			Help:      "Storage failures degraded to no data, by operation.",
		}, []string{"op"}),
		WriteConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "write_conflicts_total",
			Help:      "Compare-and-swap writes lost to a concurrent writer.",
		}),
		RelayDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "delivered_total",
			Help:      "Relay messages queued for a subscriber.",
		}),
		RelayDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Relay messages dropped, by reason.",
		}, []string{"reason"}),
		RelaySubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "subscribers",
			Help:      "Connected relay subscribers.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.MetricsAccepted, m.MetricsIgnored, m.MetricsRelayed,
		m.SnapshotsAppended, m.StorageErrors, m.WriteConflicts,
		m.RelayDelivered, m.RelayDropped, m.RelaySubscribers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errFactory.Wrap(ErrRegister, err)
		}
	}

	return m, nil
}

func (m *Metrics) Accepted(signal string) { m.MetricsAccepted.WithLabelValues(signal).Inc() }
func (m *Metrics) Ignored()               { m.MetricsIgnored.Inc() }
func (m *Metrics) Relayed()               { m.MetricsRelayed.Inc() }

func (m *Metrics) SnapshotAppended(series string) { m.SnapshotsAppended.WithLabelValues(series).Inc() }
func (m *Metrics) StorageFailed(op string)        { m.StorageErrors.WithLabelValues(op).Inc() }
func (m *Metrics) WriteConflict()                 { m.WriteConflicts.Inc() }

func (m *Metrics) Delivered()            { m.RelayDelivered.Inc() }
func (m *Metrics) Dropped(reason string) { m.RelayDropped.WithLabelValues(reason).Inc() }
func (m *Metrics) Subscribers(n int)     { m.RelaySubscribers.Set(float64(n)) }
