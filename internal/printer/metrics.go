package printer

import "github.com/prometheus/client_golang/prometheus"

var (
	fragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printlink",
			Subsystem: "printer",
			Name:      "fragments_total",
			Help:      "Total number of report fragments merged into the snapshot",
		},
		[]string{"device_id"},
	)

	parseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printlink",
			Subsystem: "printer",
			Name:      "parse_errors_total",
			Help:      "Total number of report payloads dropped as malformed",
		},
		[]string{"device_id"},
	)

	reconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printlink",
			Subsystem: "printer",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnect attempts",
		},
		[]string{"device_id"},
	)

	storeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printlink",
			Subsystem: "printer",
			Name:      "capability_store_failures_total",
			Help:      "Total number of capability provisioning or write failures",
		},
		[]string{"device_id"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printlink",
			Subsystem: "printer",
			Name:      "transitions_total",
			Help:      "Total number of print-state triggers fired",
		},
		[]string{"device_id", "trigger"},
	)

	availableGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "printlink",
			Subsystem: "printer",
			Name:      "available",
			Help:      "1 while the printer link is subscribed, 0 otherwise",
		},
		[]string{"device_id"},
	)
)

func init() {
	prometheus.MustRegister(
		fragmentsTotal,
		parseErrorsTotal,
		reconnectsTotal,
		storeFailuresTotal,
		transitionsTotal,
		availableGauge,
	)
}

// deviceMetrics holds the collectors bound to one device's label.
type deviceMetrics struct {
	fragments     prometheus.Counter
	parseErrors   prometheus.Counter
	reconnects    prometheus.Counter
	storeFailures prometheus.Counter
	transitions   *prometheus.CounterVec
	available     prometheus.Gauge
}

func metricsFor(deviceID string) *deviceMetrics {
	return &deviceMetrics{
		fragments:     fragmentsTotal.WithLabelValues(deviceID),
		parseErrors:   parseErrorsTotal.WithLabelValues(deviceID),
		reconnects:    reconnectsTotal.WithLabelValues(deviceID),
		storeFailures: storeFailuresTotal.WithLabelValues(deviceID),
		transitions:   transitionsTotal.MustCurryWith(prometheus.Labels{"device_id": deviceID}),
		available:     availableGauge.WithLabelValues(deviceID),
	}
}
