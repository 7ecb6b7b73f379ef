package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "libquassel"

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "frames_total",
			Help:      "Frames read or written, by protocol variant and classification.",
		},
		[]string{"protocol", "direction", "kind"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "frame_bytes_total",
			Help:      "Uncompressed frame payload bytes.",
		},
		[]string{"protocol", "direction"},
	)
	protocolWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "warnings_total",
			Help:      "Protocol consistency warnings (message still processed).",
		},
		[]string{"protocol", "reason"},
	)
	tlsUpgrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "tls_upgrades_total",
			Help:      "TLS handshakes performed on core connections.",
		},
		[]string{"protocol", "success"},
	)
	heartbeatRTT = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "heartbeat_rtt_seconds",
			Help:      "Heartbeat round trip time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served on the metrics listener.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Metrics listener request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	syncCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "dispatch_total",
			Help:      "Routed initdata/sync/rpc messages by class and outcome.",
		},
		[]string{"kind", "class", "handled"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, frameBytes, protocolWarnings, tlsUpgrades, heartbeatRTT, syncCalls, httpRequests, httpDuration)
	})
}

func RecordFrame(protocol, direction, kind string, size int) {
	RegisterMetrics()
	framesTotal.WithLabelValues(protocol, direction, kind).Inc()
	frameBytes.WithLabelValues(protocol, direction).Add(float64(size))
}

func RecordProtocolWarning(protocol, reason string) {
	RegisterMetrics()
	protocolWarnings.WithLabelValues(protocol, reason).Inc()
}

func RecordTLSUpgrade(protocol string, success bool) {
	RegisterMetrics()
	label := "false"
	if success {
		label = "true"
	}
	tlsUpgrades.WithLabelValues(protocol, label).Inc()
}

func RecordHeartbeatRTT(protocol string, rtt time.Duration) {
	RegisterMetrics()
	heartbeatRTT.WithLabelValues(protocol).Observe(rtt.Seconds())
}

func RecordDispatch(kind, class string, handled bool) {
	RegisterMetrics()
	label := "false"
	if handled {
		label = "true"
	}
	syncCalls.WithLabelValues(kind, class, label).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
