package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookRejectsTotal,
		gatewayCallLatency,
	)
}

var (
	webhookRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_rejects_total",
			Help: "Inbound provider callbacks rejected before any mutation, by reason.",
		},
		[]string{"provider", "reason"}, // 'bad_signature', 'unparsable', 'unknown_purchase', 'unknown_provider'
	)

	gatewayCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_latency_ms",
			Help:    "Outbound payment provider call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"provider", "op", "success"},
	)
)

func IncWebhookReject(provider, reason string) {
	webhookRejectsTotal.WithLabelValues(norm(provider), norm(reason)).Inc()
}

func ObserveGatewayCall(provider, op string, latencyMs int64, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	gatewayCallLatency.WithLabelValues(norm(provider), norm(op), s).Observe(float64(latencyMs))
}
