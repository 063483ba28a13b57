package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchasesTotal,
		purchasesRevenueTotal,
	)
}

var (
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchases by status (pending/completed/failed/refunded).",
		},
		[]string{"status", "provider"},
	)

	purchasesRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_revenue_cents_total",
			Help: "The total monetary value of completed purchases, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncPurchase(status, provider string) {
	purchasesTotal.WithLabelValues(norm(status), norm(provider)).Inc()
}

func AddPurchaseRevenue(currency string, amountCents int64) {
	purchasesRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountCents))
}
