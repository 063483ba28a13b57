package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		coinsCreditedTotal,
		coinsDebitedTotal,
		refundShortfallTotal,
	)
}

var (
	coinsCreditedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coins_credited_total",
			Help: "Total coins credited to user balances.",
		},
	)

	coinsDebitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coins_debited_total",
			Help: "Total coins debited from user balances.",
		},
	)

	refundShortfallTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refund_coin_shortfall_total",
			Help: "Coins that could not be clawed back on refund because the balance was already spent.",
		},
	)
)

func AddCoinsCredited(n int64) { coinsCreditedTotal.Add(float64(n)) }
func AddCoinsDebited(n int64) { coinsDebitedTotal.Add(float64(n)) }
func AddRefundShortfall(n int64) {
	refundShortfallTotal.Add(float64(n))
}
