package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		membershipsActivatedTotal,
		membershipsExtendedTotal,
		membershipsExpiredTotal,
	)
}

var (
	membershipsActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memberships_activated_total",
			Help: "Premium memberships activated from a basic account.",
		},
	)

	membershipsExtendedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memberships_extended_total",
			Help: "Premium memberships extended while still active.",
		},
	)

	membershipsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memberships_expired_total",
			Help: "Memberships downgraded to basic by the expiry sweep (scheduled or lazy).",
		},
	)
)

func IncMembershipActivated() { membershipsActivatedTotal.Inc() }
func IncMembershipExtended() { membershipsExtendedTotal.Inc() }

func IncMembershipsExpired(n int) { membershipsExpiredTotal.Add(float64(n)) }
