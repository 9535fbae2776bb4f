// Package metrics holds the prometheus collectors of the advance engine.
// All methods are safe on a nil *Metrics so tests and tools can skip instrumentation.
package metrics

import (
	"agri-advance/internal/domain/pool"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PoolBalance   *prometheus.GaugeVec
	Reservations  *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	Repayments    prometheus.Counter
	RealizedLoss  prometheus.Counter
	ProofResults  *prometheus.CounterVec
	ExpiredSwept  prometheus.Counter
	Notifications *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	return &Metrics{
		PoolBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "balance",
			Help:      "Liquidity pool balances by bucket",
		}, []string{"pool_id", "bucket"}),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "reservation_ops_total",
			Help:      "Reservation operations by kind and result",
		}, []string{"op", "result"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advance",
			Name:      "transitions_total",
			Help:      "Advance status transitions by target status",
		}, []string{"to"}),
		Repayments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advance",
			Name:      "repayments_total",
			Help:      "Applied repayments",
		}),
		RealizedLoss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advance",
			Name:      "realized_loss_total",
			Help:      "Capital written off on default",
		}),
		ProofResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proof",
			Name:      "results_total",
			Help:      "Blockchain proof outcomes",
		}, []string{"status"}),
		ExpiredSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "reservations_expired_total",
			Help:      "Reservations released by the expiry sweep",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "published_total",
			Help:      "Lifecycle notifications by result",
		}, []string{"result"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.PoolBalance, m.Reservations, m.Transitions, m.Repayments,
		m.RealizedLoss, m.ProofResults, m.ExpiredSwept, m.Notifications,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObservePool(p *pool.LiquidityPool) {
	if m == nil || p == nil {
		return
	}
	set := func(bucket string, v float64) { m.PoolBalance.WithLabelValues(p.PoolID, bucket).Set(v) }
	set("total", p.TotalCapital.InexactFloat64())
	set("available", p.AvailableBalance.InexactFloat64())
	set("reserved", p.ReservedBalance.InexactFloat64())
	set("allocated", p.AllocatedBalance.InexactFloat64())
}

func (m *Metrics) ReservationOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Reservations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) Repayment() {
	if m == nil {
		return
	}
	m.Repayments.Inc()
}

func (m *Metrics) Loss(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.RealizedLoss.Add(amount)
}

func (m *Metrics) Proof(status string) {
	if m == nil {
		return
	}
	m.ProofResults.WithLabelValues(status).Inc()
}

func (m *Metrics) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ExpiredSwept.Add(float64(n))
}

func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifications.WithLabelValues(result).Inc()
}
