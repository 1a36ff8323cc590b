package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReservationMetrics tracks reservation lifecycle and money movement.
type ReservationMetrics struct {
	transitions *prometheus.CounterVec
	payments    *prometheus.CounterVec
	settlements *prometheus.CounterVec
	quotaDenied prometheus.Counter
}

// NewReservationMetrics registers the reservation metrics on the provided registerer.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_transitions_total",
		Help: "Reservation status transitions by target status.",
	}, []string{"status"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_total",
		Help: "Payment status updates by resulting status.",
	}, []string{"status"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Settlements created by status.",
	}, []string{"status"})
	quotaDenied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_quota_denied_total",
		Help: "Reservation creations rejected by tenant quota.",
	})
	reg.MustRegister(transitions, payments, settlements, quotaDenied)
	return &ReservationMetrics{
		transitions: transitions,
		payments:    payments,
		settlements: settlements,
		quotaDenied: quotaDenied,
	}
}

// IncTransition counts a reservation arriving at the given status.
func (m *ReservationMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncPayment counts a payment reaching the given status.
func (m *ReservationMetrics) IncPayment(status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncSettlement counts a settlement row in the given status.
func (m *ReservationMetrics) IncSettlement(status string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncQuotaDenied counts a create rejected by the tenant plan quota.
func (m *ReservationMetrics) IncQuotaDenied() {
	if m == nil || m.quotaDenied == nil {
		return
	}
	m.quotaDenied.Inc()
}
