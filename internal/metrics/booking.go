// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "reservation"

// BookingMetrics counts admission outcomes and sweep effects.
type BookingMetrics struct {
	admissions *prometheus.CounterVec
	completed  prometheus.Counter
	reminders  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	m := &BookingMetrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completed_total",
			Help:      "Reservations moved to COMPLETED by the sweep.",
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminder dispatches by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.admissions, m.completed, m.reminders)
	return m
}

func (m *BookingMetrics) RecordAdmission(outcome string) {
	if m == nil || m.admissions == nil {
		return
	}
	m.admissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *BookingMetrics) AddCompleted(n int64) {
	if m == nil || m.completed == nil || n <= 0 {
		return
	}
	m.completed.Add(float64(n))
}

func (m *BookingMetrics) RecordReminder(result string) {
	if m == nil || m.reminders == nil {
		return
	}
	m.reminders.WithLabelValues(normalizeLabel(result)).Inc()
}
