package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReservationMetrics содержит метрики жизненного цикла броней.
// Все методы безопасны для nil-получателя.
type ReservationMetrics struct {
	// Заявки и правила допуска
	bookings        *prometheus.CounterVec
	ruleRejections  *prometheus.CounterVec
	preemptions     prometheus.Counter
	activeBookings  prometheus.Gauge
	operationTiming *prometheus.HistogramVec

	// Команды и переходы
	commands    *prometheus.CounterVec
	transitions *prometheus.CounterVec

	// Доставка уведомлений
	deliveries *prometheus.CounterVec

	// Сохранение снимков
	persistDuration prometheus.Histogram
	persistFailures prometheus.Counter
}

// NewReservationMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewReservationMetrics() *ReservationMetrics {
	return NewReservationMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewReservationMetricsWithRegisterer регистрирует метрики в указанном registerer.
func NewReservationMetricsWithRegisterer(registerer prometheus.Registerer) *ReservationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ReservationMetrics{
		bookings: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "roombook_bookings_total",
			Help: "Booking requests by requester role and outcome",
		}, []string{"role", "outcome"}),
		ruleRejections: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "roombook_validation_rejections_total",
			Help: "Booking requests refused by validation rule",
		}, []string{"rule"}),
		preemptions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "roombook_preemptions_total",
			Help: "Reservations cancelled by faculty pre-emption",
		}),
		activeBookings: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "roombook_active_reservations",
			Help: "Reservations currently holding a slot (pending or approved)",
		}),
		operationTiming: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "roombook_operation_duration_seconds",
			Help:    "Duration of reservation operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
		commands: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "roombook_commands_total",
			Help: "Administrative commands by kind, invoker operation and result",
		}, []string{"kind", "operation", "result"}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "roombook_transitions_total",
			Help: "Lifecycle events emitted by kind",
		}, []string{"event"}),
		deliveries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "roombook_notification_deliveries_total",
			Help: "Notification deliveries by observer and result",
		}, []string{"observer", "result"}),
		persistDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "roombook_persist_duration_seconds",
			Help:    "Duration of snapshot persistence including retries",
			Buckets: prometheus.DefBuckets,
		}),
		persistFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "roombook_persist_failures_total",
			Help: "Failed snapshot save attempts",
		}),
	}
}

// RecordBooking учитывает итог заявки: admitted, preempting, rejected, invalid.
func (m *ReservationMetrics) RecordBooking(role, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(role, outcome).Inc()
}

// RecordRuleRejection учитывает отказ конкретного правила.
func (m *ReservationMetrics) RecordRuleRejection(rule string) {
	if m == nil {
		return
	}
	m.ruleRejections.WithLabelValues(rule).Inc()
}

// RecordPreemptions добавляет число вытесненных броней.
func (m *ReservationMetrics) RecordPreemptions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.preemptions.Add(float64(n))
}

// SetActiveReservations выставляет число активных броней.
func (m *ReservationMetrics) SetActiveReservations(n int) {
	if m == nil {
		return
	}
	m.activeBookings.Set(float64(n))
}

// ObserveOperation записывает длительность операции сервиса.
func (m *ReservationMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationTiming.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCommand учитывает операцию Invoker.
func (m *ReservationMetrics) RecordCommand(kind, operation, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, operation, result).Inc()
}

// RecordTransition учитывает событие жизненного цикла.
func (m *ReservationMetrics) RecordTransition(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
}

// RecordDelivery учитывает результат доставки уведомления наблюдателем.
func (m *ReservationMetrics) RecordDelivery(observer, result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(observer, result).Inc()
}

// ObservePersist записывает длительность сохранения и неудачи.
func (m *ReservationMetrics) ObservePersist(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.persistDuration.Observe(duration.Seconds())
	if err != nil {
		m.persistFailures.Inc()
	}
}
