// Package metrics expone los contadores y gauges del core en Prometheus.
// Todos los métodos Record* toleran un *Metrics nil para que los tests y
// herramientas de línea de comandos puedan omitirlos.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los instrumentos del proceso.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal *prometheus.CounterVec

	IdempotencyHits       *prometheus.CounterVec
	IdempotencyMisses     *prometheus.CounterVec
	IdempotencyInProgress *prometheus.CounterVec

	RateLimited         *prometheus.CounterVec
	SharedBackendErrors *prometheus.CounterVec

	EventsPublished      *prometheus.CounterVec
	EventPublishFailures *prometheus.CounterVec
	ActiveSubscriptions  prometheus.Gauge

	JobsFailed   *prometheus.CounterVec
	JobsRetried  *prometheus.CounterVec
	JobsInFlight *prometheus.GaugeVec
	JobsSkipped  *prometheus.CounterVec
}

// New crea un registro propio con los colectores estándar de Go y del proceso.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total de peticiones por operación y estado",
		}, []string{"operation", "status"}),
		IdempotencyHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_hits_total",
			Help:      "Respuestas devueltas desde la caché de idempotencia",
		}, []string{"operation"}),
		IdempotencyMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_misses_total",
			Help:      "Mutaciones ejecutadas por primera vez",
		}, []string{"operation"}),
		IdempotencyInProgress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_in_progress_total",
			Help:      "Intentos rechazados porque otro intento con la misma clave sigue en curso",
		}, []string{"operation"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Peticiones rechazadas por el limitador",
		}, []string{"operation"}),
		SharedBackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shared_backend_errors_total",
			Help:      "Fallos del backend compartido que degradaron a comportamiento local",
		}, []string{"operation"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Eventos publicados por tipo",
		}, []string{"operation"}),
		EventPublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Fallos al difundir eventos al backend compartido",
		}, []string{"operation"}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_active_subscriptions",
			Help:      "Suscriptores locales activos del bus de eventos",
		}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Ejecuciones que agotaron reintentos y fueron a dead letter",
		}, []string{"operation"}),
		JobsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_retried_total",
			Help:      "Reintentos de jobs (intentos después del primero)",
		}, []string{"operation"}),
		JobsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs ejecutándose en este momento",
		}, []string{"operation"}),
		JobsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_skipped_total",
			Help:      "Ejecuciones omitidas por motivo",
		}, []string{"operation", "reason"}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.IdempotencyHits, m.IdempotencyMisses, m.IdempotencyInProgress,
		m.RateLimited, m.SharedBackendErrors,
		m.EventsPublished, m.EventPublishFailures, m.ActiveSubscriptions,
		m.JobsFailed, m.JobsRetried, m.JobsInFlight, m.JobsSkipped,
	)
	return m
}

// Handler devuelve el handler HTTP de exposición (/metrics).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry expone el registro para tests y colectores adicionales.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordRequest(operation, status string) {
	if m != nil {
		m.RequestsTotal.WithLabelValues(operation, status).Inc()
	}
}

func (m *Metrics) RecordIdempotencyHit(operation string) {
	if m != nil {
		m.IdempotencyHits.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordIdempotencyMiss(operation string) {
	if m != nil {
		m.IdempotencyMisses.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordIdempotencyInProgress(operation string) {
	if m != nil {
		m.IdempotencyInProgress.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordRateLimited(operation string) {
	if m != nil {
		m.RateLimited.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordSharedBackendError(operation string) {
	if m != nil {
		m.SharedBackendErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordEventPublished(operation string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordEventPublishFailure(operation string) {
	if m != nil {
		m.EventPublishFailures.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) SetActiveSubscriptions(n int) {
	if m != nil {
		m.ActiveSubscriptions.Set(float64(n))
	}
}

func (m *Metrics) RecordJobFailed(job string) {
	if m != nil {
		m.JobsFailed.WithLabelValues(job).Inc()
	}
}

func (m *Metrics) RecordJobRetried(job string) {
	if m != nil {
		m.JobsRetried.WithLabelValues(job).Inc()
	}
}

func (m *Metrics) RecordJobSkipped(job, reason string) {
	if m != nil {
		m.JobsSkipped.WithLabelValues(job, reason).Inc()
	}
}

// JobStarted incrementa el gauge de jobs en curso y devuelve la función que lo decrementa.
func (m *Metrics) JobStarted(job string) func() {
	if m == nil {
		return func() {}
	}
	g := m.JobsInFlight.WithLabelValues(job)
	g.Inc()
	return g.Dec
}
