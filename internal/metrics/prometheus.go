package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Collector owns the portal's Prometheus registry. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry         *prometheus.Registry
	paymentsRecorded prometheus.Counter
	paymentsFailed   *prometheus.CounterVec
	paymentAmount    prometheus.Histogram
	paymentDuration  prometheus.Histogram
	logins           *prometheus.CounterVec
	driftAccounts    prometheus.Gauge
	reconciliations  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	logger           *zap.Logger
}

func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		paymentsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_payments_recorded_total",
			Help: "Total number of payments recorded",
		}),
		paymentsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_payments_failed_total",
			Help: "Total number of rejected or failed payment ingestions",
		}, []string{"reason"}),
		paymentAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_payment_amount",
			Help:    "Distribution of recorded payment amounts",
			Buckets: []float64{100, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		paymentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_payment_processing_duration_seconds",
			Help:    "Time taken to record a payment",
			Buckets: prometheus.DefBuckets,
		}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		driftAccounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "portal_balance_drift_accounts",
			Help: "Accounts whose stored balance disagrees with their payment history",
		}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_reconciliation_runs_total",
			Help: "Reconciliation audit runs by result",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logger: logger.Named("metrics"),
	}
}

func (m *Collector) RecordPayment(amount decimal.Decimal, duration time.Duration) {
	if m == nil {
		return
	}
	m.paymentsRecorded.Inc()
	m.paymentAmount.Observe(amount.InexactFloat64())
	m.paymentDuration.Observe(duration.Seconds())
}

func (m *Collector) RecordPaymentFailure(reason string) {
	if m == nil {
		return
	}
	m.paymentsFailed.WithLabelValues(reason).Inc()
}

func (m *Collector) RecordLogin(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

// RecordReconciliation stores the number of drifting accounts found by the
// latest audit run.
func (m *Collector) RecordReconciliation(driftCount int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reconciliations.WithLabelValues("error").Inc()
		return
	}
	m.reconciliations.WithLabelValues("ok").Inc()
	m.driftAccounts.Set(float64(driftCount))
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Collector) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Collector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
