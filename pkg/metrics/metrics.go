package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	OrdersCreated *prometheus.CounterVec
	PaymentStates *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promode",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "promode",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promode",
		Subsystem: service,
		Name:      "orders_created_total",
		Help:      "Orders created, labelled by payment method.",
	}, []string{"payment_method"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promode",
		Subsystem: service,
		Name:      "payment_callbacks_total",
		Help:      "Payment callbacks processed, labelled by mapped status.",
	}, []string{"status"})

	prometheus.MustRegister(requests, latency, orders, payments)
	return &ServerMetrics{
		Requests:      requests,
		LatencyMS:     latency,
		OrdersCreated: orders,
		PaymentStates: payments,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
